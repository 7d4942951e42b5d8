// Package moderation screens raw utterances before any other stage runs.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"relnotes.app/relnotes/common/llm"
	"relnotes.app/relnotes/common/logger"
)

// Rejection is returned when an utterance fails the moderation policy.
// It is a terminal, non-retryable outcome for the request.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return "moderation rejected: " + r.Reason
}

const systemPrompt = `You are a strict safety and scope moderation system for a release-notes generator.

Classify the user input:
- REJECT_UNSAFE if it involves violence, weapons, hacking, illegal activity, self-harm, or explicit content.
- REJECT_OFF_TOPIC if it is unrelated to generating release notes for a software project or repository.
- ALLOW otherwise.

Return the verdict and a one-sentence reason.`

type verdict struct {
	Verdict string `json:"verdict" jsonschema:"required,enum=ALLOW,enum=REJECT_UNSAFE,enum=REJECT_OFF_TOPIC"`
	Reason  string `json:"reason" jsonschema:"required,description=One short sentence explaining the verdict"`
}

var verdictSchema = llm.GenerateSchema[verdict]()

// Gate checks utterances against a fixed moderation policy. The policy is a
// classification contract, not an enumerated rule list, but it must be
// deterministic for identical input, so the LLM call is pinned to
// temperature zero.
type Gate struct {
	llm     llm.Client
	timeout time.Duration
}

func NewGate(client llm.Client, timeout time.Duration) *Gate {
	return &Gate{llm: client, timeout: timeout}
}

// Check returns nil when the utterance may proceed, a *Rejection when the
// policy rejects it, or another error when the moderation service itself
// failed. Callers must not invoke any source adapter on a non-nil return.
func (g *Gate) Check(ctx context.Context, utterance string) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relnotes.moderation"})

	if strings.TrimSpace(utterance) == "" {
		return &Rejection{Reason: "empty request"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var v verdict
	_, err := g.llm.Chat(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   utterance,
		SchemaName:   "moderation_verdict",
		Schema:       verdictSchema,
		Temperature:  llm.Temp(0),
	}, &v)
	if err != nil {
		return fmt.Errorf("moderation check: %w", err)
	}

	switch v.Verdict {
	case "ALLOW":
		return nil
	case "REJECT_UNSAFE", "REJECT_OFF_TOPIC":
		slog.InfoContext(ctx, "utterance rejected by moderation",
			"verdict", v.Verdict,
			"utterance", logger.Truncate(utterance, 200))
		reason := v.Reason
		if reason == "" {
			reason = "request violates usage policies"
		}
		return &Rejection{Reason: reason}
	default:
		return fmt.Errorf("moderation check: unexpected verdict %q", v.Verdict)
	}
}
