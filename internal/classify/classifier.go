// Package classify turns a free-text utterance into an InterpretedRequest:
// which source system to query and with which parameters.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"relnotes.app/relnotes/common/llm"
	"relnotes.app/relnotes/common/logger"
	"relnotes.app/relnotes/internal/model"
)

var (
	// ErrAmbiguous means the utterance matched more than one extraction and
	// the classifier refuses to guess.
	ErrAmbiguous = errors.New("ambiguous request")

	// ErrMissingParameter means no project/repo or no version could be
	// extracted.
	ErrMissingParameter = errors.New("missing parameter")
)

const extractPrompt = `You extract structured data from release-notes requests.

Identify:
- source_kind: REPO_RELEASE when the request targets a repository host release (owner/repo plus tag), ISSUE_TRACKER when it targets an issue-tracker project (project key plus fix version), UNKNOWN when you cannot tell.
- project_or_repo: the owner/repo token or the tracker project key, exactly as written by the user.
- version_or_tag: the version or tag, exactly as written by the user.

Use empty strings for anything not present. Never invent values.`

type llmExtraction struct {
	SourceKind    string `json:"source_kind" jsonschema:"required,enum=ISSUE_TRACKER,enum=REPO_RELEASE,enum=UNKNOWN"`
	ProjectOrRepo string `json:"project_or_repo" jsonschema:"required"`
	VersionOrTag  string `json:"version_or_tag" jsonschema:"required"`
}

var extractionSchema = llm.GenerateSchema[llmExtraction]()

// Classifier decides the source kind and extracts parameters. The rule
// extractor is authoritative; the LLM (temperature zero) is an advisory
// pass consulted only when the rules find nothing, and its output is
// validated against the utterance before being trusted. A nil LLM client
// disables the advisory pass entirely.
type Classifier struct {
	llm     llm.Client
	timeout time.Duration
}

func NewClassifier(client llm.Client, timeout time.Duration) *Classifier {
	return &Classifier{llm: client, timeout: timeout}
}

// Classify resolves the utterance into an InterpretedRequest. The same
// utterance always yields the same result: rules are pure, and the
// generative fallback is sampled at zero variance.
func (c *Classifier) Classify(ctx context.Context, utterance string) (model.InterpretedRequest, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relnotes.classify"})

	ext, ruleErr := extract(utterance)
	if ruleErr == nil {
		return c.interpreted(ext, utterance), nil
	}

	// Genuine ambiguity is terminal: two pattern families matched and the
	// classifier must not silently default to one source.
	if errors.Is(ruleErr, ErrAmbiguous) {
		return model.InterpretedRequest{}, ruleErr
	}

	if c.llm == nil {
		return model.InterpretedRequest{}, ruleErr
	}

	slog.DebugContext(ctx, "rule extraction incomplete, consulting llm",
		"utterance", logger.Truncate(utterance, 200))

	llmExt, err := c.advisoryExtract(ctx, utterance)
	if err != nil {
		// A deadline here is an upstream failure, not a classification
		// outcome; everything else degrades to the rule result.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return model.InterpretedRequest{}, fmt.Errorf("classification llm: %w", err)
		}
		slog.WarnContext(ctx, "llm extraction unusable, keeping rule result", "error", err)
		return model.InterpretedRequest{}, ruleErr
	}

	return c.interpreted(*llmExt, utterance), nil
}

func (c *Classifier) advisoryExtract(ctx context.Context, utterance string) (*extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out llmExtraction
	if _, err := c.llm.Chat(ctx, llm.Request{
		SystemPrompt: extractPrompt,
		UserPrompt:   utterance,
		SchemaName:   "request_extraction",
		Schema:       extractionSchema,
		Temperature:  llm.Temp(0),
	}, &out); err != nil {
		return nil, err
	}

	kind := model.SourceKind(out.SourceKind)
	if !kind.Valid() {
		return nil, fmt.Errorf("llm could not determine source kind")
	}
	project := strings.TrimSpace(out.ProjectOrRepo)
	version := strings.TrimSpace(out.VersionOrTag)
	if project == "" || version == "" {
		return nil, fmt.Errorf("llm extraction incomplete")
	}

	// The LLM must quote the utterance, not invent parameters.
	lower := strings.ToLower(utterance)
	if !strings.Contains(lower, strings.ToLower(project)) || !strings.Contains(lower, strings.ToLower(version)) {
		return nil, fmt.Errorf("llm extraction not grounded in utterance")
	}
	if kind == model.SourceKindRepoRelease && !strings.Contains(project, "/") {
		return nil, fmt.Errorf("llm repo extraction missing owner/repo form")
	}

	return &extraction{Kind: kind, ProjectOrRepo: project, VersionOrTag: version}, nil
}

func (c *Classifier) interpreted(ext extraction, utterance string) model.InterpretedRequest {
	project := ext.ProjectOrRepo
	if ext.Kind == model.SourceKindIssueTracker {
		// Tracker project keys are uppercase.
		project = strings.ToUpper(project)
	}

	return model.InterpretedRequest{
		SourceKind:    ext.Kind,
		ProjectOrRepo: project,
		VersionOrTag:  ext.VersionOrTag,
		RawUtterance:  utterance,
	}
}
