package handler_test

import (
	"context"
	"fmt"

	"relnotes.app/relnotes/internal/pipeline"
)

type mockPipelineRunner struct {
	handleFn  func(ctx context.Context, utterance string) (pipeline.Result, error)
	callCount int
	lastInput string
}

func (m *mockPipelineRunner) HandleRequest(ctx context.Context, utterance string) (pipeline.Result, error) {
	m.callCount++
	m.lastInput = utterance
	if m.handleFn != nil {
		return m.handleFn(ctx, utterance)
	}
	return pipeline.Result{}, fmt.Errorf("handleFn not set")
}
