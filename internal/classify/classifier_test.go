package classify_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"relnotes.app/relnotes/common/llm"
	"relnotes.app/relnotes/internal/classify"
	"relnotes.app/relnotes/internal/model"
)

type mockLLMClient struct {
	chatFn    func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	callCount int
}

func (m *mockLLMClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.callCount++
	if m.chatFn != nil {
		return m.chatFn(ctx, req, result)
	}
	return &llm.Response{}, nil
}

func (m *mockLLMClient) Model() string {
	return "mock"
}

func respond(result any, payload map[string]any) {
	data, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(data, result)).To(Succeed())
}

var _ = Describe("Classifier", func() {
	var (
		classifier *classify.Classifier
		mockLLM    *mockLLMClient
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockLLM = &mockLLMClient{}
		classifier = classify.NewClassifier(mockLLM, time.Second)
	})

	Context("rules resolve the utterance", func() {
		It("classifies a tracker request without calling the LLM", func() {
			req, err := classifier.Classify(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(req.SourceKind).To(Equal(model.SourceKindIssueTracker))
			Expect(req.ProjectOrRepo).To(Equal("ZOOKEEPER"))
			Expect(req.VersionOrTag).To(Equal("3.9.0"))
			Expect(req.RawUtterance).To(Equal("Generate release notes for ZOOKEEPER version 3.9.0"))
			Expect(mockLLM.callCount).To(Equal(0))
		})

		It("classifies a repo-release request without calling the LLM", func() {
			req, err := classifier.Classify(ctx, "Generate GitHub release notes for facebook/react v18.2.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(req.SourceKind).To(Equal(model.SourceKindRepoRelease))
			Expect(req.ProjectOrRepo).To(Equal("facebook/react"))
			Expect(req.VersionOrTag).To(Equal("v18.2.0"))
			Expect(mockLLM.callCount).To(Equal(0))
		})

		It("returns identical results across repeated calls", func() {
			first, err := classifier.Classify(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 5; i++ {
				again, err := classifier.Classify(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")
				Expect(err).NotTo(HaveOccurred())
				Expect(again).To(Equal(first))
			}
		})
	})

	Context("ambiguous utterances", func() {
		It("refuses to guess even though the LLM is available", func() {
			_, err := classifier.Classify(ctx, "notes for ZOOKEEPER or apache/zookeeper 3.9.0")

			Expect(err).To(MatchError(classify.ErrAmbiguous))
			Expect(mockLLM.callCount).To(Equal(0))
		})
	})

	Context("rules find nothing", func() {
		It("accepts a grounded LLM extraction", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				Expect(req.Temperature).NotTo(BeNil())
				Expect(*req.Temperature).To(BeZero())
				respond(result, map[string]any{
					"source_kind":     "ISSUE_TRACKER",
					"project_or_repo": "zookeeper",
					"version_or_tag":  "3.9.0",
				})
				return &llm.Response{}, nil
			}

			req, err := classifier.Classify(ctx, "release notes for the zookeeper project, fix version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(req.SourceKind).To(Equal(model.SourceKindIssueTracker))
			Expect(req.ProjectOrRepo).To(Equal("ZOOKEEPER"))
			Expect(req.VersionOrTag).To(Equal("3.9.0"))
			Expect(mockLLM.callCount).To(Equal(1))
		})

		It("rejects an LLM extraction not grounded in the utterance", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				respond(result, map[string]any{
					"source_kind":     "ISSUE_TRACKER",
					"project_or_repo": "KAFKA",
					"version_or_tag":  "9.9.9",
				})
				return &llm.Response{}, nil
			}

			_, err := classifier.Classify(ctx, "release notes please")

			Expect(err).To(MatchError(classify.ErrMissingParameter))
		})

		It("falls back to the rule error when the LLM fails", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				return nil, errors.New("boom")
			}

			_, err := classifier.Classify(ctx, "release notes please")

			Expect(err).To(MatchError(classify.ErrMissingParameter))
		})

		It("surfaces an LLM deadline as a timeout, not a classification outcome", func() {
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				return nil, context.DeadlineExceeded
			}

			_, err := classifier.Classify(ctx, "release notes please")

			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(errors.Is(err, classify.ErrMissingParameter)).To(BeFalse())
		})
	})

	Context("without an LLM client", func() {
		It("uses rules only", func() {
			classifier = classify.NewClassifier(nil, time.Second)

			_, err := classifier.Classify(ctx, "release notes please")

			Expect(err).To(MatchError(classify.ErrMissingParameter))
		})
	})
})
