package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"relnotes.app/relnotes/internal/classify"
	"relnotes.app/relnotes/internal/model"
	"relnotes.app/relnotes/internal/moderation"
	"relnotes.app/relnotes/internal/pipeline"
	"relnotes.app/relnotes/internal/source"
)

var _ = Describe("Pipeline", func() {
	var (
		gate       *mockGate
		classifier *mockClassifier
		tracker    *mockAdapter
		repo       *mockAdapter
		renderer   *mockRenderer
		cache      *mockCache
		p          *pipeline.Pipeline
		ctx        context.Context
	)

	trackerRequest := model.InterpretedRequest{
		SourceKind:    model.SourceKindIssueTracker,
		ProjectOrRepo: "ZOOKEEPER",
		VersionOrTag:  "3.9.0",
	}
	repoRequest := model.InterpretedRequest{
		SourceKind:    model.SourceKindRepoRelease,
		ProjectOrRepo: "grafana/loki",
		VersionOrTag:  "v2.9.1",
	}

	issueRecords := []model.RawRecord{
		model.IssueRaw(model.IssueRecord{ID: "ZOOKEEPER-1", Title: "Add quorum TLS", Type: "New Feature", Status: "Closed"}),
		model.IssueRaw(model.IssueRecord{ID: "ZOOKEEPER-2", Title: "Fix session leak", Type: "Bug", Status: "Resolved"}),
	}

	newPipeline := func() *pipeline.Pipeline {
		return pipeline.New(pipeline.Config{
			Gate:       gate,
			Classifier: classifier,
			Sources:    &mockResolver{tracker: tracker, repo: repo},
			Renderer:   renderer,
			Cache:      cache,
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		gate = &mockGate{}
		classifier = &mockClassifier{
			classifyFn: func(ctx context.Context, utterance string) (model.InterpretedRequest, error) {
				return trackerRequest, nil
			},
		}
		tracker = &mockAdapter{
			fetchFn: func(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
				return issueRecords, nil
			},
		}
		repo = &mockAdapter{}
		renderer = &mockRenderer{}
		cache = newMockCache()
		p = newPipeline()
	})

	expectKind := func(err error, kind pipeline.Kind) *pipeline.Error {
		var pipeErr *pipeline.Error
		ExpectWithOffset(1, errors.As(err, &pipeErr)).To(BeTrue(), "error should be a *pipeline.Error, got %v", err)
		ExpectWithOffset(1, pipeErr.Kind).To(Equal(kind))
		return pipeErr
	}

	Describe("moderation", func() {
		It("rejects the request before any source adapter runs", func() {
			gate.checkFn = func(ctx context.Context, utterance string) error {
				return &moderation.Rejection{Reason: "request violates usage policies"}
			}

			_, err := p.HandleRequest(ctx, "how do I make explosives")

			pipeErr := expectKind(err, pipeline.KindModerationRejected)
			Expect(pipeErr.State).To(Equal(pipeline.StateModerating))
			Expect(pipeErr.Detail).To(Equal("request violates usage policies"))
			Expect(classifier.callCount).To(BeZero())
			Expect(tracker.callCount).To(BeZero())
			Expect(renderer.callCount).To(BeZero())
		})

		It("maps a moderation timeout to the timeout kind", func() {
			gate.checkFn = func(ctx context.Context, utterance string) error {
				return fmt.Errorf("moderation check: %w", context.DeadlineExceeded)
			}

			_, err := p.HandleRequest(ctx, "release notes for zookeeper 3.9.0")

			expectKind(err, pipeline.KindUpstreamTimeout)
			Expect(tracker.callCount).To(BeZero())
		})

		It("maps a moderation service failure to an internal error", func() {
			gate.checkFn = func(ctx context.Context, utterance string) error {
				return errors.New("upstream 500")
			}

			_, err := p.HandleRequest(ctx, "release notes for zookeeper 3.9.0")

			expectKind(err, pipeline.KindInternal)
		})
	})

	Describe("classification", func() {
		It("surfaces ambiguity without fetching", func() {
			classifier.classifyFn = func(ctx context.Context, utterance string) (model.InterpretedRequest, error) {
				return model.InterpretedRequest{}, fmt.Errorf("%w: two project keys", classify.ErrAmbiguous)
			}

			_, err := p.HandleRequest(ctx, "notes for ZOOKEEPER and KAFKA 3.9.0")

			pipeErr := expectKind(err, pipeline.KindClassificationAmbiguous)
			Expect(pipeErr.State).To(Equal(pipeline.StateClassifying))
			Expect(tracker.callCount).To(BeZero())
		})

		It("surfaces a missing parameter", func() {
			classifier.classifyFn = func(ctx context.Context, utterance string) (model.InterpretedRequest, error) {
				return model.InterpretedRequest{}, fmt.Errorf("%w: no version", classify.ErrMissingParameter)
			}

			_, err := p.HandleRequest(ctx, "release notes please")

			expectKind(err, pipeline.KindClassificationMissingParameter)
		})

		It("maps a classification timeout to the timeout kind", func() {
			classifier.classifyFn = func(ctx context.Context, utterance string) (model.InterpretedRequest, error) {
				return model.InterpretedRequest{}, context.DeadlineExceeded
			}

			_, err := p.HandleRequest(ctx, "release notes for zookeeper 3.9.0")

			expectKind(err, pipeline.KindUpstreamTimeout)
		})
	})

	Describe("issue tracker flow", func() {
		It("generates release notes end to end", func() {
			result, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Release notes for ZOOKEEPER version 3.9.0 generated successfully (2 entries)."))
			Expect(result.Artifact.Name).To(Equal("artifact.md"))
			Expect(tracker.callCount).To(Equal(1))
			Expect(renderer.callCount).To(Equal(1))

			doc := renderer.lastDoc
			Expect(doc.Title).To(Equal("ZOOKEEPER Release 3.9.0"))
			Expect(doc.Subtitle).To(Equal("Release notes for project ZOOKEEPER, fix version 3.9.0"))
			Expect(doc.Entries).To(HaveLen(2))
			Expect(doc.Entries[0].Category).To(Equal(model.CategoryFeature))
			Expect(doc.Entries[1].Category).To(Equal(model.CategoryBugfix))
		})

		It("reports success with no changes when the fetch matches nothing", func() {
			tracker.fetchFn = func(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
				return nil, nil
			}

			result, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(ContainSubstring("(no changes found)."))
			Expect(renderer.callCount).To(Equal(1))
			Expect(renderer.lastDoc.Entries).To(BeEmpty())
		})

		It("enriches the document with the release date when the adapter knows it", func() {
			dated := &mockDatedAdapter{}
			dated.fetchFn = tracker.fetchFn
			dated.releaseDateFn = func(ctx context.Context, projectOrRepo, versionOrTag string) (string, error) {
				return "2026-07-15", nil
			}
			tracker2 := pipeline.New(pipeline.Config{
				Gate:       gate,
				Classifier: classifier,
				Sources:    &mockResolver{tracker: dated, repo: repo},
				Renderer:   renderer,
				Cache:      cache,
			})

			_, err := tracker2.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(dated.dateCallCount).To(Equal(1))
			Expect(renderer.lastDoc.ReleaseDate).To(Equal("2026-07-15"))
		})

		It("keeps going when the release date lookup fails", func() {
			dated := &mockDatedAdapter{}
			dated.fetchFn = tracker.fetchFn
			dated.releaseDateFn = func(ctx context.Context, projectOrRepo, versionOrTag string) (string, error) {
				return "", errors.New("versions endpoint down")
			}
			p := pipeline.New(pipeline.Config{
				Gate:       gate,
				Classifier: classifier,
				Sources:    &mockResolver{tracker: dated, repo: repo},
				Renderer:   renderer,
				Cache:      cache,
			})

			result, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Artifact.Name).NotTo(BeEmpty())
			Expect(renderer.lastDoc.ReleaseDate).To(BeEmpty())
		})
	})

	Describe("repository release flow", func() {
		BeforeEach(func() {
			classifier.classifyFn = func(ctx context.Context, utterance string) (model.InterpretedRequest, error) {
				return repoRequest, nil
			}
			repo.fetchFn = func(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
				return []model.RawRecord{
					model.ReleaseRaw(model.ReleaseRecord{
						Tag:         "v2.9.1",
						Name:        "Loki 2.9.1",
						Body:        "* Fixed label parsing\n* Added retention flag",
						PublishedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
					}),
				}, nil
			}
		})

		It("routes to the repository adapter and titles the document after the repo", func() {
			result, err := p.HandleRequest(ctx, "Get me the release notes for grafana/loki v2.9.1")

			Expect(err).NotTo(HaveOccurred())
			Expect(repo.callCount).To(Equal(1))
			Expect(tracker.callCount).To(BeZero())
			Expect(result.Message).To(ContainSubstring("grafana/loki version v2.9.1"))

			doc := renderer.lastDoc
			Expect(doc.Title).To(Equal("LOKI Release v2.9.1"))
			Expect(doc.Subtitle).To(Equal("Release notes for grafana/loki v2.9.1"))
			Expect(doc.Entries).NotTo(BeEmpty())
		})

		It("dates the document from the release's publish timestamp", func() {
			_, err := p.HandleRequest(ctx, "Get me the release notes for grafana/loki v2.9.1")

			Expect(err).NotTo(HaveOccurred())
			Expect(renderer.lastDoc.ReleaseDate).To(Equal("2026-01-15"))
		})

		It("leaves the date empty when the release has no publish timestamp", func() {
			repo.fetchFn = func(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
				return []model.RawRecord{
					model.ReleaseRaw(model.ReleaseRecord{Tag: "v2.9.1", Name: "Loki 2.9.1"}),
				}, nil
			}

			_, err := p.HandleRequest(ctx, "Get me the release notes for grafana/loki v2.9.1")

			Expect(err).NotTo(HaveOccurred())
			Expect(renderer.lastDoc.ReleaseDate).To(BeEmpty())
		})
	})

	Describe("fetch failures", func() {
		fetchWith := func(kind source.FetchKind) {
			tracker.fetchFn = func(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
				return nil, &source.FetchError{Kind: kind, Detail: "upstream said no"}
			}
		}

		It("maps a missing project or version to not-found", func() {
			fetchWith(source.FetchNotFound)

			result, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			pipeErr := expectKind(err, pipeline.KindFetchNotFound)
			Expect(pipeErr.State).To(Equal(pipeline.StateFetching))
			Expect(pipeErr.Detail).To(ContainSubstring("not found upstream"))
			Expect(result.Artifact.Name).To(BeEmpty())
			Expect(renderer.callCount).To(BeZero())
		})

		It("maps upstream rate limiting", func() {
			fetchWith(source.FetchRateLimited)

			_, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			pipeErr := expectKind(err, pipeline.KindFetchRateLimited)
			Expect(pipeErr.Detail).To(ContainSubstring("rate limit"))
		})

		It("maps upstream unavailability", func() {
			fetchWith(source.FetchUnavailable)

			_, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			expectKind(err, pipeline.KindFetchUnavailable)
		})

		It("maps a fetch deadline to the timeout kind", func() {
			tracker.fetchFn = func(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error) {
				return nil, fmt.Errorf("searching issues: %w", context.DeadlineExceeded)
			}

			_, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			pipeErr := expectKind(err, pipeline.KindUpstreamTimeout)
			Expect(pipeErr.Detail).To(ContainSubstring("timed out"))
		})
	})

	Describe("rendering failures", func() {
		It("maps a persistence failure", func() {
			renderer.renderFn = func(ctx context.Context, doc model.ReleaseNoteDocument, projectOrRepo, versionOrTag string) (model.Artifact, error) {
				return model.Artifact{}, errors.New("disk full")
			}

			_, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			pipeErr := expectKind(err, pipeline.KindRenderIOFailure)
			Expect(pipeErr.State).To(Equal(pipeline.StateRendering))
		})
	})

	Describe("caching", func() {
		It("stores the artifact after a successful run", func() {
			_, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(cache.putCount).To(Equal(1))
			Expect(cache.lastKey).To(Equal("relnotes:ISSUE_TRACKER:ZOOKEEPER:3.9.0"))
		})

		It("serves a cached artifact without fetching", func() {
			cache.entries["relnotes:ISSUE_TRACKER:ZOOKEEPER:3.9.0"] = model.Artifact{Name: "cached.md", Ref: "cached.md", ByteSize: 7}

			result, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Artifact.Name).To(Equal("cached.md"))
			Expect(result.Message).To(Equal("Release notes for ZOOKEEPER version 3.9.0 generated successfully."))
			Expect(tracker.callCount).To(BeZero())
			Expect(renderer.callCount).To(BeZero())
		})

		It("does not fail the request when the cache write fails", func() {
			cache.putFailed = errors.New("redis down")

			result, err := p.HandleRequest(ctx, "Generate release notes for ZOOKEEPER version 3.9.0")

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Artifact.Name).NotTo(BeEmpty())
		})
	})
})
