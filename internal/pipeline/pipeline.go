// Package pipeline sequences moderation, classification, fetch,
// normalization, and rendering for one request. It is a linear state
// machine: RECEIVED through DONE, with FAILED reachable from any
// non-terminal state and no state re-entered.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"relnotes.app/relnotes/common/id"
	"relnotes.app/relnotes/common/logger"
	"relnotes.app/relnotes/internal/classify"
	"relnotes.app/relnotes/internal/model"
	"relnotes.app/relnotes/internal/moderation"
	"relnotes.app/relnotes/internal/normalize"
	"relnotes.app/relnotes/internal/source"
	"relnotes.app/relnotes/internal/store"
)

type State string

const (
	StateReceived    State = "RECEIVED"
	StateModerating  State = "MODERATING"
	StateClassifying State = "CLASSIFYING"
	StateFetching    State = "FETCHING"
	StateNormalizing State = "NORMALIZING"
	StateRendering   State = "RENDERING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Gate screens utterances before any other work happens.
type Gate interface {
	Check(ctx context.Context, utterance string) error
}

// Classifier resolves an utterance into an InterpretedRequest.
type Classifier interface {
	Classify(ctx context.Context, utterance string) (model.InterpretedRequest, error)
}

// Renderer turns a document into a persisted artifact.
type Renderer interface {
	Render(ctx context.Context, doc model.ReleaseNoteDocument, projectOrRepo, versionOrTag string) (model.Artifact, error)
}

// AdapterResolver picks the source adapter for a kind.
type AdapterResolver interface {
	ForKind(kind model.SourceKind) (source.Adapter, error)
}

type Config struct {
	Gate         Gate
	Classifier   Classifier
	Sources      AdapterResolver
	Renderer     Renderer
	Cache        store.DocumentCache
	FetchTimeout time.Duration
}

type Pipeline struct {
	gate         Gate
	classifier   Classifier
	sources      AdapterResolver
	renderer     Renderer
	cache        store.DocumentCache
	fetchTimeout time.Duration
}

func New(cfg Config) *Pipeline {
	cache := cfg.Cache
	if cache == nil {
		cache = store.NewNoopCache()
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}

	return &Pipeline{
		gate:         cfg.Gate,
		classifier:   cfg.Classifier,
		sources:      cfg.Sources,
		renderer:     cfg.Renderer,
		cache:        cache,
		fetchTimeout: fetchTimeout,
	}
}

// Result is the success outcome: a single descriptive message plus a
// reference to the rendered artifact.
type Result struct {
	Message  string
	Artifact model.Artifact
}

// HandleRequest runs one utterance through the full pipeline. On failure
// the returned error is always a *Error carrying the failing stage's kind.
func (p *Pipeline) HandleRequest(ctx context.Context, utterance string) (Result, error) {
	requestID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RequestID: logger.Ptr(requestID),
		Component: "relnotes.pipeline",
	})

	state := StateReceived
	slog.InfoContext(ctx, "request received", "utterance", logger.Truncate(utterance, 200))

	// MODERATING: nothing else runs, and no adapter is invoked, until the
	// gate passes.
	state = transition(ctx, state, StateModerating)
	if err := p.gate.Check(ctx, utterance); err != nil {
		var rejection *moderation.Rejection
		if errors.As(err, &rejection) {
			return Result{}, p.fail(ctx, state, KindModerationRejected, rejection.Reason, err)
		}
		if isTimeout(err) {
			return Result{}, p.fail(ctx, state, KindUpstreamTimeout, "moderation service timed out", err)
		}
		return Result{}, p.fail(ctx, state, KindInternal, "moderation check failed", err)
	}

	// CLASSIFYING
	state = transition(ctx, state, StateClassifying)
	req, err := p.classifier.Classify(ctx, utterance)
	if err != nil {
		switch {
		case errors.Is(err, classify.ErrAmbiguous):
			return Result{}, p.fail(ctx, state, KindClassificationAmbiguous, err.Error(), err)
		case errors.Is(err, classify.ErrMissingParameter):
			return Result{}, p.fail(ctx, state, KindClassificationMissingParameter, err.Error(), err)
		case isTimeout(err):
			return Result{}, p.fail(ctx, state, KindUpstreamTimeout, "classification service timed out", err)
		default:
			return Result{}, p.fail(ctx, state, KindInternal, "classification failed", err)
		}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SourceKind: logger.Ptr(string(req.SourceKind)),
		Project:    logger.Ptr(req.ProjectOrRepo),
		Version:    logger.Ptr(req.VersionOrTag),
	})
	slog.InfoContext(ctx, "request classified")

	if cached, cacheErr := p.cache.Get(ctx, cacheKey(req)); cacheErr == nil {
		slog.InfoContext(ctx, "serving cached artifact", "artifact", cached.Name)
		transition(ctx, state, StateDone)
		return Result{
			Message:  successMessage(req, -1),
			Artifact: cached,
		}, nil
	}

	// FETCHING
	state = transition(ctx, state, StateFetching)
	adapter, err := p.sources.ForKind(req.SourceKind)
	if err != nil {
		return Result{}, p.fail(ctx, state, KindInternal, "no adapter for source kind", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	records, err := adapter.Fetch(fetchCtx, req.ProjectOrRepo, req.VersionOrTag)
	if err != nil {
		return Result{}, p.failFetch(ctx, state, req, err)
	}
	slog.InfoContext(ctx, "records fetched", "count", len(records))

	releaseDate := p.resolveReleaseDate(fetchCtx, adapter, req, records)
	cancel()

	// NORMALIZING
	state = transition(ctx, state, StateNormalizing)
	entries := normalize.Normalize(records, req.SourceKind)

	doc := buildDocument(req, entries, releaseDate, time.Now().UTC())

	// RENDERING
	state = transition(ctx, state, StateRendering)
	artifact, err := p.renderer.Render(ctx, doc, req.ProjectOrRepo, req.VersionOrTag)
	if err != nil {
		return Result{}, p.fail(ctx, state, KindRenderIOFailure, "could not persist the release-note document", err)
	}

	if err := p.cache.Put(ctx, cacheKey(req), artifact); err != nil {
		slog.WarnContext(ctx, "caching artifact failed", "error", err)
	}

	transition(ctx, state, StateDone)
	slog.InfoContext(ctx, "request complete", "artifact", artifact.Name, "bytes", artifact.ByteSize)

	return Result{
		Message:  successMessage(req, len(entries)),
		Artifact: artifact,
	}, nil
}

// resolveReleaseDate finds the release date for the document. Repository
// releases carry their publish timestamp in the fetched record; the issue
// tracker needs a separate versions lookup.
func (p *Pipeline) resolveReleaseDate(ctx context.Context, adapter source.Adapter, req model.InterpretedRequest, records []model.RawRecord) string {
	if req.SourceKind == model.SourceKindRepoRelease {
		for _, r := range records {
			if r.Release != nil && !r.Release.PublishedAt.IsZero() {
				return r.Release.PublishedAt.UTC().Format("2006-01-02")
			}
		}
		return ""
	}

	dater, ok := adapter.(source.ReleaseDater)
	if !ok {
		return ""
	}

	// Best-effort enrichment; a failed lookup never fails the request.
	date, err := dater.ReleaseDate(ctx, req.ProjectOrRepo, req.VersionOrTag)
	if err != nil {
		slog.DebugContext(ctx, "release date lookup failed", "error", err)
		return ""
	}
	return date
}

func buildDocument(req model.InterpretedRequest, entries []model.NormalizedEntry, releaseDate string, generatedAt time.Time) model.ReleaseNoteDocument {
	display := req.ProjectOrRepo
	subtitle := fmt.Sprintf("Release notes for project %s, fix version %s", req.ProjectOrRepo, req.VersionOrTag)

	if req.SourceKind == model.SourceKindRepoRelease {
		if _, repo, ok := strings.Cut(req.ProjectOrRepo, "/"); ok {
			display = strings.ToUpper(repo)
		}
		subtitle = fmt.Sprintf("Release notes for %s %s", req.ProjectOrRepo, req.VersionOrTag)
	}

	return model.ReleaseNoteDocument{
		Title:       fmt.Sprintf("%s Release %s", display, req.VersionOrTag),
		Subtitle:    subtitle,
		ReleaseDate: releaseDate,
		Entries:     entries,
		GeneratedAt: generatedAt,
	}
}

func successMessage(req model.InterpretedRequest, entryCount int) string {
	base := fmt.Sprintf("Release notes for %s version %s generated successfully", req.ProjectOrRepo, req.VersionOrTag)
	switch {
	case entryCount == 0:
		return base + " (no changes found)."
	case entryCount > 0:
		return fmt.Sprintf("%s (%d entries).", base, entryCount)
	default:
		return base + "."
	}
}

func cacheKey(req model.InterpretedRequest) string {
	return fmt.Sprintf("relnotes:%s:%s:%s", req.SourceKind, req.ProjectOrRepo, req.VersionOrTag)
}

func (p *Pipeline) failFetch(ctx context.Context, state State, req model.InterpretedRequest, err error) *Error {
	if isTimeout(err) {
		return p.fail(ctx, state, KindUpstreamTimeout,
			fmt.Sprintf("fetching records for %s %s timed out", req.ProjectOrRepo, req.VersionOrTag), err)
	}

	var fetchErr *source.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Kind {
		case source.FetchNotFound:
			return p.fail(ctx, state, KindFetchNotFound,
				fmt.Sprintf("%s %s not found upstream", req.ProjectOrRepo, req.VersionOrTag), err)
		case source.FetchRateLimited:
			return p.fail(ctx, state, KindFetchRateLimited, "upstream rate limit reached, try again later", err)
		case source.FetchUnavailable:
			return p.fail(ctx, state, KindFetchUnavailable, "upstream source is unavailable", err)
		}
	}

	return p.fail(ctx, state, KindFetchUnavailable, "upstream source is unavailable", err)
}

func (p *Pipeline) fail(ctx context.Context, from State, kind Kind, detail string, err error) *Error {
	transition(ctx, from, StateFailed)
	slog.WarnContext(ctx, "request failed", "kind", string(kind), "detail", detail, "error", err)
	return &Error{Kind: kind, State: from, Detail: detail, Err: err}
}

func transition(ctx context.Context, from, to State) State {
	slog.DebugContext(ctx, "state transition", "from", string(from), "to", string(to))
	return to
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
