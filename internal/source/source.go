// Package source holds the adapters that fetch raw records from external
// systems. One capability, two variants selected by source kind.
package source

import (
	"context"
	"fmt"

	"relnotes.app/relnotes/internal/model"
)

// FetchKind classifies adapter failures. These propagate to the
// orchestrator unmodified; retry policy belongs to the caller, never to the
// adapter.
type FetchKind string

const (
	FetchNotFound    FetchKind = "NOT_FOUND"
	FetchUnavailable FetchKind = "UPSTREAM_UNAVAILABLE"
	FetchRateLimited FetchKind = "RATE_LIMITED"
)

type FetchError struct {
	Kind   FetchKind
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Kind, e.Detail)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Adapter fetches raw records for one external system. Implementations
// return an empty slice (not an error) when the query matches nothing,
// and a *FetchError for upstream failures.
type Adapter interface {
	Fetch(ctx context.Context, projectOrRepo, versionOrTag string) ([]model.RawRecord, error)
}

// ReleaseDater is an optional adapter capability: resolving the release
// date of a version. Lookups are best-effort; callers ignore failures.
type ReleaseDater interface {
	ReleaseDate(ctx context.Context, projectOrRepo, versionOrTag string) (string, error)
}

// Registry dispatches to the adapter for a source kind.
type Registry struct {
	adapters map[model.SourceKind]Adapter
}

func NewRegistry(tracker, repo Adapter) *Registry {
	return &Registry{
		adapters: map[model.SourceKind]Adapter{
			model.SourceKindIssueTracker: tracker,
			model.SourceKindRepoRelease:  repo,
		},
	}
}

func (r *Registry) ForKind(kind model.SourceKind) (Adapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("no adapter registered for source kind %q", kind)
	}
	return adapter, nil
}
