package pipeline

import "fmt"

// Kind is the stable failure taxonomy surfaced to callers. Every stage
// failure is terminal for its request and maps onto exactly one kind.
type Kind string

const (
	KindModerationRejected             Kind = "MODERATION_REJECTED"
	KindClassificationAmbiguous        Kind = "CLASSIFICATION_AMBIGUOUS"
	KindClassificationMissingParameter Kind = "CLASSIFICATION_MISSING_PARAMETER"
	KindFetchNotFound                  Kind = "FETCH_NOT_FOUND"
	KindFetchUnavailable               Kind = "FETCH_UPSTREAM_UNAVAILABLE"
	KindFetchRateLimited               Kind = "FETCH_RATE_LIMITED"
	KindUpstreamTimeout                Kind = "UPSTREAM_TIMEOUT"
	KindRenderIOFailure                Kind = "RENDER_IO_FAILURE"

	// KindInternal covers failures outside the request taxonomy (for
	// example the moderation service erroring without timing out). The
	// caller still gets a kind and a descriptive detail, never a raw
	// internal error.
	KindInternal Kind = "INTERNAL"
)

// Error is the structured failure returned by the pipeline. State records
// where the linear state machine stopped.
type Error struct {
	Kind   Kind
	State  State
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
