package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs
// within a context. Stages enrich the context as they learn more about a
// request (the classifier adds source_kind/project/version, for example),
// so later log statements carry them without being passed explicitly.
type LogFields struct {
	RequestID  *int64  // generation request id
	SourceKind *string // ISSUE_TRACKER or REPO_RELEASE once classified
	Project    *string // project key or owner/repo once classified
	Version    *string // version or tag once classified
	Component  string  // component name, e.g. "relnotes.pipeline"
}

// WithLogFields enriches context with structured log fields. Multiple calls
// merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context, empty if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.RequestID != nil {
		result.RequestID = next.RequestID
	}
	if next.SourceKind != nil {
		result.SourceKind = next.SourceKind
	}
	if next.Project != nil {
		result.Project = next.Project
	}
	if next.Version != nil {
		result.Version = next.Version
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value, for setting LogFields
// inline.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging raw utterances.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
