package model

// SourceKind identifies which external system a request targets.
type SourceKind string

const (
	SourceKindIssueTracker SourceKind = "ISSUE_TRACKER"
	SourceKindRepoRelease  SourceKind = "REPO_RELEASE"
)

func (k SourceKind) Valid() bool {
	return k == SourceKindIssueTracker || k == SourceKindRepoRelease
}

// InterpretedRequest is the structured form of a user utterance after
// classification. ProjectOrRepo and VersionOrTag are non-empty once
// classification succeeds; SourceKind is set exactly once.
type InterpretedRequest struct {
	SourceKind    SourceKind
	ProjectOrRepo string
	VersionOrTag  string
	RawUtterance  string
}
