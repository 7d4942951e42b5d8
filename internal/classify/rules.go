package classify

import (
	"fmt"
	"regexp"
	"strings"

	"relnotes.app/relnotes/internal/model"
)

// Lexical cues for deciding the source kind. An owner/repo token with a
// slash implies a repository host; an uppercase tracker-style project key
// with a dotted version implies the issue tracker.
var (
	repoPattern    = regexp.MustCompile(`\b([A-Za-z0-9_.-]*[A-Za-z][A-Za-z0-9_.-]*/[A-Za-z0-9_.-]*[A-Za-z][A-Za-z0-9_.-]*)\b`)
	versionPattern = regexp.MustCompile(`\bv?\d+(?:\.\d+)+(?:[-.][0-9A-Za-z.]+)?\b`)
	keyPattern     = regexp.MustCompile(`\b([A-Z][A-Z0-9]+)\b`)

	// URL-style mentions ("github.com/owner/repo") would otherwise match
	// the host as the owner segment.
	hostPrefix = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?github\.com/`)
)

// Uppercase words that look like project keys but are vocabulary of the
// request itself.
var keyStopwords = map[string]bool{
	"JIRA":   true,
	"GITHUB": true,
	"API":    true,
	"URL":    true,
	"PDF":    true,
	"README": true,
}

type extraction struct {
	Kind          model.SourceKind
	ProjectOrRepo string
	VersionOrTag  string
}

// extract is the deterministic rule-based extractor. It is the authority
// for classification: the generative pass may only fill in what the rules
// could not find, never override them.
func extract(utterance string) (extraction, error) {
	lower := strings.ToLower(utterance)

	scrubbed := hostPrefix.ReplaceAllString(utterance, " ")
	repos := dedupe(repoPattern.FindAllString(scrubbed, -1))

	// Mask repo tokens so their segments don't get re-matched as versions
	// or project keys.
	masked := scrubbed
	for _, r := range repos {
		masked = strings.ReplaceAll(masked, r, strings.Repeat(" ", len(r)))
	}

	versions := dedupe(versionPattern.FindAllString(masked, -1))
	if len(repos) == 0 {
		// No repo token masked anything; search the full utterance.
		versions = dedupe(versionPattern.FindAllString(scrubbed, -1))
	}

	keyMasked := masked
	for _, v := range versions {
		keyMasked = strings.ReplaceAll(keyMasked, v, strings.Repeat(" ", len(v)))
	}
	var keys []string
	for _, k := range dedupe(keyPattern.FindAllString(keyMasked, -1)) {
		if !keyStopwords[k] {
			keys = append(keys, k)
		}
	}

	repoCue := strings.Contains(lower, "github")
	trackerCue := strings.Contains(lower, "jira") ||
		strings.Contains(lower, "fixversion") ||
		strings.Contains(lower, "project =")

	var kind model.SourceKind
	var project string

	switch {
	case len(repos) > 1 || len(keys) > 1:
		return extraction{}, fmt.Errorf("%w: multiple candidate projects in %q", ErrAmbiguous, utterance)
	case len(repos) == 1 && len(keys) == 1:
		// Both pattern families matched. An explicit cue breaks the tie;
		// otherwise refuse to guess a priority order.
		switch {
		case repoCue && !trackerCue:
			kind, project = model.SourceKindRepoRelease, repos[0]
		case trackerCue && !repoCue:
			kind, project = model.SourceKindIssueTracker, keys[0]
		default:
			return extraction{}, fmt.Errorf("%w: %q matches both a repository and a tracker project", ErrAmbiguous, utterance)
		}
	case len(repos) == 1:
		kind, project = model.SourceKindRepoRelease, repos[0]
	case len(keys) == 1:
		kind, project = model.SourceKindIssueTracker, keys[0]
	default:
		return extraction{}, fmt.Errorf("%w: no project key or owner/repo found", ErrMissingParameter)
	}

	if len(versions) == 0 {
		return extraction{}, fmt.Errorf("%w: no version or tag found", ErrMissingParameter)
	}
	if len(versions) > 1 {
		return extraction{}, fmt.Errorf("%w: multiple candidate versions %v", ErrAmbiguous, versions)
	}

	return extraction{
		Kind:          kind,
		ProjectOrRepo: project,
		VersionOrTag:  versions[0],
	}, nil
}

// dedupe preserves first-occurrence order, which keeps extraction
// deterministic for a given utterance.
func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
