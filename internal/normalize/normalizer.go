// Package normalize maps adapter-specific record shapes into the canonical
// release-note schema. It is a pure function layer: no I/O, no state.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"relnotes.app/relnotes/internal/model"
)

// Issue-tracker native types recognized by the canonical mapping. Anything
// else falls back to OTHER.
var issueTypeCategories = map[string]model.Category{
	"Bug":         model.CategoryBugfix,
	"New Feature": model.CategoryFeature,
	"Story":       model.CategoryFeature,
	"Task":        model.CategoryTask,
	"Sub-task":    model.CategoryTask,
}

// Normalize maps raw records into normalized entries, sorted by category
// rank and then identifier so output is deterministic and testable.
func Normalize(records []model.RawRecord, kind model.SourceKind) []model.NormalizedEntry {
	entries := []model.NormalizedEntry{}

	for _, record := range records {
		switch {
		case record.Issue != nil:
			entries = append(entries, normalizeIssue(*record.Issue))
		case record.Release != nil:
			entries = append(entries, normalizeRelease(*record.Release)...)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category.Rank() < entries[j].Category.Rank()
		}
		return entries[i].Identifier < entries[j].Identifier
	})

	return entries
}

func normalizeIssue(issue model.IssueRecord) model.NormalizedEntry {
	category, ok := issueTypeCategories[issue.Type]
	if !ok {
		category = model.CategoryOther
	}

	detail := issue.Status
	if issue.FixVersion != "" {
		if detail != "" {
			detail += ", "
		}
		detail += "fix version " + issue.FixVersion
	}

	return model.NormalizedEntry{
		Identifier: issue.ID,
		Headline:   issue.Title,
		Category:   category,
		Detail:     detail,
	}
}

// normalizeRelease subdivides a release body line-by-line using marker
// words. Subdivision is best-effort: a body that yields nothing becomes a
// single OTHER entry, never a failure.
func normalizeRelease(release model.ReleaseRecord) []model.NormalizedEntry {
	var entries []model.NormalizedEntry

	seq := 0
	for _, raw := range strings.Split(release.Body, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		seq++
		entries = append(entries, model.NormalizedEntry{
			Identifier: fmt.Sprintf("%s-%03d", release.Tag, seq),
			Headline:   line,
			Category:   classifyLine(line),
		})
	}

	if len(entries) == 0 {
		headline := release.Name
		if headline == "" {
			headline = release.Tag
		}
		return []model.NormalizedEntry{{
			Identifier: release.Tag,
			Headline:   headline,
			Category:   model.CategoryOther,
			Detail:     strings.TrimSpace(release.Body),
		}}
	}

	return entries
}

func classifyLine(line string) model.Category {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "fix") || strings.Contains(lower, "bug"):
		return model.CategoryBugfix
	case strings.Contains(lower, "feature") || strings.Contains(lower, "add") || strings.Contains(lower, "new"):
		return model.CategoryFeature
	case strings.Contains(lower, "improve") || strings.Contains(lower, "update") || strings.Contains(lower, "enhance"):
		return model.CategoryTask
	default:
		return model.CategoryOther
	}
}

var (
	markdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	leadingMark  = regexp.MustCompile(`^[*\-+#>]+\s*`)
	spaces       = regexp.MustCompile(`\s+`)
)

// cleanLine strips markdown decoration so entries read as plain text:
// links become their text, backticks and leading bullets/headings go away.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = markdownLink.ReplaceAllString(line, "$1")
	line = strings.ReplaceAll(line, "`", "")
	line = leadingMark.ReplaceAllString(line, "")
	line = spaces.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}
