// Package render turns a canonical release-note document into a paginated
// Markdown artifact and persists it through the artifact store.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"relnotes.app/relnotes/common/id"
	"relnotes.app/relnotes/common/logger"
	"relnotes.app/relnotes/internal/model"
	"relnotes.app/relnotes/internal/store"
)

const noChangesBody = "_No changes found._"

type Renderer struct {
	store    store.ArtifactStore
	pageSize int
}

func NewRenderer(artifacts store.ArtifactStore, pageSize int) *Renderer {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Renderer{store: artifacts, pageSize: pageSize}
}

// Render produces the document artifact. A document with zero entries still
// renders, stating that no changes were found. The artifact name derives
// deterministically from project and version; a collision detected at write
// time is recovered once with a disambiguating suffix.
func (r *Renderer) Render(ctx context.Context, doc model.ReleaseNoteDocument, projectOrRepo, versionOrTag string) (model.Artifact, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relnotes.render"})

	content := r.renderContent(doc)
	name := artifactName(projectOrRepo, versionOrTag)

	exists, err := r.store.Exists(ctx, name)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("checking artifact name: %w", err)
	}
	if exists {
		disambiguated := disambiguate(name)
		slog.DebugContext(ctx, "artifact name collision, disambiguating",
			"name", name, "disambiguated", disambiguated)
		name = disambiguated
	}

	ref, err := r.store.Write(ctx, name, content)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("persisting artifact: %w", err)
	}

	return model.Artifact{
		Name:     name,
		Ref:      ref,
		ByteSize: len(content),
	}, nil
}

// renderContent is deterministic: identical documents produce identical
// bytes except for the GeneratedAt line.
func (r *Renderer) renderContent(doc model.ReleaseNoteDocument) string {
	var header strings.Builder
	header.WriteString("# " + doc.Title + "\n\n")
	if doc.Subtitle != "" {
		header.WriteString(doc.Subtitle + "\n\n")
	}
	if doc.ReleaseDate != "" {
		header.WriteString("## Release Date\n\n" + doc.ReleaseDate + "\n\n")
	}
	header.WriteString("_Generated at " + doc.GeneratedAt.UTC().Format(time.RFC3339) + "_\n\n")
	header.WriteString(r.renderSummary(doc.Entries))

	if len(doc.Entries) == 0 {
		return header.String() + noChangesBody + "\n"
	}

	pages := paginate(doc.Entries, r.pageSize)

	var out strings.Builder
	out.WriteString(header.String())
	for i, page := range pages {
		if i > 0 {
			out.WriteString("\n---\n\n")
		}
		// A heading is "(continued)" only when the page starts mid-section.
		continued := i > 0 && pages[i-1][len(pages[i-1])-1].Category == page[0].Category
		out.WriteString(renderPage(page, continued))
		out.WriteString(fmt.Sprintf("\n_Page %d of %d_\n", i+1, len(pages)))
	}

	return out.String()
}

func (r *Renderer) renderSummary(entries []model.NormalizedEntry) string {
	counts := make(map[model.Category]int)
	for _, e := range entries {
		counts[e.Category]++
	}

	var b strings.Builder
	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- **Total Entries**: %d\n", len(entries)))
	for _, c := range model.Categories() {
		if counts[c] > 0 {
			b.WriteString(fmt.Sprintf("- **%s**: %d\n", c.Heading(), counts[c]))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// renderPage writes one section heading per category present on the page.
// A section that continues from the previous page repeats its heading with
// a continuation marker.
func renderPage(entries []model.NormalizedEntry, continued bool) string {
	var b strings.Builder
	var current model.Category
	first := true

	for _, e := range entries {
		if first || e.Category != current {
			heading := e.Category.Heading()
			if first && continued {
				heading += " (continued)"
			}
			if !first {
				b.WriteString("\n")
			}
			b.WriteString("## " + heading + "\n\n")
			current = e.Category
			first = false
		}

		b.WriteString("- **" + e.Identifier + "**: " + e.Headline + "\n")
		if e.Detail != "" {
			b.WriteString("  " + e.Detail + "\n")
		}
	}

	return b.String()
}

func paginate(entries []model.NormalizedEntry, pageSize int) [][]model.NormalizedEntry {
	var pages [][]model.NormalizedEntry
	for start := 0; start < len(entries); start += pageSize {
		end := start + pageSize
		if end > len(entries) {
			end = len(entries)
		}
		pages = append(pages, entries[start:end])
	}
	return pages
}

func artifactName(projectOrRepo, versionOrTag string) string {
	return fmt.Sprintf("%s_%s_release_notes.md", slugify(projectOrRepo), slugify(versionOrTag))
}

func disambiguate(name string) string {
	base := strings.TrimSuffix(name, ".md")
	return fmt.Sprintf("%s_%d.md", base, id.New())
}

var slugChars = regexp.MustCompile(`[^a-z0-9.]+`)

func slugify(s string) string {
	s = strings.ToLower(s)
	s = slugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "unknown"
	}
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	return s
}
