package model

import "time"

// Category is the canonical change category every source maps into.
type Category string

const (
	CategoryFeature Category = "FEATURE"
	CategoryBugfix  Category = "BUGFIX"
	CategoryTask    Category = "TASK"
	CategoryOther   Category = "OTHER"
)

// categoryRank orders sections in rendered documents and entries within
// normalized output. Unknown categories sort last.
var categoryRank = map[Category]int{
	CategoryFeature: 0,
	CategoryBugfix:  1,
	CategoryTask:    2,
	CategoryOther:   3,
}

func (c Category) Rank() int {
	if r, ok := categoryRank[c]; ok {
		return r
	}
	return len(categoryRank)
}

// Categories lists all categories in rank order.
func Categories() []Category {
	return []Category{CategoryFeature, CategoryBugfix, CategoryTask, CategoryOther}
}

func (c Category) Heading() string {
	switch c {
	case CategoryFeature:
		return "New Features"
	case CategoryBugfix:
		return "Bug Fixes"
	case CategoryTask:
		return "Tasks"
	default:
		return "Other Changes"
	}
}

// NormalizedEntry is one change line in the canonical schema.
type NormalizedEntry struct {
	Identifier string
	Headline   string
	Category   Category
	Detail     string
}

// ReleaseNoteDocument is the canonical document shape handed to the
// renderer. Entries are ordered (category rank, then identifier) so that
// repeated renders of the same input are byte-identical modulo GeneratedAt.
type ReleaseNoteDocument struct {
	Title       string
	Subtitle    string
	ReleaseDate string // optional, empty when the source doesn't know it
	Entries     []NormalizedEntry
	GeneratedAt time.Time
}

// Artifact is the rendered output file. It is owned by the renderer; the
// orchestrator response only references it.
type Artifact struct {
	Name     string `json:"name"`
	Ref      string `json:"ref"`
	ByteSize int    `json:"byte_size"`
}
