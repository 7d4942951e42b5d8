package model

import "time"

// IssueRecord is a single issue fetched from the issue tracker.
type IssueRecord struct {
	ID         string
	Title      string
	Type       string
	Status     string
	FixVersion string
}

// ReleaseRecord is a single release fetched from the repository host.
type ReleaseRecord struct {
	Tag         string
	Name        string
	Body        string
	PublishedAt time.Time
}

// RawRecord is the adapter-specific union shape. Exactly one of the two
// fields is set, depending on which adapter produced it. Downstream stages
// treat it as opaque until normalization.
type RawRecord struct {
	Issue   *IssueRecord
	Release *ReleaseRecord
}

func IssueRaw(issue IssueRecord) RawRecord {
	return RawRecord{Issue: &issue}
}

func ReleaseRaw(release ReleaseRecord) RawRecord {
	return RawRecord{Release: &release}
}
