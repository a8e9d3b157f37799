package data

type Podcast struct {
	ID          int32
	FeedURL     string
	Title       string
	Website     string
	Description string
}

// IsPersisted reports whether the podcast has been assigned an ID by a store.
func (p *Podcast) IsPersisted() bool {
	return p.ID != 0
}

// Merge copies the mergeable fields of src onto p. Empty source values are
// skipped unless copyNulls is set.
func (p *Podcast) Merge(src *Podcast, copyNulls bool) {
	if src.Title != "" || copyNulls {
		p.Title = src.Title
	}
	if src.Website != "" || copyNulls {
		p.Website = src.Website
	}
	if src.FeedURL != "" || copyNulls {
		p.FeedURL = src.FeedURL
	}
	if src.Description != "" || copyNulls {
		p.Description = src.Description
	}
}

// NaturalKey returns the normalized feed URL used for deduplication.
func (p *Podcast) NaturalKey() string {
	return NormalizeKey(p.FeedURL)
}
