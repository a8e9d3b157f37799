package data

import "github.com/jackc/pgx/v5/pgtype"

type Episode struct {
	ID          int32
	PodcastID   int32
	OwnerID     int32
	URL         string
	Title       string
	PublishTime pgtype.Timestamptz
	Description string
}

func (e *Episode) IsPersisted() bool {
	return e.ID != 0
}

// Merge copies the mergeable fields of src onto e. Empty source values are
// skipped unless copyNulls is set. OwnerID is never merged.
func (e *Episode) Merge(src *Episode, copyNulls bool) {
	if src.PodcastID != 0 || copyNulls {
		e.PodcastID = src.PodcastID
	}
	if src.Title != "" || copyNulls {
		e.Title = src.Title
	}
	if src.URL != "" || copyNulls {
		e.URL = src.URL
	}
	if src.PublishTime.Valid || copyNulls {
		e.PublishTime = src.PublishTime
	}
	if src.Description != "" || copyNulls {
		e.Description = src.Description
	}
}

func (e *Episode) NaturalKey() string {
	return NormalizeKey(e.URL)
}
