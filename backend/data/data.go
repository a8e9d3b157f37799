// Package data holds the podcast and episode records produced by feed
// ingestion and the stores that persist them.
package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

// NormalizeKey folds a feed URL or episode URL to the form every store
// compares natural keys in. It folds non-ASCII letters too.
func NormalizeKey(s string) string {
	return strings.ToLower(s)
}

// DuplicationError is returned by inserts and updates that would violate a
// unique natural key.
type DuplicationError struct {
	Field string // Field or fields that caused the rejection
}

func (e DuplicationError) Error() string {
	return fmt.Sprintf("%s is already taken", e.Field)
}

// NaturalKeyLookup finds persisted records by their business key. Both
// lookups are case-insensitive exact matches.
type NaturalKeyLookup interface {
	SelectPodcastByFeedURL(ctx context.Context, feedURL string) (*Podcast, error)
	SelectEpisodeByURL(ctx context.Context, url string) (*Episode, error)
}

// Store is the persistence interface used by the ingestion engine. Inserts
// assign the record ID. Inserts and updates return DuplicationError when
// the case-insensitive feed URL or episode URL is already taken.
type Store interface {
	NaturalKeyLookup

	InsertPodcast(ctx context.Context, podcast *Podcast) error
	UpdatePodcast(ctx context.Context, podcast *Podcast) error
	SelectPodcasts(ctx context.Context) ([]Podcast, error)

	InsertEpisode(ctx context.Context, episode *Episode) error
	UpdateEpisode(ctx context.Context, episode *Episode) error
	SelectEpisodesByPodcastID(ctx context.Context, podcastID int32) ([]Episode, error)
}
