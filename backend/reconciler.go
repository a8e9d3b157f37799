package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/h5media/podingest/backend/data"
	log "gopkg.in/inconshreveable/log15.v2"
)

// An insert that loses a unique key race is retried as fetch-then-merge. A
// record that is inserted and then vanishes between attempts could loop
// forever, so the number of attempts is bounded.
const maxReconcileAttempts = 3

// Reconciler saves podcasts and episodes by natural key. Lookups are
// case-insensitive and a lost insert race is converted into a merge into the
// winning row.
type Reconciler struct {
	store  data.Store
	errors *ErrorCollector
	logger log.Logger
}

func NewReconciler(store data.Store, errors *ErrorCollector, logger log.Logger) *Reconciler {
	return &Reconciler{store: store, errors: errors, logger: logger}
}

// LookupPodcast returns the persisted podcast for feedURL or nil if there is
// none.
func (r *Reconciler) LookupPodcast(ctx context.Context, feedURL string) (*data.Podcast, error) {
	podcast, err := r.store.SelectPodcastByFeedURL(ctx, feedURL)
	if errors.Is(err, data.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return podcast, nil
}

// SavePodcast persists p. A persisted podcast is updated in place. Otherwise
// the existing row with the same feed URL receives the non-empty fields of p,
// or p is inserted when there is no such row. On return p holds the stored
// state including its ID.
func (r *Reconciler) SavePodcast(ctx context.Context, p *data.Podcast) error {
	if p.IsPersisted() {
		return r.store.UpdatePodcast(ctx, p)
	}

	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		existing, err := r.LookupPodcast(ctx, p.FeedURL)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Merge(p, false)
			err = r.store.UpdatePodcast(ctx, existing)
			if err != nil {
				return err
			}
			*p = *existing
			return nil
		}

		candidate := *p
		err = r.store.InsertPodcast(ctx, &candidate)
		if err == nil {
			*p = candidate
			return nil
		}

		var dupErr data.DuplicationError
		if !errors.As(err, &dupErr) {
			return err
		}

		r.errors.Add("podcast insert conflict resolved by merge")
		r.logger.Info("podcast insert conflict", "feed_url", p.FeedURL, "attempt", attempt)
	}

	return fmt.Errorf("podcast %s: gave up after %d conflicting inserts", p.FeedURL, maxReconcileAttempts)
}

// SaveEpisode persists e by URL. When an episode with the same URL exists it
// receives the non-empty fields of e and inserted is false. On return e holds
// the stored state including its ID.
func (r *Reconciler) SaveEpisode(ctx context.Context, e *data.Episode) (inserted bool, err error) {
	if e.IsPersisted() {
		return false, r.store.UpdateEpisode(ctx, e)
	}

	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		existing, err := r.store.SelectEpisodeByURL(ctx, e.URL)
		if err != nil && !errors.Is(err, data.ErrNotFound) {
			return false, err
		}

		if err == nil {
			existing.Merge(e, false)
			err = r.store.UpdateEpisode(ctx, existing)
			if err != nil {
				return false, err
			}
			*e = *existing
			return false, nil
		}

		candidate := *e
		err = r.store.InsertEpisode(ctx, &candidate)
		if err == nil {
			*e = candidate
			return true, nil
		}

		var dupErr data.DuplicationError
		if !errors.As(err, &dupErr) {
			return false, err
		}

		r.errors.Add("episode insert conflict resolved by merge")
		r.logger.Info("episode insert conflict", "url", e.URL, "attempt", attempt)
	}

	return false, fmt.Errorf("episode %s: gave up after %d conflicting inserts", e.URL, maxReconcileAttempts)
}
