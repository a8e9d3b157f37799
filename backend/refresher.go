package backend

import (
	"context"
	"time"

	"github.com/h5media/podingest/backend/data"
	log "gopkg.in/inconshreveable/log15.v2"
)

// Refresher re-ingests every stored podcast from its feed URL.
type Refresher struct {
	store    data.Store
	ingester *Ingester
	ownerID  int32
	logger   log.Logger
}

func NewRefresher(store data.Store, ingester *Ingester, ownerID int32, logger log.Logger) *Refresher {
	return &Refresher{store: store, ingester: ingester, ownerID: ownerID, logger: logger}
}

// RefreshAll ingests every stored podcast once.
func (r *Refresher) RefreshAll(ctx context.Context) ([]FeedOutcome, error) {
	podcasts, err := r.store.SelectPodcasts(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("SelectPodcasts succeeded", "n", len(podcasts))

	feedURLs := make([]string, len(podcasts))
	for i := range podcasts {
		feedURLs[i] = podcasts[i].FeedURL
	}

	outcomes := r.ingester.IngestAll(ctx, feedURLs, r.ownerID)
	for _, o := range outcomes {
		if o.Err != nil {
			r.logger.Error("refresh failed", "url", o.FeedURL, "error", o.Err)
		}
	}

	return outcomes, nil
}

// KeepFeedsFresh calls RefreshAll every interval until ctx is cancelled.
func (r *Refresher) KeepFeedsFresh(ctx context.Context, interval time.Duration) error {
	for {
		startTime := time.Now()

		if _, err := r.RefreshAll(ctx); err != nil {
			r.logger.Error("RefreshAll failed", "error", err)
		}

		if err := sleepUntil(ctx, startTime.Add(interval)); err != nil {
			return err
		}
	}
}

// sleepUntil sleeps until t or until ctx is done. If t is in the past it
// returns immediately.
func sleepUntil(ctx context.Context, t time.Time) error {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
