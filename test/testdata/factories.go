package testdata

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/h5media/podingest/backend/data"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgxutil"
	"github.com/stretchr/testify/require"
)

var counter atomic.Int64

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func CreatePodcast(t testing.TB, db DB, ctx context.Context, attrs map[string]any) map[string]any {
	n := counter.Add(1)

	if attrs == nil {
		attrs = make(map[string]any)
	}

	if _, ok := attrs["title"]; !ok {
		attrs["title"] = fmt.Sprintf("Podcast %v", n)
	}
	if _, ok := attrs["feed_url"]; !ok {
		attrs["feed_url"] = fmt.Sprintf("http://localhost/%v/feed.rss", n)
	}
	if _, ok := attrs["feed_url_key"]; !ok {
		attrs["feed_url_key"] = data.NormalizeKey(attrs["feed_url"].(string))
	}

	podcast, err := pgxutil.Insert(ctx, db, "podcasts", attrs)
	require.NoError(t, err)

	return podcast
}

func CreateEpisode(t testing.TB, db DB, ctx context.Context, attrs map[string]any) map[string]any {
	n := counter.Add(1)

	if attrs == nil {
		attrs = make(map[string]any)
	}

	if _, ok := attrs["podcast_id"]; !ok {
		attrs["podcast_id"] = CreatePodcast(t, db, ctx, nil)["id"]
	}
	if _, ok := attrs["owner_id"]; !ok {
		attrs["owner_id"] = 1
	}
	if _, ok := attrs["title"]; !ok {
		attrs["title"] = fmt.Sprintf("Episode %v", n)
	}
	if _, ok := attrs["url"]; !ok {
		attrs["url"] = fmt.Sprintf("http://localhost/%v.mp3", n)
	}
	if _, ok := attrs["url_key"]; !ok {
		attrs["url_key"] = data.NormalizeKey(attrs["url"].(string))
	}

	episode, err := pgxutil.Insert(ctx, db, "episodes", attrs)
	require.NoError(t, err)

	return episode
}
