package data

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgxrecord"
)

const uniqueViolationCode = "23505"

// PgxStore is a Store backed by PostgreSQL. db may be a pool, a connection,
// or a transaction.
type PgxStore struct {
	db Queryer
}

func NewPgxStore(db Queryer) *PgxStore {
	return &PgxStore{db: db}
}

// pgDuplicationError converts a unique violation on one of the natural key
// indexes into a DuplicationError. Any other error is returned unchanged.
func pgDuplicationError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}

	switch pgErr.ConstraintName {
	case "podcasts_feed_url_unq":
		return DuplicationError{Field: "feed_url"}
	case "episodes_url_unq":
		return DuplicationError{Field: "url"}
	}

	return err
}

const selectPodcastSQL = `select id, feed_url, title, website, description from podcasts`

func rowToAddrOfPodcast(row pgx.CollectableRow) (*Podcast, error) {
	p := &Podcast{}
	err := row.Scan(&p.ID, &p.FeedURL, &p.Title, &p.Website, &p.Description)
	return p, err
}

func (s *PgxStore) SelectPodcastByFeedURL(ctx context.Context, feedURL string) (*Podcast, error) {
	rows, _ := s.db.Query(ctx, selectPodcastSQL+` where feed_url_key = $1`, NormalizeKey(feedURL))
	p, err := pgx.CollectOneRow(rows, rowToAddrOfPodcast)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return p, nil
}

func (s *PgxStore) SelectPodcasts(ctx context.Context) ([]Podcast, error) {
	rows, _ := s.db.Query(ctx, selectPodcastSQL+` order by id`)
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Podcast, error) {
		p, err := rowToAddrOfPodcast(row)
		if err != nil {
			return Podcast{}, err
		}
		return *p, nil
	})
}

func (s *PgxStore) InsertPodcast(ctx context.Context, row *Podcast) error {
	args := pgsql.Args{}

	var columns, values []string

	columns = append(columns, `feed_url`)
	values = append(values, args.Use(&row.FeedURL).String())
	columns = append(columns, `feed_url_key`)
	values = append(values, args.Use(row.NaturalKey()).String())
	columns = append(columns, `title`)
	values = append(values, args.Use(&row.Title).String())
	columns = append(columns, `website`)
	values = append(values, args.Use(&row.Website).String())
	columns = append(columns, `description`)
	values = append(values, args.Use(&row.Description).String())

	sql := `insert into "podcasts"(` + strings.Join(columns, ", ") + `)
values(` + strings.Join(values, ",") + `)
returning "id"
  `

	err := s.db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID)
	return pgDuplicationError(err)
}

func (s *PgxStore) UpdatePodcast(ctx context.Context, row *Podcast) error {
	sets := make([]string, 0, 5)
	args := pgsql.Args{}

	sets = append(sets, `feed_url`+"="+args.Use(&row.FeedURL).String())
	sets = append(sets, `feed_url_key`+"="+args.Use(row.NaturalKey()).String())
	sets = append(sets, `title`+"="+args.Use(&row.Title).String())
	sets = append(sets, `website`+"="+args.Use(&row.Website).String())
	sets = append(sets, `description`+"="+args.Use(&row.Description).String())

	sql := `update "podcasts" set ` + strings.Join(sets, ", ") + ` where ` + `"id"=` + args.Use(row.ID).String()

	_, err := pgxrecord.ExecRow(ctx, s.db, sql, args.Values()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return pgDuplicationError(err)
}

const selectEpisodeSQL = `select id, podcast_id, owner_id, url, title, publish_time, description from episodes`

func rowToAddrOfEpisode(row pgx.CollectableRow) (*Episode, error) {
	e := &Episode{}
	err := row.Scan(&e.ID, &e.PodcastID, &e.OwnerID, &e.URL, &e.Title, &e.PublishTime, &e.Description)
	return e, err
}

func (s *PgxStore) SelectEpisodeByURL(ctx context.Context, url string) (*Episode, error) {
	rows, _ := s.db.Query(ctx, selectEpisodeSQL+` where url_key = $1`, NormalizeKey(url))
	e, err := pgx.CollectOneRow(rows, rowToAddrOfEpisode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return e, nil
}

func (s *PgxStore) SelectEpisodesByPodcastID(ctx context.Context, podcastID int32) ([]Episode, error) {
	rows, _ := s.db.Query(ctx, selectEpisodeSQL+` where podcast_id = $1 order by id`, podcastID)
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Episode, error) {
		e, err := rowToAddrOfEpisode(row)
		if err != nil {
			return Episode{}, err
		}
		return *e, nil
	})
}

func (s *PgxStore) InsertEpisode(ctx context.Context, row *Episode) error {
	args := pgsql.Args{}

	var columns, values []string

	columns = append(columns, `podcast_id`)
	values = append(values, args.Use(&row.PodcastID).String())
	columns = append(columns, `owner_id`)
	values = append(values, args.Use(&row.OwnerID).String())
	columns = append(columns, `url`)
	values = append(values, args.Use(&row.URL).String())
	columns = append(columns, `url_key`)
	values = append(values, args.Use(row.NaturalKey()).String())
	columns = append(columns, `title`)
	values = append(values, args.Use(&row.Title).String())
	columns = append(columns, `publish_time`)
	values = append(values, args.Use(&row.PublishTime).String())
	columns = append(columns, `description`)
	values = append(values, args.Use(&row.Description).String())

	sql := `insert into "episodes"(` + strings.Join(columns, ", ") + `)
values(` + strings.Join(values, ",") + `)
returning "id"
  `

	err := s.db.QueryRow(ctx, sql, args.Values()...).Scan(&row.ID)
	return pgDuplicationError(err)
}

func (s *PgxStore) UpdateEpisode(ctx context.Context, row *Episode) error {
	sets := make([]string, 0, 6)
	args := pgsql.Args{}

	sets = append(sets, `podcast_id`+"="+args.Use(&row.PodcastID).String())
	sets = append(sets, `url`+"="+args.Use(&row.URL).String())
	sets = append(sets, `url_key`+"="+args.Use(row.NaturalKey()).String())
	sets = append(sets, `title`+"="+args.Use(&row.Title).String())
	sets = append(sets, `publish_time`+"="+args.Use(&row.PublishTime).String())
	sets = append(sets, `description`+"="+args.Use(&row.Description).String())

	sql := `update "episodes" set ` + strings.Join(sets, ", ") + ` where ` + `"id"=` + args.Use(row.ID).String()

	_, err := pgxrecord.ExecRow(ctx, s.db, sql, args.Values()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return pgDuplicationError(err)
}
