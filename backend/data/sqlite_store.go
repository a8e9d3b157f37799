package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore is a Store backed by an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLite opens the database at path (":memory:" is allowed), enables
// foreign keys, and applies pending migrations. The pool is limited to one
// connection so an in-memory database is shared by every caller and writes
// never hit SQLITE_BUSY.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := MigrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func sqliteDuplicationError(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	if sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "podcasts.feed_url_key"), strings.Contains(msg, "podcasts_feed_url_unq"):
		return DuplicationError{Field: "feed_url"}
	case strings.Contains(msg, "episodes.url_key"), strings.Contains(msg, "episodes_url_unq"):
		return DuplicationError{Field: "url"}
	}

	return err
}

func encodeSQLiteTime(t pgtype.Timestamptz) sql.NullString {
	if !t.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Time.UTC().Format(time.RFC3339Nano), Valid: true}
}

func decodeSQLiteTime(s sql.NullString) (pgtype.Timestamptz, error) {
	if !s.Valid {
		return pgtype.Timestamptz{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return pgtype.Timestamptz{}, fmt.Errorf("bad publish_time %q: %w", s.String, err)
	}
	return pgtype.Timestamptz{Time: t, Valid: true}, nil
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePodcast(row sqliteScanner) (*Podcast, error) {
	p := &Podcast{}
	err := row.Scan(&p.ID, &p.FeedURL, &p.Title, &p.Website, &p.Description)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanSQLiteEpisode(row sqliteScanner) (*Episode, error) {
	e := &Episode{}
	var publishTime sql.NullString
	err := row.Scan(&e.ID, &e.PodcastID, &e.OwnerID, &e.URL, &e.Title, &publishTime, &e.Description)
	if err != nil {
		return nil, err
	}
	e.PublishTime, err = decodeSQLiteTime(publishTime)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) SelectPodcastByFeedURL(ctx context.Context, feedURL string) (*Podcast, error) {
	row := s.db.QueryRowContext(ctx, selectPodcastSQL+` WHERE feed_url_key = ?`, NormalizeKey(feedURL))
	p, err := scanSQLitePodcast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *SQLiteStore) SelectPodcasts(ctx context.Context) ([]Podcast, error) {
	rows, err := s.db.QueryContext(ctx, selectPodcastSQL+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var podcasts []Podcast
	for rows.Next() {
		p, err := scanSQLitePodcast(rows)
		if err != nil {
			return nil, err
		}
		podcasts = append(podcasts, *p)
	}

	return podcasts, rows.Err()
}

func (s *SQLiteStore) InsertPodcast(ctx context.Context, row *Podcast) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO podcasts (feed_url, feed_url_key, title, website, description) VALUES (?, ?, ?, ?, ?)`,
		row.FeedURL, row.NaturalKey(), row.Title, row.Website, row.Description,
	)
	if err != nil {
		return sqliteDuplicationError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	row.ID = int32(id)
	return nil
}

func (s *SQLiteStore) UpdatePodcast(ctx context.Context, row *Podcast) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE podcasts SET feed_url = ?, feed_url_key = ?, title = ?, website = ?, description = ? WHERE id = ?`,
		row.FeedURL, row.NaturalKey(), row.Title, row.Website, row.Description, row.ID,
	)
	if err != nil {
		return sqliteDuplicationError(err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) SelectEpisodeByURL(ctx context.Context, url string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, selectEpisodeSQL+` WHERE url_key = ?`, NormalizeKey(url))
	e, err := scanSQLiteEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *SQLiteStore) SelectEpisodesByPodcastID(ctx context.Context, podcastID int32) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx, selectEpisodeSQL+` WHERE podcast_id = ? ORDER BY id`, podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		e, err := scanSQLiteEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, *e)
	}

	return episodes, rows.Err()
}

func (s *SQLiteStore) InsertEpisode(ctx context.Context, row *Episode) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (podcast_id, owner_id, url, url_key, title, publish_time, description) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.PodcastID, row.OwnerID, row.URL, row.NaturalKey(), row.Title, encodeSQLiteTime(row.PublishTime), row.Description,
	)
	if err != nil {
		return sqliteDuplicationError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	row.ID = int32(id)
	return nil
}

func (s *SQLiteStore) UpdateEpisode(ctx context.Context, row *Episode) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET podcast_id = ?, url = ?, url_key = ?, title = ?, publish_time = ?, description = ? WHERE id = ?`,
		row.PodcastID, row.URL, row.NaturalKey(), row.Title, encodeSQLiteTime(row.PublishTime), row.Description, row.ID,
	)
	if err != nil {
		return sqliteDuplicationError(err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}
