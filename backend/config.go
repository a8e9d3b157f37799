package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/h5media/podingest/backend/data"
	log15adapter "github.com/jackc/pgx-log15"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const defaultOwnerID = 1

// LoadConfig reads the ini file at path.
func LoadConfig(path string) (ini.File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config path %q: %w", path, err)
	}

	file, err := ini.LoadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("load config file %s: %w", abs, err)
	}

	return file, nil
}

// NewLogger builds a stdout logger filtered at log.level. The level "none"
// discards everything.
func NewLogger(conf ini.File) (log.Logger, error) {
	level, _ := conf.Get("log", "level")
	if level == "" {
		level = "warn"
	}

	handler, err := levelHandler(level, log.StdoutHandler)
	if err != nil {
		return nil, err
	}

	logger := log.New()
	logger.SetHandler(handler)
	return logger, nil
}

func levelHandler(level string, h log.Handler) (log.Handler, error) {
	if level == "none" {
		return log.DiscardHandler(), nil
	}

	lvl, err := log.LvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("bad log.level %q: %w", level, err)
	}

	return log.LvlFilterHandler(lvl, h), nil
}

// LoadIngestConfig reads the [ingest] section. Missing keys take their
// defaults.
func LoadIngestConfig(conf ini.File) (IngesterConfig, error) {
	config := IngesterConfig{
		MaxMB:         DefaultMaxMB,
		Timeout:       DefaultDownloadTimeout,
		MaxConcurrent: DefaultMaxConcurrent,
		OwnerID:       defaultOwnerID,
	}

	if s, ok := conf.Get("ingest", "max_mb"); ok {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || n <= 0 {
			return config, fmt.Errorf("bad ingest.max_mb: %q", s)
		}
		config.MaxMB = n
	}

	if s, ok := conf.Get("ingest", "timeout"); ok {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return config, fmt.Errorf("bad ingest.timeout: %q", s)
		}
		config.Timeout = d
	}

	if s, ok := conf.Get("ingest", "max_concurrent"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return config, fmt.Errorf("bad ingest.max_concurrent: %q", s)
		}
		config.MaxConcurrent = n
	}

	if s, ok := conf.Get("ingest", "user_id"); ok {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return config, fmt.Errorf("bad ingest.user_id: %q", s)
		}
		config.OwnerID = int32(n)
	}

	config.UserAgent, _ = conf.Get("ingest", "user_agent")

	return config, nil
}

func databaseDriver(conf ini.File) (string, error) {
	driver, _ := conf.Get("database", "driver")
	switch driver {
	case "", DriverPostgres:
		return DriverPostgres, nil
	case DriverSQLite:
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unknown database.driver %q", driver)
	}
}

func postgresConnString(conf ini.File) (string, error) {
	host, _ := conf.Get("database", "host")
	if host == "" {
		return "", errors.New("config must contain database.host")
	}

	if port, ok := conf.Get("database", "port"); ok {
		_, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return "", fmt.Errorf("bad database.port: %w", err)
		}
		host = net.JoinHostPort(host, port)
	}

	database, ok := conf.Get("database", "database")
	if !ok {
		return "", errors.New("config must contain database.database")
	}

	u := &url.URL{Scheme: "postgres", Host: host, Path: "/" + database}
	user, _ := conf.Get("database", "user")
	password, hasPassword := conf.Get("database", "password")
	switch {
	case user != "" && hasPassword:
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}

	return u.String(), nil
}

func NewPool(ctx context.Context, conf ini.File, logger log.Logger) (*pgxpool.Pool, error) {
	connString, err := postgresConnString(conf)
	if err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	logLevel := tracelog.LogLevelWarn
	if level, ok := conf.Get("log", "pgx_level"); ok {
		logLevel, err = tracelog.LogLevelFromString(level)
		if err != nil {
			return nil, fmt.Errorf("bad log.pgx_level: %w", err)
		}
	}

	config.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   log15adapter.NewLogger(logger.New("module", "pgx")),
		LogLevel: logLevel,
	}

	return pgxpool.NewWithConfig(ctx, config)
}

// OpenStore opens the store selected by database.driver. The returned
// function releases it.
func OpenStore(ctx context.Context, conf ini.File, logger log.Logger) (data.Store, func(), error) {
	driver, err := databaseDriver(conf)
	if err != nil {
		return nil, nil, err
	}

	switch driver {
	case DriverSQLite:
		path, ok := conf.Get("database", "path")
		if !ok {
			return nil, nil, errors.New("config must contain database.path")
		}
		db, err := data.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return data.NewSQLiteStore(db), func() { db.Close() }, nil
	default:
		pool, err := NewPool(ctx, conf, logger)
		if err != nil {
			return nil, nil, err
		}
		return data.NewPgxStore(pool), pool.Close, nil
	}
}

// Migrate applies pending schema migrations for the configured driver and
// returns the resulting version.
func Migrate(conf ini.File) (uint, error) {
	driver, err := databaseDriver(conf)
	if err != nil {
		return 0, err
	}

	if driver == DriverSQLite {
		path, ok := conf.Get("database", "path")
		if !ok {
			return 0, errors.New("config must contain database.path")
		}
		db, err := data.OpenSQLite(path)
		if err != nil {
			return 0, err
		}
		defer db.Close()
		return data.MigrateSQLite(db)
	}

	connString, err := postgresConnString(conf)
	if err != nil {
		return 0, err
	}
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return data.MigratePostgres(db)
}
