package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/testdb"
)

// InitTestDBManager performs the standard initialization of a *testdb.Manager for PostgreSQL store tests. It requires
// a *testing.M to ensure it is only called by TestMain. It returns nil when TEST_DATABASE is not set so callers can
// skip database tests. The database named by TEST_DATABASE must already be migrated. If connecting fails it calls
// os.Exit(1).
func InitTestDBManager(*testing.M) *testdb.Manager {
	dbName := os.Getenv("TEST_DATABASE")
	if dbName == "" {
		return nil
	}

	manager := &testdb.Manager{
		ResetDB: func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, `truncate episodes, podcasts restart identity cascade`)
			return err
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	err := manager.Connect(ctx, fmt.Sprintf("dbname=%s", dbName))
	if err != nil {
		fmt.Println("failed to init testdb.Manager:", err)
		os.Exit(1)
	}

	return manager
}
