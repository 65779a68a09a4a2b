// Package store provides the durable local cache backing offline
// reads and the sync queue. All operations work against a per-device
// SQLite database and never touch the network.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/Barneycle/ganapp-core/internal/db"
	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
)

// Store provides typed persistence for cached records, queued
// operations and sync notices.
type Store struct {
	db *db.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and reused.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// Open opens the database at path and applies pending schema
// migrations before returning a usable store.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	database, err := db.Open(path, busyTimeout)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to open local cache", err)
	}

	if err := db.NewMigrator(database.DB, db.MigrationsFS()).Up(); err != nil {
		database.Close()
		return nil, apperrors.Wrap(apperrors.ErrMigration, "failed to migrate local cache", err)
	}

	return New(database), nil
}

// New wraps an already-opened database. The caller keeps ownership of
// schema setup; Open runs migrations before handing the connection here.
func New(database *db.DB) *Store {
	return &Store{db: database}
}

// DB exposes the underlying connection for migrations and tooling.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Close releases cached statements and closes the database.
func (s *Store) Close() error {
	s.stmtCache.Range(func(key, value interface{}) bool {
		value.(*sql.Stmt).Close()
		return true
	})
	return s.db.Close()
}

// prepare gets or creates a cached prepared statement for query.
func (s *Store) prepare(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine prepared this first, drop the duplicate.
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

func nowUnix() int64 {
	return time.Now().Unix()
}
