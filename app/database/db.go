package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const memoryPath = ":memory:"

type DB struct {
	*sql.DB
}

var _ TxRunner = (*DB)(nil)

// Open opens the SQLite database at path and applies pending migrations.
// An in-memory database is pinned to a single connection, otherwise every
// pooled connection would see its own empty database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == memoryPath {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("Database migrations applied", "path", path, "version", version, "dirty", dirty)

	return &DB{DB: db}, nil
}

// buildDSN enables foreign keys and a busy timeout on every connection. File
// databases also get WAL and BEGIN IMMEDIATE transactions: a deferred
// transaction that reads before writing cannot take the write lock while
// another connection holds it and fails with SQLITE_BUSY without waiting.
func buildDSN(path string) string {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if path != memoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_txlock=immediate")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&")
}

// Repositories returns repositories bound to the connection pool.
func (db *DB) Repositories() *Repositories {
	return &Repositories{
		Feeds:   NewFeedRepository(db.DB),
		Entries: NewEntryRepository(db.DB),
	}
}

// RunInTx runs fn with repositories bound to one transaction. The transaction
// is committed when fn returns nil and rolled back otherwise.
func (db *DB) RunInTx(ctx context.Context, fn func(r *Repositories) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Repositories{
		Feeds:   NewFeedRepository(tx),
		Entries: NewEntryRepository(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
