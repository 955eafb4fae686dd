package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	embedsql "github.com/ldi/dayplan/embed/sql"
	_ "modernc.org/sqlite"
)

// ChangeFunc is called after a committed write to a collection.
type ChangeFunc func(ctx context.Context, collection string)

type DB struct {
	*sql.DB
	onChange         []ChangeFunc
	onChangeMu       sync.RWMutex
	onChangeDisabled bool
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OnChange registers fn to run after every committed document write.
// Hooks run synchronously on the writing goroutine and must not block.
func (db *DB) OnChange(fn ChangeFunc) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = append(db.onChange, fn)
}

func (db *DB) DisableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = true
}

func (db *DB) EnableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = false
}

func (db *DB) triggerChange(ctx context.Context, collection string) {
	db.onChangeMu.RLock()
	hooks := make([]ChangeFunc, len(db.onChange))
	copy(hooks, db.onChange)
	disabled := db.onChangeDisabled
	db.onChangeMu.RUnlock()

	if disabled {
		return
	}
	for _, fn := range hooks {
		fn(ctx, collection)
	}
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite works best with a single writer. It also keeps ":memory:"
	// databases on one connection.
	db.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// Stats summarizes the contents of the backend.
type Stats struct {
	Users       int
	Collections int
	Documents   int
}

func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(DISTINCT collection) FROM documents),
			(SELECT COUNT(*) FROM documents)
	`).Scan(&s.Users, &s.Collections, &s.Documents)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return s, nil
}
