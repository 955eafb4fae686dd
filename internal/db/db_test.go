package db

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	return db
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var mode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %s", mode)
	}

	var fk int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign_keys enabled (1), got %d", fk)
	}
}

func TestMigrate(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	schema := `
	CREATE TABLE test (
		id INTEGER PRIMARY KEY,
		name TEXT
	);
	`
	ctx := context.Background()
	if err := db.Migrate(ctx, schema); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}

	_, err = db.Exec("INSERT INTO test (name) VALUES (?)", "foo")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM test WHERE id = 1").Scan(&name)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if name != "foo" {
		t.Errorf("Expected foo, got %s", name)
	}
}

func TestInitIsRepeatable(t *testing.T) {
	db := openTestDB(t)

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Second init failed: %v", err)
	}

	for _, table := range []string{"users", "documents", "revoked_tokens"} {
		if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
			t.Fatalf("Table %s does not exist or query failed: %v", table, err)
		}
	}
}

func TestOnChangeHooks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var first, second []string
	db.OnChange(func(ctx context.Context, collection string) { first = append(first, collection) })
	db.OnChange(func(ctx context.Context, collection string) { second = append(second, collection) })

	id, err := db.AddDocument(ctx, "users/u1/tasks", []byte(`{"name":"a"}`))
	if err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	db.DisableOnChange()
	if err := db.SetDocument(ctx, "users/u1/tasks", id, []byte(`{"name":"b"}`)); err != nil {
		t.Fatalf("SetDocument failed: %v", err)
	}
	db.EnableOnChange()

	if err := db.DeleteDocument(ctx, "users/u1/tasks", id); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("Expected 2 notifications per hook, got %v and %v", first, second)
	}
	if first[0] != "users/u1/tasks" {
		t.Errorf("Expected collection users/u1/tasks, got %s", first[0])
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.AddDocument(ctx, "users/u1/tasks", []byte(`{}`)); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if _, err := db.AddDocument(ctx, "users/u2/tasks", []byte(`{}`)); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if _, err := db.AddDocument(ctx, "users/u2/tasks", []byte(`{}`)); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	s, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Collections != 2 || s.Documents != 3 || s.Users != 0 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}
