package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ldi/dayplan/internal/config"
	"github.com/ldi/dayplan/internal/db"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := execute([]string{"init", tmpDir}, &stdout, &stderr); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	stateDir := filepath.Join(tmpDir, ".dayplan")
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		t.Errorf(".dayplan directory was not created")
	}

	content, err := os.ReadFile(filepath.Join(stateDir, ".gitignore"))
	if err != nil {
		t.Errorf("failed to read .gitignore: %v", err)
	}
	if string(content) != "dayplan.db*\nconfig.json\n" {
		t.Errorf(".gitignore content mismatch, got %q", string(content))
	}

	if _, err := os.Stat(filepath.Join(stateDir, "dayplan.db")); os.IsNotExist(err) {
		t.Errorf("database file was not created")
	}

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	if len(cfg.JWTSecret) != 64 {
		t.Errorf("expected a generated 32-byte hex secret, got %q", cfg.JWTSecret)
	}
}

func TestInitKeepsExistingConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.Default(tmpDir)
	cfg.JWTSecret = "keep-me"
	if err := config.Save(tmpDir, cfg); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := execute([]string{"init", tmpDir}, &stdout, &stderr); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	loaded, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if loaded.JWTSecret != "keep-me" {
		t.Errorf("expected existing secret to be kept, got %q", loaded.JWTSecret)
	}
}

func TestInitWithExistingSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, ".dayplan")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("failed to create .dayplan dir: %v", err)
	}

	snapshot := `{"record_type":"meta","version":1,"documents":1}
{"record_type":"document","collection":"users/u1/tasks","id":"t1","fields":{"name":"Restored","isCompleted":false,"timeSlot":"Monday","subTasks":[]}}
`
	if err := os.WriteFile(filepath.Join(stateDir, "snapshot.jsonl"), []byte(snapshot), 0644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := execute([]string{"init", tmpDir}, &stdout, &stderr); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	database, err := db.Open(filepath.Join(stateDir, "dayplan.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer database.Close()

	doc, err := database.GetDocument(context.Background(), "users/u1/tasks", "t1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc == nil {
		t.Fatal("expected snapshot document to be imported")
	}
}
