package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const snapshotVersion = 1

type snapshotMeta struct {
	RecordType string    `json:"record_type"`
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Documents  int       `json:"documents"`
}

type snapshotDocument struct {
	RecordType string          `json:"record_type"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Fields     json.RawMessage `json:"fields"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// EnableAutoSnapshot exports a snapshot to path after every committed
// document write. Export failures are logged and never fail the write.
func (db *DB) EnableAutoSnapshot(path string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	db.OnChange(func(ctx context.Context, collection string) {
		if err := db.ExportSnapshot(ctx, path); err != nil {
			logger.Warn("auto snapshot failed", "path", path, "collection", collection, "error", err)
		}
	})
}

// ExportSnapshot writes every document as one JSON line to path atomically
// using a temporary file in the same directory.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	docs, err := db.ListAllDocuments(ctx)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	enc := json.NewEncoder(w)

	meta := snapshotMeta{
		RecordType: "meta",
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC(),
		Documents:  len(docs),
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}

	for _, d := range docs {
		line := snapshotDocument{
			RecordType: "document",
			Collection: d.Collection,
			ID:         d.ID,
			Fields:     d.Fields,
			CreatedAt:  d.CreatedAt,
			UpdatedAt:  d.UpdatedAt,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and upserts its documents in a
// single transaction. Watchers of every touched collection are notified
// once after commit. It returns the number of documents imported.
func (db *DB) ImportSnapshot(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	touched := make(map[string]struct{})
	imported := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return 0, fmt.Errorf("failed to unmarshal record on line %d: %w", lineNo, err)
		}

		switch base.RecordType {
		case "meta":
			var m snapshotMeta
			if err := json.Unmarshal(line, &m); err != nil {
				return 0, fmt.Errorf("failed to unmarshal meta: %w", err)
			}
			if m.Version > snapshotVersion {
				return 0, fmt.Errorf("unsupported snapshot version %d", m.Version)
			}
		case "document":
			var d snapshotDocument
			if err := json.Unmarshal(line, &d); err != nil {
				return 0, fmt.Errorf("failed to unmarshal document on line %d: %w", lineNo, err)
			}
			if err := ValidateCollection(d.Collection); err != nil {
				return 0, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if d.ID == "" {
				d.ID = newDocumentID()
			}
			if len(d.Fields) == 0 || !json.Valid(d.Fields) {
				return 0, fmt.Errorf("line %d: document %s has invalid fields", lineNo, d.ID)
			}
			if d.CreatedAt.IsZero() {
				d.CreatedAt = time.Now().UTC()
			}
			if d.UpdatedAt.IsZero() {
				d.UpdatedAt = d.CreatedAt
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO documents (collection, id, fields, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (collection, id) DO UPDATE SET
					fields = excluded.fields,
					updated_at = excluded.updated_at`,
				d.Collection, d.ID, string(d.Fields), d.CreatedAt.UTC(), d.UpdatedAt.UTC())
			if err != nil {
				return 0, fmt.Errorf("failed to sync document %s/%s: %w", d.Collection, d.ID, err)
			}
			touched[d.Collection] = struct{}{}
			imported++
		default:
			return 0, fmt.Errorf("unknown record type %q on line %d", base.RecordType, lineNo)
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	collections := make([]string, 0, len(touched))
	for c := range touched {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		db.triggerChange(ctx, c)
	}
	return imported, nil
}
