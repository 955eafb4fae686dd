package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ldi/dayplan/pkg/models"
)

func TestDocumentCRUD(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	collection := "users/alice/tasks"

	id, err := db.AddDocument(ctx, collection, json.RawMessage(`{"name":"Write report","isCompleted":false}`))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if len(id) != documentIDLength {
		t.Errorf("Expected ID length %d, got %d (%s)", documentIDLength, len(id), id)
	}

	doc, err := db.GetDocument(ctx, collection, id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if doc == nil {
		t.Fatalf("Document not found")
	}
	if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Errorf("Expected CreatedAt and UpdatedAt to be set")
	}

	var fields map[string]any
	if err := json.Unmarshal(doc.Fields, &fields); err != nil {
		t.Fatalf("Failed to unmarshal fields: %v", err)
	}
	if fields["name"] != "Write report" {
		t.Errorf("Expected name Write report, got %v", fields["name"])
	}

	if err := db.SetDocument(ctx, collection, id, json.RawMessage(`{"name":"Write report","isCompleted":true}`)); err != nil {
		t.Fatalf("Failed to set document: %v", err)
	}
	doc, _ = db.GetDocument(ctx, collection, id)
	if err := json.Unmarshal(doc.Fields, &fields); err != nil {
		t.Fatalf("Failed to unmarshal fields: %v", err)
	}
	if fields["isCompleted"] != true {
		t.Errorf("Expected isCompleted true, got %v", fields["isCompleted"])
	}

	if err := db.DeleteDocument(ctx, collection, id); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}
	if err := db.DeleteDocument(ctx, collection, id); err != nil {
		t.Errorf("Expected second delete to succeed, got %v", err)
	}

	doc, err = db.GetDocument(ctx, collection, id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if doc != nil {
		t.Errorf("Expected document to be gone")
	}
}

func TestSetDocumentNotFound(t *testing.T) {
	db := openTestDB(t)

	err := db.SetDocument(context.Background(), "users/alice/tasks", "missing", json.RawMessage(`{}`))
	if !errors.Is(err, models.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.AddDocument(ctx, "users/alice/tasks", json.RawMessage(`{"name":"a"}`))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if _, err := db.AddDocument(ctx, "users/bob/tasks", json.RawMessage(`{"name":"b"}`)); err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	docs, err := db.ListDocuments(ctx, "users/alice/tasks")
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id {
		t.Fatalf("Expected only alice's document, got %+v", docs)
	}

	if err := db.SetDocument(ctx, "users/bob/tasks", id, json.RawMessage(`{}`)); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Errorf("Expected cross-collection update to miss, got %v", err)
	}

	all, err := db.ListAllDocuments(ctx)
	if err != nil {
		t.Fatalf("Failed to list all documents: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 documents, got %d", len(all))
	}
}

func TestListDocumentsEmpty(t *testing.T) {
	db := openTestDB(t)

	docs, err := db.ListDocuments(context.Background(), "users/nobody/tasks")
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", docs)
	}
}

func TestValidateCollection(t *testing.T) {
	tests := []struct {
		path  string
		valid bool
	}{
		{"users/u1/tasks", true},
		{"tasks", true},
		{"", false},
		{"users/u1", false},
		{"users//tasks", false},
		{"/users/u1/tasks", false},
	}

	for _, tt := range tests {
		err := ValidateCollection(tt.path)
		if tt.valid && err != nil {
			t.Errorf("ValidateCollection(%q) unexpected error: %v", tt.path, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidCollection) {
			t.Errorf("ValidateCollection(%q) expected ErrInvalidCollection, got %v", tt.path, err)
		}
	}
}

func TestAddDocumentRejectsInvalidFields(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.AddDocument(context.Background(), "users/u1/tasks", json.RawMessage(`{not json`)); err == nil {
		t.Error("Expected error for invalid JSON fields")
	}
}
