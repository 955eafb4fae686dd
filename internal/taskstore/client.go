// Package taskstore exposes a user's task collection as CRUD operations and
// a live snapshot stream over a document store.
package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ldi/dayplan/internal/stream"
	"github.com/ldi/dayplan/pkg/models"
)

// DocumentStore is the document backend boundary.
type DocumentStore interface {
	AddDocument(ctx context.Context, collection string, fields json.RawMessage) (string, error)
	// SetDocument replaces all fields and fails with an error wrapping
	// models.ErrDocumentNotFound if the document is missing.
	SetDocument(ctx context.Context, collection, id string, fields json.RawMessage) error
	// DeleteDocument succeeds when the document is already gone.
	DeleteDocument(ctx context.Context, collection, id string) error
	Watch(ctx context.Context, collection string, fn func(docs []*models.Document, err error)) (func(), error)
}

// Snapshot is the full task set of a user at one point in time. Err is set
// when the set could not be read completely; Tasks then holds whatever was
// readable.
type Snapshot struct {
	Tasks []models.Task
	Err   error
}

// SnapshotSubscription delivers Snapshots until closed.
type SnapshotSubscription = stream.Subscription[Snapshot]

// Client maps each operation onto exactly one backend call. It holds no
// per-user state.
type Client struct {
	store  DocumentStore
	logger *slog.Logger
}

func New(store DocumentStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{store: store, logger: logger}
}

// CollectionPath returns the task collection of a user.
func CollectionPath(userID string) string {
	return "users/" + userID + "/tasks"
}

func collectionFor(op, userID string) (string, error) {
	if userID == "" {
		return "", &StoreError{Op: op, Err: ErrUserIDRequired}
	}
	return CollectionPath(userID), nil
}

// List starts a live query on the user's tasks. The first snapshot is the
// current set; a new full snapshot follows every change. The subscription
// ends on Close or when ctx is done.
func (c *Client) List(ctx context.Context, userID string) (*SnapshotSubscription, error) {
	path, err := collectionFor("list", userID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := stream.New[Snapshot]()

	stop, err := c.store.Watch(ctx, path, func(docs []*models.Document, err error) {
		sub.Publish(toSnapshot(docs, err))
	})
	if err != nil {
		cancel()
		return nil, &StoreError{Op: "list", Err: err}
	}

	sub.OnClose(func() {
		stop()
		cancel()
	})
	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	c.logger.Debug("task listing started", "user_id", userID)
	return sub, nil
}

func toSnapshot(docs []*models.Document, err error) Snapshot {
	if err != nil {
		return Snapshot{Tasks: []models.Task{}, Err: &StoreError{Op: "list", Err: err}}
	}

	snap := Snapshot{Tasks: make([]models.Task, 0, len(docs))}
	var errs []error
	for _, d := range docs {
		t, err := decodeTask(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		snap.Tasks = append(snap.Tasks, t)
	}
	if len(errs) > 0 {
		snap.Err = &StoreError{Op: "list", Err: errors.Join(errs...)}
	}
	return snap
}

// Add persists task under a fresh id and returns it with the id set. Any id
// already on task is ignored.
func (c *Client) Add(ctx context.Context, userID string, task models.Task) (models.Task, error) {
	path, err := collectionFor("add", userID)
	if err != nil {
		return models.Task{}, err
	}

	fields, err := encodeTask(task)
	if err != nil {
		return models.Task{}, &StoreError{Op: "add", Err: err}
	}

	id, err := c.store.AddDocument(ctx, path, fields)
	if err != nil {
		c.logger.Warn("task add failed", "user_id", userID, "error", err)
		return models.Task{}, &StoreError{Op: "add", Err: err}
	}

	task.ID = id
	return task, nil
}

// Update replaces every field of an existing task.
func (c *Client) Update(ctx context.Context, userID string, task models.Task) error {
	path, err := collectionFor("update", userID)
	if err != nil {
		return err
	}
	if task.ID == "" {
		return &StoreError{Op: "update", Err: ErrTaskIDRequired}
	}

	fields, err := encodeTask(task)
	if err != nil {
		return &StoreError{Op: "update", Err: err}
	}

	if err := c.store.SetDocument(ctx, path, task.ID, fields); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			return &NotFoundError{ID: task.ID}
		}
		c.logger.Warn("task update failed", "user_id", userID, "task_id", task.ID, "error", err)
		return &StoreError{Op: "update", Err: err}
	}
	return nil
}

// SetCompleted writes task back with only the completion flag changed.
func (c *Client) SetCompleted(ctx context.Context, userID string, task models.Task, done bool) error {
	task.IsCompleted = done
	return c.Update(ctx, userID, task)
}

// Delete removes a task. Deleting a missing task succeeds.
func (c *Client) Delete(ctx context.Context, userID, taskID string) error {
	path, err := collectionFor("delete", userID)
	if err != nil {
		return err
	}
	if taskID == "" {
		return &StoreError{Op: "delete", Err: ErrTaskIDRequired}
	}

	if err := c.store.DeleteDocument(ctx, path, taskID); err != nil {
		c.logger.Warn("task delete failed", "user_id", userID, "task_id", taskID, "error", err)
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}
