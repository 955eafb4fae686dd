// Package docstore exposes the SQLite backend as a collection-oriented
// document store with live queries.
package docstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ldi/dayplan/internal/db"
	"github.com/ldi/dayplan/pkg/models"
)

// WatchFunc receives the full document set of a collection, or the error
// that prevented reading it.
type WatchFunc = func(docs []*models.Document, err error)

// Store is safe for concurrent use.
type Store struct {
	db     *db.DB
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

func New(database *db.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:       database,
		logger:   logger,
		watchers: make(map[string]map[*watcher]struct{}),
	}
	database.OnChange(s.notify)
	return s
}

func (s *Store) AddDocument(ctx context.Context, collection string, fields json.RawMessage) (string, error) {
	return s.db.AddDocument(ctx, collection, fields)
}

func (s *Store) SetDocument(ctx context.Context, collection, id string, fields json.RawMessage) error {
	return s.db.SetDocument(ctx, collection, id, fields)
}

func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	return s.db.DeleteDocument(ctx, collection, id)
}

func (s *Store) GetDocument(ctx context.Context, collection, id string) (*models.Document, error) {
	return s.db.GetDocument(ctx, collection, id)
}

func (s *Store) ListDocuments(ctx context.Context, collection string) ([]*models.Document, error) {
	return s.db.ListDocuments(ctx, collection)
}

// Watch calls fn with the current contents of collection and again after
// every committed change to it. Changes that land while fn is running are
// coalesced into a single follow-up read. The watch ends when the returned
// cancel func is called or ctx is done.
func (s *Store) Watch(ctx context.Context, collection string, fn WatchFunc) (func(), error) {
	if err := db.ValidateCollection(collection); err != nil {
		return nil, err
	}

	w := &watcher{
		collection: collection,
		fn:         fn,
		notify:     make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}

	s.mu.Lock()
	set, ok := s.watchers[collection]
	if !ok {
		set = make(map[*watcher]struct{})
		s.watchers[collection] = set
	}
	set[w] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("watch started", "collection", collection)

	go s.run(ctx, w)

	return func() { s.remove(w) }, nil
}

// Watchers returns the number of active watches on collection.
func (s *Store) Watchers(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[collection])
}

func (s *Store) run(ctx context.Context, w *watcher) {
	defer s.remove(w)

	for {
		docs, err := s.db.ListDocuments(ctx, w.collection)
		if err != nil && ctx.Err() != nil {
			return
		}
		if w.stopped() {
			return
		}
		if err != nil {
			s.logger.Warn("watch read failed", "collection", w.collection, "error", err)
		}
		w.fn(docs, err)

		select {
		case <-w.notify:
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) notify(_ context.Context, collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for w := range s.watchers[collection] {
		select {
		case w.notify <- struct{}{}:
		default:
			// A read is already pending.
		}
	}
}

func (s *Store) remove(w *watcher) {
	s.mu.Lock()
	if set, ok := s.watchers[w.collection]; ok {
		if _, present := set[w]; present {
			delete(set, w)
			if len(set) == 0 {
				delete(s.watchers, w.collection)
			}
			s.logger.Debug("watch stopped", "collection", w.collection)
		}
	}
	s.mu.Unlock()

	w.once.Do(func() { close(w.stop) })
}

type watcher struct {
	collection string
	fn         WatchFunc
	notify     chan struct{}
	stop       chan struct{}
	once       sync.Once
}

func (w *watcher) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}
