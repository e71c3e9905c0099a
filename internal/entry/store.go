package entry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener receives entry changes. It runs synchronously on the writer's
// goroutine after the change is persisted and the store lock released.
type Listener func(Change)

// Store provides config entry management with caching and thread safety.
// It wraps a Repository, keeps every entry in memory and notifies
// listeners of each persisted change.
//
// All public methods are thread-safe. Returned entries are deep copies.
type Store struct {
	repo Repository

	mu    sync.RWMutex
	cache map[string]*Entry

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int

	logger Logger
}

// NewStore creates a store over repo. Call Load before use.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:      repo,
		cache:     make(map[string]*Entry),
		listeners: make(map[int]Listener),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load reads every entry from the repository into the cache.
func (s *Store) Load(ctx context.Context) error {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	s.mu.Lock()
	s.cache = make(map[string]*Entry, len(entries))
	for i := range entries {
		s.cache[entries[i].ID] = entries[i].DeepCopy()
	}
	s.mu.Unlock()

	s.logger.Info("config entries loaded", "count", len(entries))
	return nil
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (remove func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(Change{Type: c.Type, Entry: c.Entry.DeepCopy(), Reload: c.Reload})
	}
}

// Get returns the entry with id, or ErrNotFound.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.DeepCopy(), nil
}

// FindByUniqueID returns the entry of domain carrying uniqueID.
func (s *Store) FindByUniqueID(domain, uniqueID string) (*Entry, bool) {
	if uniqueID == "" {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.cache {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return e.DeepCopy(), true
		}
	}
	return nil, false
}

// List returns all entries ordered by creation time.
func (s *Store) List() []Entry {
	return s.filter(func(*Entry) bool { return true })
}

// ListByDomain returns the entries of one integration.
func (s *Store) ListByDomain(domain string) []Entry {
	return s.filter(func(e *Entry) bool { return e.Domain == domain })
}

func (s *Store) filter(keep func(*Entry) bool) []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.cache))
	for _, e := range s.cache {
		if keep(e) {
			entries = append(entries, *e.DeepCopy())
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries
}

// Upsert persists e, deduplicating by (domain, unique id).
//
// When an entry with the same identity exists its data is merged with
// e.Data and its title replaced; the existing ID is kept and listeners are
// asked to reload it. Otherwise a new entry is created with a fresh ID.
// The returned bool reports whether a new entry was created.
func (s *Store) Upsert(ctx context.Context, e *Entry) (*Entry, bool, error) {
	if err := e.Validate(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	var existing *Entry
	if e.UniqueID != "" {
		for _, c := range s.cache {
			if c.Domain == e.Domain && c.UniqueID == e.UniqueID {
				existing = c
				break
			}
		}
	}

	if existing != nil {
		updated := existing.DeepCopy()
		maps.Copy(updated.Data, e.Data)
		if e.Title != "" {
			updated.Title = e.Title
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			s.mu.Unlock()
			return nil, false, fmt.Errorf("updating entry %s: %w", updated.ID, err)
		}
		s.cache[updated.ID] = updated
		s.mu.Unlock()

		s.logger.Info("config entry updated", "entry_id", updated.ID, "domain", updated.Domain)
		s.notify(Change{Type: ChangeUpdated, Entry: updated, Reload: true})
		return updated.DeepCopy(), false, nil
	}

	created := e.DeepCopy()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.State = StateNotLoaded
	if err := s.repo.Create(ctx, created); err != nil {
		s.mu.Unlock()
		return nil, false, fmt.Errorf("creating entry: %w", err)
	}
	s.cache[created.ID] = created
	s.mu.Unlock()

	s.logger.Info("config entry created", "entry_id", created.ID, "domain", created.Domain, "source", created.Source)
	s.notify(Change{Type: ChangeAdded, Entry: created})
	return created.DeepCopy(), true, nil
}

// UpdateData merges updates into an entry's data. reload asks listeners
// to set the entry up again; token refresh passes false.
// No write happens when updates change nothing.
func (s *Store) UpdateData(ctx context.Context, id string, updates map[string]string, reload bool) (*Entry, error) {
	s.mu.Lock()
	current, ok := s.cache[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	changed := false
	for k, v := range updates {
		if old, ok := current.Data[k]; !ok || old != v {
			changed = true
			break
		}
	}
	if !changed {
		s.mu.Unlock()
		return current.DeepCopy(), nil
	}

	updated := current.DeepCopy()
	maps.Copy(updated.Data, updates)
	if err := s.repo.Update(ctx, updated); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("updating entry %s: %w", id, err)
	}
	s.cache[id] = updated
	s.mu.Unlock()

	s.notify(Change{Type: ChangeUpdated, Entry: updated, Reload: reload})
	return updated.DeepCopy(), nil
}

// SetState records the setup state of an entry.
func (s *Store) SetState(ctx context.Context, id string, state State) error {
	s.mu.Lock()
	current, ok := s.cache[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if current.State == state {
		s.mu.Unlock()
		return nil
	}

	updated := current.DeepCopy()
	updated.State = state
	if err := s.repo.Update(ctx, updated); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("updating state of entry %s: %w", id, err)
	}
	s.cache[id] = updated
	s.mu.Unlock()

	s.notify(Change{Type: ChangeState, Entry: updated})
	return nil
}

// Remove deletes an entry.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	current, ok := s.cache[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		s.mu.Unlock()
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	delete(s.cache, id)
	s.mu.Unlock()

	s.logger.Info("config entry removed", "entry_id", id, "domain", current.Domain)
	s.notify(Change{Type: ChangeRemoved, Entry: current})
	return nil
}
