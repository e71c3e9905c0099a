package entity

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Logger defines the logging interface used by the Registry.
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

// Registry indexes the entities of every loaded config entry.
//
// Thread Safety: All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Entity
	byUnique map[string]*Entity   // domain + "|" + unique id
	byEntry  map[string][]*Entity // entry id -> entities in registration order
	logger   Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Entity),
		byUnique: make(map[string]*Entity),
		byEntry:  make(map[string][]*Entity),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger used when rendering.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

func uniqueKey(domain, uniqueID string) string {
	return domain + "|" + uniqueID
}

// Add registers the entities of one config entry and assigns their entity
// ids. Either all entities are registered or none.
//
// Entity ids are "<platform>.<slug of display name>"; a clash gets a
// numeric suffix ("_2", "_3", ...).
func (r *Registry) Add(entryID string, entities []*Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		key := uniqueKey(e.Domain, e.UniqueID)
		if e.UniqueID == "" {
			return fmt.Errorf("%w: empty unique id in %s", ErrDuplicate, e.Domain)
		}
		if _, exists := r.byUnique[key]; exists || seen[key] {
			return fmt.Errorf("%w: %s %s", ErrDuplicate, e.Domain, e.UniqueID)
		}
		seen[key] = true
	}

	for _, e := range entities {
		e.EntryID = entryID
		e.id = r.allocateIDLocked(e)
		r.byID[e.id] = e
		r.byUnique[uniqueKey(e.Domain, e.UniqueID)] = e
		r.byEntry[entryID] = append(r.byEntry[entryID], e)
	}
	return nil
}

func (r *Registry) allocateIDLocked(e *Entity) string {
	platform := e.Description.Platform
	if platform == "" {
		platform = PlatformSensor
	}
	object := Slugify(e.displayName())
	if object == "" {
		object = Slugify(e.Domain + " " + e.UniqueID)
	}

	base := string(platform) + "." + object
	id := base
	for n := 2; ; n++ {
		if _, taken := r.byID[id]; !taken {
			return id
		}
		id = base + "_" + strconv.Itoa(n)
	}
}

// RemoveEntry unregisters every entity of a config entry and returns their
// entity ids.
func (r *Registry) RemoveEntry(entryID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	entities := r.byEntry[entryID]
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		delete(r.byID, e.id)
		delete(r.byUnique, uniqueKey(e.Domain, e.UniqueID))
		ids = append(ids, e.id)
	}
	delete(r.byEntry, entryID)
	return ids
}

// Get returns an entity by entity id.
func (r *Registry) Get(entityID string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// GetByUniqueID returns an entity by domain and unique id.
func (r *Registry) GetByUniqueID(domain, uniqueID string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byUnique[uniqueKey(domain, uniqueID)]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// ByEntry returns the entities of a config entry in registration order.
func (r *Registry) ByEntry(entryID string) []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := r.byEntry[entryID]
	out := make([]*Entity, len(entities))
	copy(out, entities)
	return out
}

// ByDevice returns all entities whose device has the given key, sorted by
// entity id.
func (r *Registry) ByDevice(deviceKey string) []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entity
	for _, e := range r.byID {
		if e.Device.Key() == deviceKey {
			out = append(out, e)
		}
	}
	sortByID(out)
	return out
}

// All returns every entity sorted by entity id.
func (r *Registry) All() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sortByID(out)
	return out
}

// Count returns the number of registered entities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Render renders one entity by entity id.
func (r *Registry) Render(entityID string) (State, error) {
	e, err := r.Get(entityID)
	if err != nil {
		return State{}, err
	}
	return e.Render(r.getLogger()), nil
}

// States renders every entity, sorted by entity id.
func (r *Registry) States() []State {
	entities := r.All()
	logger := r.getLogger()

	states := make([]State, 0, len(entities))
	for _, e := range entities {
		states = append(states, e.Render(logger))
	}
	return states
}

// EntryStates renders the entities of one config entry.
func (r *Registry) EntryStates(entryID string) []State {
	entities := r.ByEntry(entryID)
	logger := r.getLogger()

	states := make([]State, 0, len(entities))
	for _, e := range entities {
		states = append(states, e.Render(logger))
	}
	return states
}

func (r *Registry) getLogger() Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func sortByID(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].id < entities[j].id
	})
}
