package entry

import (
	"fmt"
	"maps"
	"time"
)

// State is the setup state of a config entry.
type State string

const (
	// StateNotLoaded is the state of a persisted entry that is not running.
	StateNotLoaded State = "not_loaded"

	// StateLoaded means the entry's coordinators and entities are running.
	StateLoaded State = "loaded"

	// StateSetupRetry means setup hit a transient failure and is scheduled again.
	StateSetupRetry State = "setup_retry"

	// StateSetupError means setup failed permanently (for example rejected credentials).
	StateSetupError State = "setup_error"
)

// Entry is a persisted config entry.
type Entry struct {
	ID       string `json:"entry_id"`
	Domain   string `json:"domain"`
	Title    string `json:"title"`
	UniqueID string `json:"unique_id,omitempty"`
	Source   string `json:"source"`

	// Data holds the credentials and connection settings. It is never
	// serialised to API clients.
	Data map[string]string `json:"-"`

	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields every entry must carry.
func (e *Entry) Validate() error {
	if e.Domain == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalid)
	}
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	return nil
}

// DeepCopy returns a copy whose Data map is independent of the original.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Data = maps.Clone(e.Data)
	if c.Data == nil {
		c.Data = map[string]string{}
	}
	return &c
}

// ChangeType describes what happened to an entry.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
	ChangeState   ChangeType = "state"
)

// Change is delivered to Store listeners.
type Change struct {
	Type  ChangeType
	Entry *Entry

	// Reload asks the host to tear the entry down and set it up again with
	// the new data. Token refresh writes leave it false.
	Reload bool
}
