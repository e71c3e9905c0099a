package flow

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
)

// Flow is one running config flow. Handlers receive it from their Factory
// and use its helpers to build results and deduplicate entries.
type Flow struct {
	ID     string
	Domain string
	Source Source

	// Context is the data the flow was started with: discovery info for
	// zeroconf, the current entry data for reauth.
	Context map[string]string

	mgr     *Manager
	handler Handler

	// stepMu serialises steps of this flow.
	stepMu sync.Mutex

	// Guarded by mgr.mu.
	uniqueID   string
	nextStep   string
	external   bool
	deadline   time.Time
	lastActive time.Time
	last       Result
	schemas    map[string]Schema
}

// UniqueID returns the stable device identity set by SetUniqueID.
func (f *Flow) UniqueID() string {
	f.mgr.mu.Lock()
	defer f.mgr.mu.Unlock()
	return f.uniqueID
}

// ShowForm asks for input on step.
func (f *Flow) ShowForm(step string, schema Schema, errs map[string]string, placeholders map[string]string) Result {
	return Result{
		Type:         ResultForm,
		StepID:       step,
		Schema:       schema,
		Errors:       errs,
		Placeholders: placeholders,
	}
}

// ExternalState signs the correlation token to embed in an external URL.
func (f *Flow) ExternalState() (string, error) {
	state, _, err := f.mgr.signer.Sign(f.ID, f.Domain)
	if err != nil {
		return "", err
	}
	return state, nil
}

// ExternalStep suspends the flow until the external callback resumes step.
func (f *Flow) ExternalStep(step, url string) Result {
	return Result{
		Type:   ResultExternal,
		StepID: step,
		URL:    url,
	}
}

// ExternalStepDone marks the external step finished; next runs on the
// following Configure.
func (f *Flow) ExternalStepDone(next string) Result {
	return Result{
		Type:   ResultExternalDone,
		StepID: next,
	}
}

// CreateEntry finishes the flow. The Manager persists the entry.
func (f *Flow) CreateEntry(title string, data map[string]string) Result {
	return Result{
		Type:  ResultCreateEntry,
		Title: title,
		Data:  maps.Clone(data),
	}
}

// Abort finishes the flow with reason.
func (f *Flow) Abort(reason string) Result {
	return Result{
		Type:   ResultAbort,
		Reason: reason,
	}
}

// SetUniqueID records the stable device identity of the flow and returns
// the entry already configured with it, if any.
//
// Unless the flow is a reauth, another in-progress flow of the same domain
// with the same identity makes it return an AbortError with reason
// already_in_progress.
func (f *Flow) SetUniqueID(uniqueID string) (*entry.Entry, error) {
	m := f.mgr
	m.mu.Lock()
	if f.Source != SourceReauth {
		for _, other := range m.flows {
			if other != f && other.Domain == f.Domain && other.uniqueID == uniqueID && other.Source != SourceReauth {
				m.mu.Unlock()
				return nil, &AbortError{Reason: ReasonAlreadyInProgress}
			}
		}
	}
	f.uniqueID = uniqueID
	m.mu.Unlock()

	existing, ok := m.store.FindByUniqueID(f.Domain, uniqueID)
	if !ok {
		return nil, nil
	}
	return existing, nil
}

// AbortIfUniqueIDConfigured returns an AbortError with reason
// already_configured when an entry with the flow's unique id exists.
// updates are merged into that entry first; a change reloads it.
func (f *Flow) AbortIfUniqueIDConfigured(ctx context.Context, updates map[string]string) error {
	uniqueID := f.UniqueID()
	if uniqueID == "" {
		return nil
	}

	existing, ok := f.mgr.store.FindByUniqueID(f.Domain, uniqueID)
	if !ok {
		return nil
	}

	if len(updates) > 0 {
		if _, err := f.mgr.store.UpdateData(ctx, existing.ID, updates, true); err != nil {
			return fmt.Errorf("updating entry %s: %w", existing.ID, err)
		}
	}
	return &AbortError{Reason: ReasonAlreadyConfigured}
}

// UpdateEntry merges data into an existing entry and reloads it.
func (f *Flow) UpdateEntry(ctx context.Context, entryID string, data map[string]string) error {
	if _, err := f.mgr.store.UpdateData(ctx, entryID, data, true); err != nil {
		return fmt.Errorf("updating entry %s: %w", entryID, err)
	}
	return nil
}

// Entries returns the config entries of the flow's domain.
func (f *Flow) Entries() []entry.Entry {
	return f.mgr.store.ListByDomain(f.Domain)
}
