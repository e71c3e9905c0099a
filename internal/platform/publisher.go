package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-integrations/internal/entity"
)

// Publisher receives rendered entity states.
type Publisher interface {
	// Publish is called with the states that changed since the last call.
	Publish(ctx context.Context, states []entity.State) error

	// Remove is called with the entity ids of an unloaded entry.
	Remove(ctx context.Context, entityIDs []string) error
}

// publishEntry renders the entities of an entry and hands changed states
// to every publisher.
func (h *Host) publishEntry(entryID string) {
	states := h.registry.EntryStates(entryID)

	h.pubMu.Lock()
	changed := make([]entity.State, 0, len(states))
	for _, s := range states {
		fp := fingerprint(s)
		if h.published[s.EntityID] == fp {
			continue
		}
		h.published[s.EntityID] = fp
		changed = append(changed, s)
	}
	publishers := append([]Publisher(nil), h.publishers...)
	h.pubMu.Unlock()

	if len(changed) == 0 {
		return
	}

	ctx := h.context()
	for _, p := range publishers {
		if err := p.Publish(ctx, changed); err != nil {
			h.logger.Warn("publishing entity states failed", "entry_id", entryID, "error", err)
		}
	}
}

func (h *Host) withdraw(ctx context.Context, entityIDs []string) {
	if len(entityIDs) == 0 {
		return
	}

	h.pubMu.Lock()
	for _, id := range entityIDs {
		delete(h.published, id)
	}
	publishers := append([]Publisher(nil), h.publishers...)
	h.pubMu.Unlock()

	for _, p := range publishers {
		if err := p.Remove(ctx, entityIDs); err != nil {
			h.logger.Warn("withdrawing entities failed", "error", err)
		}
	}
}

// fingerprint identifies the observable content of a state. LastUpdated
// is excluded so an unchanged value is not republished.
func fingerprint(s entity.State) string {
	attrs, err := json.Marshal(s.Attributes)
	if err != nil {
		attrs = []byte(fmt.Sprint(s.Attributes))
	}
	return fmt.Sprintf("%s|%s|%t|%s", s.State, s.LastKnown, s.Available, attrs)
}
