package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// ErrCodeSetupFailed is returned when a reloaded entry fails to set up.
const ErrCodeSetupFailed = "setup_failed"

// handleListEntries returns the config entries, optionally filtered by
// ?domain=. Credentials are never included.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	var entries []entry.Entry
	if domain := r.URL.Query().Get("domain"); domain != "" {
		entries = s.entries.ListByDomain(domain)
	} else {
		entries = s.entries.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry returns one config entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntry removes an entry. The host unloads it through the
// store's change notification.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.entries.Remove(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReloadEntry tears an entry down and sets it up again. A vendor
// that is not ready yields 202 with the entry in setup_retry.
func (s *Server) handleReloadEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.host.ReloadEntry(r.Context(), id)

	switch {
	case err == nil:
	case errors.Is(err, entry.ErrNotFound):
		s.writeDomainError(w, r, err)
		return
	case errors.Is(err, coordinator.ErrNotReady):
		e, getErr := s.entries.Get(id)
		if getErr != nil {
			s.writeDomainError(w, r, getErr)
			return
		}
		writeJSON(w, http.StatusAccepted, e)
		return
	default:
		s.logger.Warn("entry reload failed", "entry_id", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeSetupFailed, err.Error())
		return
	}

	e, err := s.entries.Get(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleReauthEntry starts a reauth flow seeded with the entry's data.
func (s *Server) handleReauthEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.entries.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	res, err := s.flows.Start(r.Context(), e.Domain, flow.SourceReauth, e.Data)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
