package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-integrations/internal/entity"
)

// handleListEntities returns rendered states, optionally filtered by
// ?entry_id= or ?domain=.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	var states []entity.State
	if entryID := r.URL.Query().Get("entry_id"); entryID != "" {
		states = s.entities.EntryStates(entryID)
	} else {
		states = s.entities.States()
	}

	if domain := r.URL.Query().Get("domain"); domain != "" {
		filtered := states[:0]
		for _, st := range states {
			if st.Domain == domain {
				filtered = append(filtered, st)
			}
		}
		states = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": states,
		"count":    len(states),
	})
}

// handleGetEntity returns one rendered state plus the services the entity
// supports.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := s.entities.Get(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	state, err := s.entities.Render(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":    state,
		"services": e.ServiceNames(),
	})
}

// handleCallService runs a service with the JSON body as parameters and
// returns the entity's state afterwards.
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	service := chi.URLParam(r, "service")

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.host.CallService(r.Context(), id, service, params); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	state, err := s.entities.Render(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
