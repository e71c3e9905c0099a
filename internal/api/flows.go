package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// startFlowRequest is the request body for POST /flows.
type startFlowRequest struct {
	Handler string `json:"handler"`
}

// handleListIntegrations returns the domains a flow can be started for.
func (s *Server) handleListIntegrations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"integrations": s.flows.Domains(),
	})
}

// handleListFlows returns every in-progress flow.
func (s *Server) handleListFlows(w http.ResponseWriter, _ *http.Request) {
	flows := s.flows.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"flows": flows,
		"count": len(flows),
	})
}

// handleStartFlow starts a user flow and returns its first step.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Handler == "" {
		writeBadRequest(w, "handler is required")
		return
	}

	res, err := s.flows.Start(r.Context(), req.Handler, flow.SourceUser, nil)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetFlow returns the current step of a flow.
func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	res, err := s.flows.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleConfigureFlow submits form input to the current step. An empty
// body submits no input.
func (s *Server) handleConfigureFlow(w http.ResponseWriter, r *http.Request) {
	input, err := decodeInput(r.Body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := s.flows.Configure(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAbortFlow removes an in-progress flow.
func (s *Server) handleAbortFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.flows.Abort(chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeInput reads a JSON object of form values. Numbers and booleans are
// accepted and converted to their string form; nulls are dropped.
func decodeInput(body io.Reader) (flow.Input, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	input := make(flow.Input, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case nil:
		case string:
			input[k] = val
		case json.Number:
			input[k] = val.String()
		case bool:
			input[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("field %q must be a string, number or boolean", k)
		}
	}
	return input, nil
}
