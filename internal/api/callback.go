package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// closeWindowPage is served after a successful callback so the popup the
// user authorised in closes itself.
const closeWindowPage = "<script>window.close()</script>"

// handleAuthCallback receives the OAuth2 redirect, resumes the flow named
// by the signed state and, once the external step is done, runs the step
// that creates the entry.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		writeText(w, http.StatusBadRequest, "Missing code or state parameter in "+r.URL.String())
		return
	}

	domain := chi.URLParam(r, "domain")
	ctx := r.Context()

	res, err := s.flows.ResumeExternal(ctx, state, code)
	if err != nil {
		s.logger.Warn("oauth callback rejected", "domain", domain, "error", err)
		writeText(w, callbackStatus(err), callbackMessage(err))
		return
	}

	if res.Type == flow.ResultExternalDone {
		flowID := res.FlowID
		res, err = s.flows.Configure(ctx, flowID, nil)
		if err != nil {
			s.logger.Error("completing flow after callback failed",
				"domain", domain, "flow_id", flowID, "error", err)
			writeText(w, http.StatusInternalServerError, "Setup could not be completed.")
			return
		}
	}

	s.logger.Info("oauth callback handled",
		"domain", domain, "flow_id", res.FlowID, "result", res.Type, "reason", res.Reason)
	s.hub.Broadcast(EventFlowProgressed, res)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(closeWindowPage))
}

func callbackStatus(err error) int {
	switch {
	case errors.Is(err, flow.ErrFlowExpired):
		return http.StatusGone
	case errors.Is(err, flow.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrNotExternal):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func callbackMessage(err error) string {
	switch {
	case errors.Is(err, flow.ErrFlowExpired):
		return "This setup link has expired. Start the setup again."
	case errors.Is(err, flow.ErrFlowNotFound):
		return "This setup is no longer in progress."
	case errors.Is(err, flow.ErrNotExternal):
		return "This setup is not waiting for authorisation."
	default:
		return "Invalid state parameter."
	}
}

// writeText writes a plain text response.
func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(text))
}
