package lyric

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Entry data keys.
const (
	ConfName         = "name"
	ConfClientID     = "client_id"
	ConfClientSecret = "client_secret"
	ConfToken        = "token"
)

const defaultName = "Lyric"

var userSchema = flow.Schema{
	{Name: ConfClientID, Type: flow.FieldString, Required: true},
	{Name: ConfClientSecret, Type: flow.FieldPassword, Required: true},
	{Name: ConfName, Type: flow.FieldString, Default: defaultName},
}

// flowHandler runs user → auth (external) → code → creation.
type flowHandler struct {
	f   *flow.Flow
	in  *Integration
	cfg *oauth2.Config

	name string
	code string
}

func (h *flowHandler) Step(ctx context.Context, step string, input flow.Input) (flow.Result, error) {
	switch step {
	case flow.StepUser:
		return h.stepUser(ctx, input)
	case flow.StepAuth:
		if input != nil {
			return h.stepCode(input["code"])
		}
		return h.stepAuth(ctx)
	case flow.StepCode:
		return h.stepCode(input["code"])
	case flow.StepCreation:
		return h.stepCreation(ctx)
	}
	return flow.Result{}, flow.UnknownStep(step)
}

func (h *flowHandler) stepUser(ctx context.Context, input flow.Input) (flow.Result, error) {
	if input == nil {
		return h.f.ShowForm(flow.StepUser, userSchema, nil, nil), nil
	}

	h.name = input[ConfName]
	if h.name == "" {
		h.name = defaultName
	}

	if _, err := h.f.SetUniqueID(input[ConfClientID]); err != nil {
		return flow.Result{}, err
	}
	if err := h.f.AbortIfUniqueIDConfigured(ctx, nil); err != nil {
		return flow.Result{}, err
	}

	h.cfg = oauthConfig(h.in.cfg, input[ConfClientID], input[ConfClientSecret], h.in.externalURL)
	return h.stepAuth(ctx)
}

// stepAuth sends the user to Honeywell with the signed flow state.
func (h *flowHandler) stepAuth(ctx context.Context) (flow.Result, error) {
	if h.cfg == nil {
		return flow.Result{}, flow.UnknownStep(flow.StepAuth)
	}
	if h.in.externalURL == "" {
		return h.f.Abort(flow.ReasonMissingConfiguration), nil
	}

	ctx, cancel := context.WithTimeout(ctx, flow.ValidationTimeout)
	defer cancel()

	state, err := h.f.ExternalState()
	if err != nil {
		return flow.Result{}, err
	}
	authURL := h.cfg.AuthCodeURL(state)

	// A caller that went away is not an authorize URL timeout.
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return h.f.Abort(flow.ReasonAuthorizeURLTimeout), nil
	case err != nil:
		return flow.Result{}, err
	}
	return h.f.ExternalStep(flow.StepAuth, authURL), nil
}

func (h *flowHandler) stepCode(code string) (flow.Result, error) {
	if code == "" {
		return h.f.Abort(flow.ReasonInvalidAuth), nil
	}
	h.code = code
	return h.f.ExternalStepDone(flow.StepCreation), nil
}

// stepCreation exchanges the code and creates the entry.
func (h *flowHandler) stepCreation(ctx context.Context) (flow.Result, error) {
	if h.cfg == nil || h.code == "" {
		return flow.Result{}, flow.UnknownStep(flow.StepCreation)
	}

	ctx, cancel := context.WithTimeout(withHTTPClient(ctx, h.in.httpClient), flow.ValidationTimeout)
	defer cancel()

	token, err := h.cfg.Exchange(ctx, h.code)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return h.f.Abort(flow.ReasonInvalidAuth), nil
		}
		return h.f.Abort(flow.ReasonCannotConnect), nil
	}

	encoded, err := encodeToken(token)
	if err != nil {
		return flow.Result{}, err
	}
	return h.f.CreateEntry(h.name, map[string]string{
		ConfName:         h.name,
		ConfClientID:     h.cfg.ClientID,
		ConfClientSecret: h.cfg.ClientSecret,
		ConfToken:        encoded,
	}), nil
}
