package ovoenergy

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Entry data keys.
const (
	ConfUsername  = "username"
	ConfPassword  = "password"
	ConfName      = "name"
	ConfAccountID = "account_id"
)

const defaultName = "OVO"

var userSchema = flow.Schema{
	{Name: ConfUsername, Type: flow.FieldString, Required: true},
	{Name: ConfPassword, Type: flow.FieldPassword, Required: true},
	{Name: ConfName, Type: flow.FieldString, Default: defaultName},
}

// accountFunc logs in and returns the account id.
type accountFunc func(ctx context.Context, username, password string) (string, error)

func (i *Integration) lookupAccount(ctx context.Context, username, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, flow.ValidationTimeout)
	defer cancel()

	c := NewClient(i.httpClient, i.cfg.AuthURL, i.cfg.UsageURL, username, password)
	if err := c.Login(ctx); err != nil {
		return "", classify(err)
	}
	id, err := c.AccountID(ctx)
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrAuthentication):
		return fmt.Errorf("%w: %w", flow.ErrInvalidAuth, err)
	case errors.Is(err, ErrConnection), errors.Is(err, ErrResponse), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", flow.ErrCannotConnect, err)
	default:
		return err
	}
}

var reauthSchema = flow.Schema{
	{Name: ConfPassword, Type: flow.FieldPassword, Required: true},
}

// flowHandler runs the user and reauth steps.
type flowHandler struct {
	f       *flow.Flow
	account accountFunc

	// Set by the first reauth call from the entry data.
	username string
	name     string
}

func (h *flowHandler) Step(ctx context.Context, step string, input flow.Input) (flow.Result, error) {
	switch step {
	case flow.StepUser:
		return h.stepUser(ctx, input)
	case flow.StepReauth:
		return h.stepReauth(ctx, input)
	}
	return flow.Result{}, flow.UnknownStep(step)
}

func (h *flowHandler) stepUser(ctx context.Context, input flow.Input) (flow.Result, error) {
	if input == nil {
		return h.f.ShowForm(flow.StepUser, userSchema, nil, nil), nil
	}

	name := input[ConfName]
	if name == "" {
		name = defaultName
	}

	account, err := h.account(ctx, input[ConfUsername], input[ConfPassword])
	if err != nil {
		return h.showError(flow.StepUser, userSchema, err)
	}

	if _, err := h.f.SetUniqueID(account); err != nil {
		return flow.Result{}, err
	}
	credentials := map[string]string{ConfUsername: input[ConfUsername], ConfPassword: input[ConfPassword]}
	if err := h.f.AbortIfUniqueIDConfigured(ctx, credentials); err != nil {
		return flow.Result{}, err
	}

	return h.f.CreateEntry(name, map[string]string{
		ConfUsername:  input[ConfUsername],
		ConfPassword:  input[ConfPassword],
		ConfName:      name,
		ConfAccountID: account,
	}), nil
}

// stepReauth is entered once with the current entry data and then with
// the new password.
func (h *flowHandler) stepReauth(ctx context.Context, input flow.Input) (flow.Result, error) {
	if h.username == "" {
		h.username = input[ConfUsername]
		h.name = input[ConfName]
		if h.username == "" {
			return h.f.Abort(flow.ReasonMissingConfiguration), nil
		}
		return h.f.ShowForm(flow.StepReauth, reauthSchema, nil, h.placeholders()), nil
	}

	account, err := h.account(ctx, h.username, input[ConfPassword])
	if err != nil {
		return h.showError(flow.StepReauth, reauthSchema, err)
	}

	existing, err := h.f.SetUniqueID(account)
	if err != nil {
		return flow.Result{}, err
	}
	credentials := map[string]string{ConfUsername: h.username, ConfPassword: input[ConfPassword]}
	if existing != nil {
		if err := h.f.UpdateEntry(ctx, existing.ID, credentials); err != nil {
			return flow.Result{}, err
		}
		return h.f.Abort(flow.ReasonReauthSuccessful), nil
	}

	name := h.name
	if name == "" {
		name = defaultName
	}
	credentials[ConfName] = name
	credentials[ConfAccountID] = account
	return h.f.CreateEntry(name, credentials), nil
}

func (h *flowHandler) showError(step string, schema flow.Schema, err error) (flow.Result, error) {
	key := flow.ErrorKey(err)
	if key == flow.ErrorUnknown {
		return flow.Result{}, err
	}
	return h.f.ShowForm(step, schema, map[string]string{flow.ErrorBaseKey: key}, h.placeholders()), nil
}

func (h *flowHandler) placeholders() map[string]string {
	if h.username == "" {
		return nil
	}
	return map[string]string{"username": h.username}
}
