package systembridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Entry data keys.
const (
	ConfHost   = "host"
	ConfPort   = "port"
	ConfAPIKey = "api_key"
)

// Zeroconf property keys announced by the bridge.
const (
	propertyMAC  = "mac"
	propertyHost = "host"
	propertyPort = "port"
)

func userSchema(defaultPort string) flow.Schema {
	return flow.Schema{
		{Name: ConfHost, Type: flow.FieldString, Required: true},
		{Name: ConfPort, Type: flow.FieldInt, Required: true, Default: defaultPort},
		{Name: ConfAPIKey, Type: flow.FieldPassword, Required: true},
	}
}

var authenticateSchema = flow.Schema{
	{Name: ConfAPIKey, Type: flow.FieldPassword, Required: true},
}

// bridgeInfo is what a successful check learns about a bridge.
type bridgeInfo struct {
	title string
	mac   string
}

// checkFunc validates connection data against the bridge.
type checkFunc func(ctx context.Context, data map[string]string) (bridgeInfo, error)

// validate queries /os and /network under the setup timeout and maps client
// errors to flow errors.
func validate(httpClient *http.Client) checkFunc {
	return func(ctx context.Context, data map[string]string) (bridgeInfo, error) {
		client, err := NewClient(httpClient, data[ConfHost], data[ConfPort], data[ConfAPIKey])
		if err != nil {
			return bridgeInfo{}, fmt.Errorf("%w: %w", flow.ErrInvalidHost, err)
		}

		ctx, cancel := context.WithTimeout(ctx, flow.ValidationTimeout)
		defer cancel()

		osInfo, err := client.GetOS(ctx)
		if err != nil {
			return bridgeInfo{}, classify(err)
		}
		network, err := client.GetNetwork(ctx)
		if err != nil {
			return bridgeInfo{}, classify(err)
		}

		mac, ok := network.DefaultMAC()
		if !ok {
			return bridgeInfo{}, fmt.Errorf("%w: no MAC for default interface %q", ErrResponse, network.InterfaceDefault)
		}

		title := data[ConfHost]
		if osInfo.Hostname != "" {
			title = osInfo.Hostname
		}
		return bridgeInfo{title: title, mac: mac}, nil
	}
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

// flowHandler runs the user, zeroconf, authenticate and reauth steps.
type flowHandler struct {
	f           *flow.Flow
	check       checkFunc
	defaultPort string

	// Collected by zeroconf and reauth before the key is asked for.
	host        string
	port        string
	reauthReady bool
}

func (h *flowHandler) Step(ctx context.Context, step string, input flow.Input) (flow.Result, error) {
	switch step {
	case flow.StepUser:
		return h.stepUser(ctx, input)
	case flow.StepZeroconf:
		return h.stepZeroconf(ctx, input)
	case flow.StepAuthenticate:
		return h.stepAuthenticate(ctx, input)
	case flow.StepReauth:
		return h.stepReauth(ctx, input)
	}
	return flow.Result{}, flow.UnknownStep(step)
}

func (h *flowHandler) stepUser(ctx context.Context, input flow.Input) (flow.Result, error) {
	schema := userSchema(h.defaultPort)
	if input == nil {
		return h.f.ShowForm(flow.StepUser, schema, nil, nil), nil
	}

	data := map[string]string{
		ConfHost:   input[ConfHost],
		ConfPort:   input[ConfPort],
		ConfAPIKey: input[ConfAPIKey],
	}
	info, err := h.check(ctx, data)
	if err != nil {
		return h.showError(flow.StepUser, schema, err)
	}

	if _, err := h.f.SetUniqueID(info.mac); err != nil {
		return flow.Result{}, err
	}
	if err := h.f.AbortIfUniqueIDConfigured(ctx, map[string]string{ConfHost: data[ConfHost]}); err != nil {
		return flow.Result{}, err
	}
	return h.f.CreateEntry(info.title, data), nil
}

func (h *flowHandler) stepZeroconf(ctx context.Context, input flow.Input) (flow.Result, error) {
	d := flow.DiscoveryInfoFromMap(input)

	h.host = d.Properties[propertyHost]
	if h.host == "" {
		h.host = d.Host
	}
	h.port = d.Properties[propertyPort]
	if h.port == "" {
		h.port = d.Port
	}

	mac := d.Properties[propertyMAC]
	if mac == "" {
		return h.f.Abort(flow.ReasonUnknown), nil
	}
	if _, err := h.f.SetUniqueID(mac); err != nil {
		return flow.Result{}, err
	}
	if err := h.f.AbortIfUniqueIDConfigured(ctx, map[string]string{ConfHost: h.host}); err != nil {
		return flow.Result{}, err
	}

	return h.f.ShowForm(flow.StepAuthenticate, authenticateSchema, nil, h.placeholders()), nil
}

func (h *flowHandler) stepAuthenticate(ctx context.Context, input flow.Input) (flow.Result, error) {
	if input == nil {
		return h.f.ShowForm(flow.StepAuthenticate, authenticateSchema, nil, h.placeholders()), nil
	}

	data := map[string]string{ConfHost: h.host, ConfPort: h.port, ConfAPIKey: input[ConfAPIKey]}
	info, err := h.check(ctx, data)
	if err != nil {
		return h.showError(flow.StepAuthenticate, authenticateSchema, err)
	}

	existing, err := h.f.SetUniqueID(info.mac)
	if err != nil {
		return flow.Result{}, err
	}
	if existing != nil {
		if err := h.f.AbortIfUniqueIDConfigured(ctx, data); err != nil {
			return flow.Result{}, err
		}
	}
	return h.f.CreateEntry(info.title, data), nil
}

// stepReauth is entered once with the current entry data and then with
// the new API key.
func (h *flowHandler) stepReauth(ctx context.Context, input flow.Input) (flow.Result, error) {
	if !h.reauthReady {
		h.host = input[ConfHost]
		h.port = input[ConfPort]
		if h.port == "" {
			h.port = h.defaultPort
		}
		h.reauthReady = true
		return h.f.ShowForm(flow.StepReauth, authenticateSchema, nil, h.placeholders()), nil
	}

	data := map[string]string{ConfHost: h.host, ConfPort: h.port, ConfAPIKey: input[ConfAPIKey]}
	info, err := h.check(ctx, data)
	if err != nil {
		return h.showError(flow.StepReauth, authenticateSchema, err)
	}

	existing, err := h.f.SetUniqueID(info.mac)
	if err != nil {
		return flow.Result{}, err
	}
	if existing != nil {
		if err := h.f.UpdateEntry(ctx, existing.ID, data); err != nil {
			return flow.Result{}, err
		}
		return h.f.Abort(flow.ReasonReauthSuccessful), nil
	}
	return h.f.CreateEntry(info.title, data), nil
}

func (h *flowHandler) showError(step string, schema flow.Schema, err error) (flow.Result, error) {
	key := flow.ErrorKey(err)
	if key == flow.ErrorUnknown {
		return flow.Result{}, err
	}
	return h.f.ShowForm(step, schema, map[string]string{flow.ErrorBaseKey: key}, h.placeholders()), nil
}

func (h *flowHandler) placeholders() map[string]string {
	if h.host == "" {
		return nil
	}
	return map[string]string{"name": h.host}
}
