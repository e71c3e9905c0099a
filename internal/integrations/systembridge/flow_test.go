package systembridge

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/entry/entrytest"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
)

var testConfig = config.SystemBridgeConfig{
	Enabled:      true,
	DefaultPort:  9170,
	PollInterval: 120 * time.Second,
	PollTimeout:  10 * time.Second,
}

type flowEnv struct {
	bridge *fakeBridge
	store  *entry.Store
	mgr    *flow.Manager
	host   string
	port   string
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()

	env := &flowEnv{bridge: newFakeBridge(t), store: entrytest.NewStore(t)}
	env.host, env.port = env.bridge.hostPort(t)

	integ := New(testConfig, env.bridge.srv.Client())
	env.mgr = flow.NewManager(env.store, flow.NewStateSigner("test-secret-that-is-at-least-32-chars", time.Minute), flow.Config{})
	env.mgr.Register(Domain, integ.NewFlow)
	return env
}

func (env *flowEnv) discovery() map[string]string {
	return flow.DiscoveryInfo{
		Host:     "10.0.0.9",
		Port:     "9170",
		Hostname: testHostname + ".local.",
		Type:     ZeroconfType + ".local.",
		Name:     testHostname + "." + ZeroconfType + ".local.",
		Properties: map[string]string{
			"mac":  testMAC,
			"host": env.host,
			"port": env.port,
		},
	}.Map()
}

func (env *flowEnv) addEntry(t *testing.T, data map[string]string) *entry.Entry {
	t.Helper()
	return entrytest.Add(t, env.store, &entry.Entry{
		Domain:   Domain,
		Title:    testHostname,
		UniqueID: testMAC,
		Source:   string(flow.SourceUser),
		Data:     data,
	})
}

func TestFlow_UserCreatesEntry(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	res, err := env.mgr.Start(ctx, Domain, flow.SourceUser, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.ResultForm || res.StepID != flow.StepUser {
		t.Fatalf("Start() = %s/%s, want form/user", res.Type, res.StepID)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Start() errors = %v, want none", res.Errors)
	}

	res, err = env.mgr.Configure(ctx, res.FlowID, flow.Input{
		ConfHost:   env.host,
		ConfPort:   env.port,
		ConfAPIKey: testAPIKey,
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultCreateEntry {
		t.Fatalf("Configure() type = %s (errors %v), want create_entry", res.Type, res.Errors)
	}
	if res.Title != testHostname {
		t.Errorf("title = %q, want %q", res.Title, testHostname)
	}

	e, ok := env.store.FindByUniqueID(Domain, testMAC)
	if !ok {
		t.Fatal("entry not persisted under the MAC")
	}
	want := map[string]string{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: testAPIKey}
	for k, v := range want {
		if e.Data[k] != v {
			t.Errorf("entry data[%s] = %q, want %q", k, e.Data[k], v)
		}
	}
	if len(env.mgr.List()) != 0 {
		t.Error("finished flow still listed")
	}
}

func TestFlow_UserDefaultsPort(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	res, _ := env.mgr.Start(ctx, Domain, flow.SourceUser, nil)
	if len(res.Schema) != 3 || res.Schema[1].Default != "9170" {
		t.Errorf("user schema = %+v, want port default 9170", res.Schema)
	}
}

func TestFlow_UserErrors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(env *flowEnv) flow.Input
		wantKey string
	}{
		{
			name: "invalid auth",
			prepare: func(env *flowEnv) flow.Input {
				return flow.Input{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: "wrong"}
			},
			wantKey: flow.ErrorInvalidAuth,
		},
		{
			name: "cannot connect",
			prepare: func(env *flowEnv) flow.Input {
				env.bridge.srv.Close()
				return flow.Input{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: testAPIKey}
			},
			wantKey: flow.ErrorCannotConnect,
		},
		{
			name: "bridge error",
			prepare: func(env *flowEnv) flow.Input {
				env.bridge.setStatus(http.StatusInternalServerError)
				return flow.Input{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: testAPIKey}
			},
			wantKey: flow.ErrorCannotConnect,
		},
		{
			name: "invalid host",
			prepare: func(env *flowEnv) flow.Input {
				return flow.Input{ConfHost: "http://bridge", ConfPort: env.port, ConfAPIKey: testAPIKey}
			},
			wantKey: flow.ErrorInvalidHost,
		},
		{
			name: "no default interface",
			prepare: func(env *flowEnv) flow.Input {
				env.bridge.set("/network", `{"interfaceDefault": "eth9", "interfaces": {}}`)
				return flow.Input{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: testAPIKey}
			},
			wantKey: flow.ErrorUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFlowEnv(t)
			ctx := context.Background()

			res, err := env.mgr.Start(ctx, Domain, flow.SourceUser, nil)
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			res, err = env.mgr.Configure(ctx, res.FlowID, tt.prepare(env))
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}
			if res.Type != flow.ResultForm || res.StepID != flow.StepUser {
				t.Fatalf("Configure() = %s/%s, want form/user", res.Type, res.StepID)
			}
			if got := res.Errors[flow.ErrorBaseKey]; got != tt.wantKey {
				t.Errorf("errors[base] = %q, want %q", got, tt.wantKey)
			}
			if len(env.store.List()) != 0 {
				t.Error("entry created despite the error")
			}
		})
	}
}

func TestFlow_UserAlreadyConfiguredUpdatesHost(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()
	existing := env.addEntry(t, map[string]string{ConfHost: "old-host", ConfPort: env.port, ConfAPIKey: testAPIKey})

	res, _ := env.mgr.Start(ctx, Domain, flow.SourceUser, nil)
	res, err := env.mgr.Configure(ctx, res.FlowID, flow.Input{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: testAPIKey})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonAlreadyConfigured {
		t.Fatalf("Configure() = %s/%s, want abort/already_configured", res.Type, res.Reason)
	}

	got, err := env.store.Get(existing.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Data[ConfHost] != env.host {
		t.Errorf("host = %q, want %q", got.Data[ConfHost], env.host)
	}
}

func TestFlow_ZeroconfCreatesEntry(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	res, err := env.mgr.Start(ctx, Domain, flow.SourceZeroconf, env.discovery())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.ResultForm || res.StepID != flow.StepAuthenticate {
		t.Fatalf("Start() = %s/%s, want form/authenticate", res.Type, res.StepID)
	}
	if res.Placeholders["name"] != env.host {
		t.Errorf("placeholders = %v, want name %q", res.Placeholders, env.host)
	}

	res, err = env.mgr.Configure(ctx, res.FlowID, flow.Input{ConfAPIKey: testAPIKey})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultCreateEntry {
		t.Fatalf("Configure() type = %s (errors %v), want create_entry", res.Type, res.Errors)
	}

	e, ok := env.store.FindByUniqueID(Domain, testMAC)
	if !ok {
		t.Fatal("entry not persisted")
	}
	want := map[string]string{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: testAPIKey}
	if len(e.Data) != len(want) {
		t.Errorf("entry data = %v, want %v", e.Data, want)
	}
	for k, v := range want {
		if e.Data[k] != v {
			t.Errorf("entry data[%s] = %q, want %q", k, e.Data[k], v)
		}
	}
	if e.Source != string(flow.SourceZeroconf) {
		t.Errorf("source = %q, want zeroconf", e.Source)
	}
}

func TestFlow_ZeroconfCannotConnect(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	res, _ := env.mgr.Start(ctx, Domain, flow.SourceZeroconf, env.discovery())
	env.bridge.srv.Close()

	res, err := env.mgr.Configure(ctx, res.FlowID, flow.Input{ConfAPIKey: testAPIKey})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultForm || res.StepID != flow.StepAuthenticate {
		t.Fatalf("Configure() = %s/%s, want form/authenticate", res.Type, res.StepID)
	}
	if res.Errors[flow.ErrorBaseKey] != flow.ErrorCannotConnect {
		t.Errorf("errors = %v, want base cannot_connect", res.Errors)
	}
}

func TestFlow_ZeroconfAlreadyConfiguredUpdatesHost(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()
	existing := env.addEntry(t, map[string]string{ConfHost: "old-host", ConfPort: env.port, ConfAPIKey: testAPIKey})

	res, err := env.mgr.Start(ctx, Domain, flow.SourceZeroconf, env.discovery())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonAlreadyConfigured {
		t.Fatalf("Start() = %s/%s, want abort/already_configured", res.Type, res.Reason)
	}

	got, _ := env.store.Get(existing.ID)
	if got.Data[ConfHost] != env.host {
		t.Errorf("host = %q, want %q", got.Data[ConfHost], env.host)
	}
	if got.Data[ConfAPIKey] != testAPIKey {
		t.Error("api key lost when the host was updated")
	}
}

func TestFlow_ZeroconfWithoutMACAborts(t *testing.T) {
	env := newFlowEnv(t)

	info := env.discovery()
	delete(info, "properties.mac")

	res, err := env.mgr.Start(context.Background(), Domain, flow.SourceZeroconf, info)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonUnknown {
		t.Errorf("Start() = %s/%s, want abort/unknown", res.Type, res.Reason)
	}
}

func TestFlow_Reauth(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()
	existing := env.addEntry(t, map[string]string{ConfHost: env.host, ConfPort: env.port, ConfAPIKey: "expired-key"})

	res, err := env.mgr.Start(ctx, Domain, flow.SourceReauth, existing.Data)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.ResultForm || res.StepID != flow.StepReauth {
		t.Fatalf("Start() = %s/%s, want form/reauth", res.Type, res.StepID)
	}
	flowID := res.FlowID

	res, err = env.mgr.Configure(ctx, flowID, flow.Input{ConfAPIKey: "still-wrong"})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultForm || res.Errors[flow.ErrorBaseKey] != flow.ErrorInvalidAuth {
		t.Fatalf("Configure(wrong) = %s %v, want form with invalid_auth", res.Type, res.Errors)
	}

	env.bridge.setStatus(http.StatusBadGateway)
	res, _ = env.mgr.Configure(ctx, flowID, flow.Input{ConfAPIKey: testAPIKey})
	if res.Errors[flow.ErrorBaseKey] != flow.ErrorCannotConnect {
		t.Fatalf("Configure(down) errors = %v, want cannot_connect", res.Errors)
	}
	env.bridge.setStatus(0)

	res, err = env.mgr.Configure(ctx, flowID, flow.Input{ConfAPIKey: testAPIKey})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonReauthSuccessful {
		t.Fatalf("Configure() = %s/%s, want abort/reauth_successful", res.Type, res.Reason)
	}

	got, _ := env.store.Get(existing.ID)
	if got.Data[ConfAPIKey] != testAPIKey {
		t.Errorf("api key = %q, want the new key", got.Data[ConfAPIKey])
	}
	if len(env.store.List()) != 1 {
		t.Errorf("entries = %d, want 1", len(env.store.List()))
	}
}
