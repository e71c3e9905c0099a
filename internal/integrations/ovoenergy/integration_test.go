package ovoenergy

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entity"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/entry/entrytest"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/platform"
)

func newTestIntegration(p *fakePortal) *Integration {
	i := New(p.config(), p.srv.Client())
	i.now = testNow
	return i
}

func setup(t *testing.T, p *fakePortal, password string) (*platform.Runtime, error) {
	t.Helper()

	pc := &platform.Context{
		Entry: &entry.Entry{
			ID:       "entry-1",
			Domain:   Domain,
			Title:    defaultName,
			UniqueID: testAccount,
			Data: map[string]string{
				ConfUsername:  testUsername,
				ConfPassword:  password,
				ConfName:      defaultName,
				ConfAccountID: testAccount,
			},
		},
		HTTPClient: p.srv.Client(),
	}
	rt, err := newTestIntegration(p).Setup(context.Background(), pc)
	if rt != nil {
		t.Cleanup(func() {
			for _, c := range rt.Coordinators {
				c.Shutdown()
			}
		})
	}
	return rt, err
}

func stateOf(t *testing.T, rt *platform.Runtime, key string) entity.State {
	t.Helper()
	for _, e := range rt.Entities {
		if e.Description.Key == key {
			return e.Render(nil)
		}
	}
	t.Fatalf("no entity with key %q", key)
	return entity.State{}
}

func TestSetup_Sensors(t *testing.T) {
	p := newFakePortal(t)
	rt, err := setup(t, p, testPassword)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if len(rt.Entities) != 4 {
		t.Fatalf("len(Entities) = %d, want 4", len(rt.Entities))
	}

	tests := []struct {
		key   string
		state string
		unit  string
		icon  string
	}{
		{key: "electricity_last_day", state: "10.457", unit: "kWh", icon: "mdi:flash"},
		{key: "gas_last_day", state: "28.25", unit: "kWh", icon: "mdi:fire"},
		{key: "electricity_half_hour", state: "0.221", unit: "kWh", icon: "mdi:flash"},
		{key: "cost_last_day", state: "4.35", unit: "GBP"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s := stateOf(t, rt, tt.key)
			if s.State != tt.state || s.Unit != tt.unit {
				t.Errorf("state = %q %q, want %q %q", s.State, s.Unit, tt.state, tt.unit)
			}
			if tt.icon != "" && s.Icon != tt.icon {
				t.Errorf("icon = %q, want %q", s.Icon, tt.icon)
			}
			if s.UniqueID != testAccount+"_"+tt.key {
				t.Errorf("UniqueID = %q", s.UniqueID)
			}
			if s.Device.Key() != Domain+":"+testAccount {
				t.Errorf("device key = %q", s.Device.Key())
			}
		})
	}

	attrs := stateOf(t, rt, "electricity_last_day").Attributes
	if attrs["cost"] != 2.57 || attrs["currency"] != "GBP" || attrs["start"] != "2026-03-15T00:00:00.000" {
		t.Errorf("attributes = %v", attrs)
	}

	dates := p.requestedDates()
	for _, want := range []string{"daily:2026-03", "half-hourly:2026-03-16", "half-hourly:2026-03-15"} {
		if !slices.Contains(dates, want) {
			t.Errorf("requested dates = %v, missing %s", dates, want)
		}
	}
}

func TestSetup_ElectricityOnlyAccount(t *testing.T) {
	p := newFakePortal(t)
	p.daily = `{"electricity": {"data": [{"consumption": 5, "interval": {}, "cost": {"amount": "1.25", "currencyUnit": "GBP"}}]}, "gas": null}`

	rt, err := setup(t, p, testPassword)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	for _, e := range rt.Entities {
		if e.Description.Key == "gas_last_day" {
			t.Error("gas sensor created for an electricity only account")
		}
	}
	if s := stateOf(t, rt, "cost_last_day"); s.State != "1.25" {
		t.Errorf("cost = %q, want 1.25", s.State)
	}
}

func TestSetup_NoHalfHourlyData(t *testing.T) {
	p := newFakePortal(t)
	p.halfHourly = map[string]string{}

	rt, err := setup(t, p, testPassword)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if s := stateOf(t, rt, "electricity_half_hour"); s.State != entity.StateUnknown {
		t.Errorf("state = %q, want unknown", s.State)
	}
}

func TestSetup_Failures(t *testing.T) {
	t.Run("bad password is fatal", func(t *testing.T) {
		p := newFakePortal(t)
		_, err := setup(t, p, "wrong")
		if !errors.Is(err, ErrAuthentication) || errors.Is(err, coordinator.ErrNotReady) {
			t.Errorf("Setup() error = %v, want ErrAuthentication only", err)
		}
	})

	t.Run("portal down is not ready", func(t *testing.T) {
		p := newFakePortal(t)
		p.srv.Close()
		_, err := setup(t, p, testPassword)
		if !errors.Is(err, coordinator.ErrNotReady) {
			t.Errorf("Setup() error = %v, want ErrNotReady", err)
		}
	})
}

func TestFlow(t *testing.T) {
	tests := []struct {
		name     string
		password string
		down     bool
		wantType flow.ResultType
		wantErr  string
	}{
		{name: "creates entry", password: testPassword, wantType: flow.ResultCreateEntry},
		{name: "invalid auth", password: "wrong", wantType: flow.ResultForm, wantErr: flow.ErrorInvalidAuth},
		{name: "cannot connect", password: testPassword, down: true, wantType: flow.ResultForm, wantErr: flow.ErrorCannotConnect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := newFakePortal(t)
			store := entrytest.NewStore(t)
			mgr := flow.NewManager(store, flow.NewStateSigner("test-secret-that-is-at-least-32-chars", 0), flow.Config{})
			mgr.Register(Domain, newTestIntegration(p).NewFlow)

			res, err := mgr.Start(ctx, Domain, flow.SourceUser, nil)
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if tt.down {
				p.srv.Close()
			}
			res, err = mgr.Configure(ctx, res.FlowID, flow.Input{ConfUsername: testUsername, ConfPassword: tt.password})
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}
			if res.Type != tt.wantType {
				t.Fatalf("Configure() type = %s (errors %v), want %s", res.Type, res.Errors, tt.wantType)
			}
			if tt.wantErr != "" {
				if res.Errors[flow.ErrorBaseKey] != tt.wantErr {
					t.Errorf("errors = %v, want base %s", res.Errors, tt.wantErr)
				}
				return
			}

			e, ok := store.FindByUniqueID(Domain, testAccount)
			if !ok {
				t.Fatal("entry not stored under the account id")
			}
			if e.Title != defaultName || e.Data[ConfAccountID] != testAccount || e.Data[ConfPassword] != testPassword {
				t.Errorf("entry = %q %v", e.Title, e.Data)
			}
		})
	}
}

func TestFlow_AlreadyConfiguredUpdatesPassword(t *testing.T) {
	ctx := context.Background()
	p := newFakePortal(t)
	store := entrytest.NewStore(t)
	existing := entrytest.Add(t, store, &entry.Entry{
		Domain:   Domain,
		Title:    defaultName,
		UniqueID: testAccount,
		Source:   string(flow.SourceUser),
		Data:     map[string]string{ConfUsername: testUsername, ConfPassword: "old", ConfAccountID: testAccount},
	})

	mgr := flow.NewManager(store, flow.NewStateSigner("test-secret-that-is-at-least-32-chars", 0), flow.Config{})
	mgr.Register(Domain, newTestIntegration(p).NewFlow)

	res, _ := mgr.Start(ctx, Domain, flow.SourceUser, nil)
	res, err := mgr.Configure(ctx, res.FlowID, flow.Input{ConfUsername: testUsername, ConfPassword: testPassword})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonAlreadyConfigured {
		t.Fatalf("Configure() = %s/%s, want abort/already_configured", res.Type, res.Reason)
	}
	got, _ := store.Get(existing.ID)
	if got.Data[ConfPassword] != testPassword {
		t.Errorf("password = %q, want the new one", got.Data[ConfPassword])
	}
}

func TestFlow_Reauth(t *testing.T) {
	ctx := context.Background()
	p := newFakePortal(t)
	store := entrytest.NewStore(t)
	existing := entrytest.Add(t, store, &entry.Entry{
		Domain:   Domain,
		Title:    defaultName,
		UniqueID: testAccount,
		Source:   string(flow.SourceUser),
		Data:     map[string]string{ConfUsername: testUsername, ConfPassword: "old", ConfAccountID: testAccount},
	})

	mgr := flow.NewManager(store, flow.NewStateSigner("test-secret-that-is-at-least-32-chars", 0), flow.Config{})
	mgr.Register(Domain, newTestIntegration(p).NewFlow)

	res, err := mgr.Start(ctx, Domain, flow.SourceReauth, existing.Data)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.ResultForm || res.StepID != flow.StepReauth {
		t.Fatalf("Start() = %s/%s, want form/reauth", res.Type, res.StepID)
	}
	if res.Placeholders["username"] != testUsername {
		t.Errorf("placeholders = %v", res.Placeholders)
	}

	res, err = mgr.Configure(ctx, res.FlowID, flow.Input{ConfPassword: "wrong"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != flow.ResultForm || res.Errors[flow.ErrorBaseKey] != flow.ErrorInvalidAuth {
		t.Fatalf("Configure(wrong) = %s %v, want invalid_auth form", res.Type, res.Errors)
	}

	res, err = mgr.Configure(ctx, res.FlowID, flow.Input{ConfPassword: testPassword})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonReauthSuccessful {
		t.Fatalf("Configure() = %s/%s, want abort/reauth_successful", res.Type, res.Reason)
	}
	got, _ := store.Get(existing.ID)
	if got.Data[ConfPassword] != testPassword {
		t.Errorf("password = %q, want the new one", got.Data[ConfPassword])
	}
	if n := len(store.ListByDomain(Domain)); n != 1 {
		t.Errorf("entries = %d, want the existing one updated", n)
	}
}
