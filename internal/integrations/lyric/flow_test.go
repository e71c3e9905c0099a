package lyric

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/entry/entrytest"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

const testExternalURL = "https://home.example.com"

type flowEnv struct {
	honeywell *fakeHoneywell
	store     *entry.Store
	mgr       *flow.Manager
}

func newFlowEnv(t *testing.T, externalURL string) *flowEnv {
	t.Helper()

	env := &flowEnv{honeywell: newFakeHoneywell(t), store: entrytest.NewStore(t)}
	integ := New(env.honeywell.config(), externalURL, env.honeywell.srv.Client())
	env.mgr = flow.NewManager(env.store, flow.NewStateSigner("test-secret-that-is-at-least-32-chars", 10*time.Minute), flow.Config{})
	env.mgr.Register(Domain, integ.NewFlow)
	return env
}

// startAuth runs the user step and returns the external result.
func (env *flowEnv) startAuth(t *testing.T) flow.Result {
	t.Helper()
	ctx := context.Background()

	res, err := env.mgr.Start(ctx, Domain, flow.SourceUser, nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.Type != flow.ResultForm || res.StepID != flow.StepUser {
		t.Fatalf("Start() = %s/%s, want form/user", res.Type, res.StepID)
	}

	res, err = env.mgr.Configure(ctx, res.FlowID, flow.Input{
		ConfClientID:     testClientID,
		ConfClientSecret: testClientSecret,
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return res
}

func stateFrom(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing authorize url: %v", err)
	}
	return u.Query().Get("state")
}

func TestFlow_OAuthCreatesEntry(t *testing.T) {
	env := newFlowEnv(t, testExternalURL)
	ctx := context.Background()

	res := env.startAuth(t)
	if res.Type != flow.ResultExternal || res.StepID != flow.StepAuth {
		t.Fatalf("Configure() = %s/%s, want external/auth", res.Type, res.StepID)
	}

	u, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("parsing authorize url: %v", err)
	}
	if !strings.HasPrefix(res.URL, env.honeywell.srv.URL+"/oauth2/authorize?") {
		t.Errorf("authorize url = %q", res.URL)
	}
	q := u.Query()
	if q.Get("client_id") != testClientID || q.Get("response_type") != "code" {
		t.Errorf("authorize query = %v", q)
	}
	if q.Get("redirect_uri") != testExternalURL+CallbackPath {
		t.Errorf("redirect_uri = %q, want %q", q.Get("redirect_uri"), testExternalURL+CallbackPath)
	}
	if q.Get("state") == "" {
		t.Fatal("authorize url has no state")
	}

	if _, err := env.mgr.Configure(ctx, res.FlowID, nil); err == nil {
		t.Error("Configure() on a pending external step succeeded")
	}

	done, err := env.mgr.ResumeExternal(ctx, q.Get("state"), "good-code")
	if err != nil {
		t.Fatalf("ResumeExternal() error = %v", err)
	}
	if done.Type != flow.ResultExternalDone || done.StepID != flow.StepCreation {
		t.Fatalf("ResumeExternal() = %s/%s, want external_done/creation", done.Type, done.StepID)
	}

	res, err = env.mgr.Configure(ctx, res.FlowID, nil)
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultCreateEntry || res.Title != defaultName {
		t.Fatalf("Configure() = %s %q, want create_entry %q", res.Type, res.Title, defaultName)
	}

	e, ok := env.store.FindByUniqueID(Domain, testClientID)
	if !ok {
		t.Fatal("entry not stored under the client id")
	}
	if e.Data[ConfName] != defaultName || e.Data[ConfClientSecret] != testClientSecret {
		t.Errorf("entry data = %v", e.Data)
	}
	token, err := decodeToken(e.Data[ConfToken])
	if err != nil {
		t.Fatalf("decodeToken() error = %v", err)
	}
	if token.AccessToken != "access-1" || token.RefreshToken != "refresh-1" {
		t.Errorf("token = %+v", token)
	}
}

func TestFlow_RejectedCodeAborts(t *testing.T) {
	env := newFlowEnv(t, testExternalURL)
	ctx := context.Background()

	res := env.startAuth(t)
	if _, err := env.mgr.ResumeExternal(ctx, stateFrom(t, res.URL), "bad-code"); err != nil {
		t.Fatalf("ResumeExternal() error = %v", err)
	}
	res, err := env.mgr.Configure(ctx, res.FlowID, nil)
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonInvalidAuth {
		t.Errorf("Configure() = %s/%s, want abort/invalid_auth", res.Type, res.Reason)
	}
	if len(env.store.List()) != 0 {
		t.Error("entry created for a rejected code")
	}
}

func TestFlow_TokenEndpointDownAborts(t *testing.T) {
	env := newFlowEnv(t, testExternalURL)
	ctx := context.Background()

	res := env.startAuth(t)
	if _, err := env.mgr.ResumeExternal(ctx, stateFrom(t, res.URL), "good-code"); err != nil {
		t.Fatalf("ResumeExternal() error = %v", err)
	}
	env.honeywell.srv.Close()

	res, err := env.mgr.Configure(ctx, res.FlowID, nil)
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonCannotConnect {
		t.Errorf("Configure() = %s/%s, want abort/cannot_connect", res.Type, res.Reason)
	}
}

func TestFlow_WithoutExternalURL(t *testing.T) {
	env := newFlowEnv(t, "")

	res := env.startAuth(t)
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonMissingConfiguration {
		t.Errorf("Configure() = %s/%s, want abort/missing_configuration", res.Type, res.Reason)
	}
}

func TestFlow_AlreadyConfigured(t *testing.T) {
	env := newFlowEnv(t, testExternalURL)
	entrytest.Add(t, env.store, &entry.Entry{
		Domain:   Domain,
		Title:    defaultName,
		UniqueID: testClientID,
		Source:   string(flow.SourceUser),
		Data:     map[string]string{ConfClientID: testClientID},
	})

	res := env.startAuth(t)
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonAlreadyConfigured {
		t.Errorf("Configure() = %s/%s, want abort/already_configured", res.Type, res.Reason)
	}
}

func TestFlow_CustomName(t *testing.T) {
	env := newFlowEnv(t, testExternalURL)
	ctx := context.Background()

	res, _ := env.mgr.Start(ctx, Domain, flow.SourceUser, nil)
	res, err := env.mgr.Configure(ctx, res.FlowID, flow.Input{
		ConfClientID:     testClientID,
		ConfClientSecret: testClientSecret,
		ConfName:         "Upstairs",
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if _, err := env.mgr.ResumeExternal(ctx, stateFrom(t, res.URL), "good-code"); err != nil {
		t.Fatalf("ResumeExternal() error = %v", err)
	}
	res, _ = env.mgr.Configure(ctx, res.FlowID, nil)
	if res.Title != "Upstairs" {
		t.Errorf("title = %q, want Upstairs", res.Title)
	}
}

func TestFlow_AuthorizeURLContext(t *testing.T) {
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name       string
		ctx        context.Context
		wantType   flow.ResultType
		wantReason string
	}{
		{name: "deadline passed", ctx: expired, wantType: flow.ResultAbort, wantReason: flow.ReasonAuthorizeURLTimeout},
		{name: "caller cancelled", ctx: cancelled, wantType: flow.ResultForm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newFlowEnv(t, testExternalURL)
			res, err := env.mgr.Start(context.Background(), Domain, flow.SourceUser, nil)
			if err != nil {
				t.Fatal(err)
			}

			res, err = env.mgr.Configure(tt.ctx, res.FlowID, flow.Input{
				ConfClientID:     testClientID,
				ConfClientSecret: testClientSecret,
			})
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}
			if res.Type != tt.wantType || res.Reason != tt.wantReason {
				t.Errorf("Configure() = %s/%q, want %s/%q", res.Type, res.Reason, tt.wantType, tt.wantReason)
			}
			if tt.wantType == flow.ResultForm && res.Errors[flow.ErrorBaseKey] != flow.ErrorUnknown {
				t.Errorf("errors = %v, want base unknown", res.Errors)
			}
		})
	}
}
