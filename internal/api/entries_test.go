package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/entry/entrytest"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

type entryList struct {
	Entries []entry.Entry `json:"entries"`
	Count   int           `json:"count"`
}

func TestEntries_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	created := env.createBenchEntry(t, benchUniqueID, "secret-value")
	entrytest.Add(t, env.store, &entry.Entry{
		Domain:   oauthDomain,
		Title:    "Cloud",
		UniqueID: "cloud-1",
		Source:   string(flow.SourceUser),
		Data:     map[string]string{dataValue: "cloud"},
	})

	rec := env.do(t, http.MethodGet, "/api/v1/entries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-value") {
		t.Error("entry list leaks entry data")
	}
	if list := decodeBody[entryList](t, rec); list.Count != 2 {
		t.Errorf("count = %d, want 2", list.Count)
	}

	list := decodeBody[entryList](t, env.do(t, http.MethodGet, "/api/v1/entries?domain="+formDomain, nil))
	if list.Count != 1 || list.Entries[0].ID != created.ID {
		t.Fatalf("filtered entries = %+v", list.Entries)
	}
	if list.Entries[0].State != entry.StateLoaded {
		t.Errorf("state = %q, want %q", list.Entries[0].State, entry.StateLoaded)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/entries/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody[entry.Entry](t, rec)
	if got.UniqueID != benchUniqueID || got.Domain != formDomain {
		t.Errorf("entry = %+v", got)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/entries/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", rec.Code)
	}
}

func TestEntries_Delete(t *testing.T) {
	env := newTestEnv(t)
	created := env.createBenchEntry(t, benchUniqueID, "1")

	rec := env.do(t, http.MethodDelete, "/api/v1/entries/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, err := env.store.Get(created.ID); err == nil {
		t.Error("entry still stored after delete")
	}
	if _, err := env.entities.Get(benchEntityID); err == nil {
		t.Error("entity still registered after delete")
	}
	if env.host.IsLoaded(created.ID) {
		t.Error("entry still loaded after delete")
	}

	if rec := env.do(t, http.MethodDelete, "/api/v1/entries/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestEntries_Reload(t *testing.T) {
	env := newTestEnv(t)
	loaded := env.createBenchEntry(t, benchUniqueID, "1")
	notReady := entrytest.Add(t, env.store, &entry.Entry{
		Domain:   formDomain,
		Title:    "Offline",
		UniqueID: "offline",
		Data:     map[string]string{dataFail: failNotReady},
	})
	broken := entrytest.Add(t, env.store, &entry.Entry{
		Domain:   formDomain,
		Title:    "Broken",
		UniqueID: "broken",
		Data:     map[string]string{dataFail: failFatal},
	})

	tests := []struct {
		name      string
		id        string
		want      int
		wantState entry.State
	}{
		{"loaded", loaded.ID, http.StatusOK, entry.StateLoaded},
		{"not ready", notReady.ID, http.StatusAccepted, entry.StateSetupRetry},
		{"fatal", broken.ID, http.StatusBadGateway, entry.StateSetupError},
		{"unknown", "missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/entries/"+tt.id+"/reload", nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantState == "" {
				return
			}
			e, err := env.store.Get(tt.id)
			if err != nil {
				t.Fatal(err)
			}
			if e.State != tt.wantState {
				t.Errorf("state = %q, want %q", e.State, tt.wantState)
			}
		})
	}

	if _, err := env.entities.Get(benchEntityID); err != nil {
		t.Errorf("reloaded entity not registered: %v", err)
	}
	body := decodeBody[Error](t, env.do(t, http.MethodPost, "/api/v1/entries/"+broken.ID+"/reload", nil))
	if body.Code != ErrCodeSetupFailed {
		t.Errorf("fatal reload code = %q, want %q", body.Code, ErrCodeSetupFailed)
	}
}

func TestEntries_Reauth(t *testing.T) {
	env := newTestEnv(t)
	created := env.createBenchEntry(t, benchUniqueID, "1")

	rec := env.do(t, http.MethodPost, "/api/v1/entries/"+created.ID+"/reauth", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reauth status = %d, body = %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[flow.Result](t, rec)
	if res.Type != flow.ResultAbort || res.Reason != flow.ReasonReauthSuccessful {
		t.Errorf("result = %+v, want abort reauth_successful", res)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/entries/missing/reauth", nil); rec.Code != http.StatusNotFound {
		t.Errorf("reauth missing status = %d, want 404", rec.Code)
	}
	cloud := entrytest.Add(t, env.store, &entry.Entry{
		Domain:   oauthDomain,
		Title:    "Cloud",
		UniqueID: "cloud-1",
		Data:     map[string]string{dataValue: "cloud"},
	})
	rec = env.do(t, http.MethodPost, "/api/v1/entries/"+cloud.ID+"/reauth", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reauth without a reauth step status = %d, want 400", rec.Code)
	}
	if flows := env.flows.List(); len(flows) != 0 {
		t.Errorf("rejected reauth left %d flows in progress", len(flows))
	}
}
