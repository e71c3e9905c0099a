package lyric

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
)

const (
	testClientID     = "client-id-123"
	testClientSecret = "client-secret-456"
	testMacID        = "00D02DB89E33"
	testDeviceID     = "LCC-00D02DB89E33"
)

const testLocations = `[{
	"locationID": 1234,
	"name": "Home",
	"devices": [
		{
			"deviceID": "LCC-00D02DB89E33",
			"deviceClass": "Thermostat",
			"deviceModel": "T6 Pro",
			"macID": "00D02DB89E33",
			"userDefinedDeviceName": "Living Room",
			"isAlive": true,
			"units": "Celsius",
			"indoorTemperature": 20.5,
			"indoorHumidity": 45,
			"outdoorTemperature": 8,
			"allowedModes": ["Heat", "Off", "Cool", "Auto"],
			"minHeatSetpoint": 5,
			"maxHeatSetpoint": 32,
			"minCoolSetpoint": 10,
			"maxCoolSetpoint": 37,
			"changeableValues": {
				"mode": "Heat",
				"autoChangeoverActive": false,
				"heatSetpoint": 21,
				"coolSetpoint": 25,
				"thermostatSetpointStatus": "NoHold",
				"heatCoolMode": "Heat"
			},
			"operationStatus": {"mode": "Heat"}
		},
		{
			"deviceID": "LSENSOR-1",
			"deviceClass": "LeakDetector",
			"macID": "00D02DB80000",
			"userDefinedDeviceName": "Basement"
		}
	]
}]`

// fakeHoneywell is both the OAuth token endpoint and the API.
type fakeHoneywell struct {
	srv *httptest.Server

	mu        sync.Mutex
	access    string
	refreshes int
	codes     []string
	updates   []map[string]any
	locations string
}

func newFakeHoneywell(t *testing.T) *fakeHoneywell {
	t.Helper()

	h := &fakeHoneywell{access: "access-1", locations: testLocations}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", h.token)
	mux.HandleFunc("/v2/locations", h.authed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h.mu.Lock()
		body := h.locations
		h.mu.Unlock()
		_, _ = io.WriteString(w, body)
	}))
	mux.HandleFunc("/v2/devices/thermostats/", h.authed(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("locationId") != "1234" ||
			!strings.HasSuffix(r.URL.Path, "/"+testDeviceID) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		h.updates = append(h.updates, body)
		h.mu.Unlock()
	}))
	h.srv = httptest.NewServer(mux)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHoneywell) token(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != testClientID || pass != testClientSecret {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": "invalid_client"}`)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		if code != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": "invalid_grant"}`)
			return
		}
		h.codes = append(h.codes, code)
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": "invalid_grant"}`)
			return
		}
		h.refreshes++
		h.access = "access-2"
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  h.access,
		"refresh_token": "refresh-1",
		"token_type":    "Bearer",
		"expires_in":    1799,
	})
}

func (h *fakeHoneywell) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		want := "Bearer " + h.access
		h.mu.Unlock()
		if r.Header.Get("Authorization") != want || r.URL.Query().Get("apikey") != testClientID {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *fakeHoneywell) config() config.LyricConfig {
	return config.LyricConfig{
		Enabled:      true,
		AuthorizeURL: h.srv.URL + "/oauth2/authorize",
		TokenURL:     h.srv.URL + "/oauth2/token",
		APIURL:       h.srv.URL,
		PollInterval: 120 * time.Second,
		PollTimeout:  60 * time.Second,
	}
}

func (h *fakeHoneywell) lastUpdate() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) == 0 {
		return nil
	}
	return h.updates[len(h.updates)-1]
}
