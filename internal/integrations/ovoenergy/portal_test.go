package ovoenergy

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
	testUsername = "customer@example.com"
	testPassword = "hunter2"
	testAccount  = "1234567"
)

const testDaily = `{
	"electricity": {"data": [
		{"consumption": 9.812, "interval": {"start": "2026-03-14T00:00:00.000", "end": "2026-03-14T23:59:59.999"}, "cost": {"amount": "2.41", "currencyUnit": "GBP"}},
		{"consumption": 10.4567, "interval": {"start": "2026-03-15T00:00:00.000", "end": "2026-03-15T23:59:59.999"}, "cost": {"amount": "2.57", "currencyUnit": "GBP"}}
	]},
	"gas": {"data": [
		{"consumption": 30.1, "interval": {"start": "2026-03-14T00:00:00.000", "end": "2026-03-14T23:59:59.999"}, "cost": {"amount": "1.90", "currencyUnit": "GBP"}},
		{"consumption": 28.25, "interval": {"start": "2026-03-15T00:00:00.000", "end": "2026-03-15T23:59:59.999"}, "cost": {"amount": "1.78", "currencyUnit": "GBP"}}
	]}
}`

const testHalfHourly = `{
	"electricity": {"data": [
		{"consumption": 0.18, "interval": {"start": "2026-03-15T23:00:00.000", "end": "2026-03-15T23:29:59.999"}, "unit": "kWh"},
		{"consumption": 0.221, "interval": {"start": "2026-03-15T23:30:00.000", "end": "2026-03-15T23:59:59.999"}, "unit": "kWh"}
	]}
}`

// fakePortal serves login, account and usage pages behind a session
// cookie.
type fakePortal struct {
	srv *httptest.Server

	mu         sync.Mutex
	password   string
	session    string
	logins     int
	dates      []string
	daily      string
	halfHourly map[string]string
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()

	p := &fakePortal{
		password:   testPassword,
		daily:      testDaily,
		halfHourly: map[string]string{"2026-03-15": testHalfHourly},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", p.login)
	mux.HandleFunc("/api/customer-and-account-ids", p.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"customerId": "c-1", "accountIds": [1234567]}`)
	}))
	mux.HandleFunc("/api/energy-usage/daily/", p.authed(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/"+testAccount) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		p.mu.Lock()
		p.dates = append(p.dates, "daily:"+r.URL.Query().Get("date"))
		body := p.daily
		p.mu.Unlock()
		_, _ = io.WriteString(w, body)
	}))
	mux.HandleFunc("/api/energy-usage/half-hourly/", p.authed(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		p.mu.Lock()
		p.dates = append(p.dates, "half-hourly:"+date)
		body, ok := p.halfHourly[date]
		p.mu.Unlock()
		if !ok {
			body = `{"electricity": {"data": []}}`
		}
		_, _ = io.WriteString(w, body)
	}))
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePortal) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if body.Username != testUsername || body.Password != p.password {
		_, _ = io.WriteString(w, `{"code": "Unknown", "message": "invalid credentials"}`)
		return
	}
	p.logins++
	p.session = "session-" + strings.Repeat("x", p.logins)
	http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: p.session, Path: "/"})
	_, _ = io.WriteString(w, `{"code": "OK"}`)
}

func (p *fakePortal) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("SESSION")
		p.mu.Lock()
		ok := err == nil && p.session != "" && cookie.Value == p.session
		p.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

// expireSession invalidates the current cookie.
func (p *fakePortal) expireSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = "expired"
}

func (p *fakePortal) config() config.OVOEnergyConfig {
	return config.OVOEnergyConfig{
		Enabled:      true,
		AuthURL:      p.srv.URL,
		UsageURL:     p.srv.URL,
		PollInterval: 300 * time.Second,
		PollTimeout:  60 * time.Second,
	}
}

// testNow is a day after the last daily reading.
func testNow() time.Time {
	return time.Date(2026, 3, 16, 7, 30, 0, 0, time.UTC)
}

func (p *fakePortal) loginCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

func (p *fakePortal) requestedDates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.dates...)
}
