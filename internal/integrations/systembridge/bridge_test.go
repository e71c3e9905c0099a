package systembridge

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

const (
	testAPIKey   = "abc-123-def-456-ghi"
	testMAC      = "aa:bb:cc:dd:ee:ff"
	testHostname = "test-bridge"
)

var testFixtures = map[string]string{
	"/os": `{
		"platform": "linux", "distro": "Ubuntu", "release": "22.04", "codename": "jammy",
		"kernel": "5.15.0", "arch": "x64", "hostname": "test-bridge", "fqdn": "test-bridge.local",
		"build": "", "servicepack": "", "uefi": true
	}`,
	"/network": `{
		"gatewayDefault": "192.168.1.1",
		"interfaceDefault": "wlp2s0",
		"interfaces": {
			"wlp2s0": {"iface": "wlp2s0", "ifaceName": "wlp2s0", "ip4": "192.168.1.20", "mac": "aa:bb:cc:dd:ee:ff"},
			"lo": {"iface": "lo", "ifaceName": "lo", "ip4": "127.0.0.1", "mac": "00:00:00:00:00:00"}
		}
	}`,
	"/cpu": `{
		"cpu": {"manufacturer": "Intel", "brand": "Core i7-8550U", "speed": 1.8, "cores": 8},
		"currentSpeed": {"min": 0.8, "max": 3.9, "avg": 2.456},
		"temperature": {"main": 54.27, "max": 61}
	}`,
	"/battery": `{"hasBattery": true, "isCharging": false, "percent": 87, "timeRemaining": 192}`,
	"/filesystem": `{"fsSize": [
		{"fs": "/dev/nvme0n1p2", "type": "ext4", "size": 500000000000, "used": 200000000000, "available": 300000000000, "use": 40.004, "mount": "/"},
		{"fs": "/dev/sda1", "type": "ext4", "size": 1000000000000, "used": 100000000000, "available": 900000000000, "use": 10, "mount": "/mnt/data"}
	]}`,
	"/processes": `{
		"load": {"avgLoad": 0.75, "currentLoad": 12.3456, "currentLoadUser": 8.1, "currentLoadSystem": 4.2, "currentLoadIdle": 87.7},
		"all": 312, "running": 2, "blocked": 0, "sleeping": 310
	}`,
	"/system": `{"system": {"manufacturer": "Dell Inc.", "model": "XPS 13 9370", "version": "1.0", "serial": "ABC", "uuid": "u-1"}}`,
}

type bridgeRequest struct {
	method string
	path   string
	body   map[string]any
}

// fakeBridge serves the fixtures behind the api-key header.
type fakeBridge struct {
	srv *httptest.Server

	mu        sync.Mutex
	apiKey    string
	responses map[string]string
	status    int
	requests  []bridgeRequest
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()

	b := &fakeBridge{apiKey: testAPIKey, responses: make(map[string]string)}
	for path, body := range testFixtures {
		b.responses[path] = body
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBridge) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req := bridgeRequest{method: r.Method, path: r.URL.Path}
	if r.Method == http.MethodPost {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &req.body)
	}
	b.requests = append(b.requests, req)

	if r.Header.Get(apiKeyHeader) != b.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if b.status != 0 {
		w.WriteHeader(b.status)
		return
	}
	if r.Method == http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"message": "ok"}`)
		return
	}
	body, ok := b.responses[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (b *fakeBridge) set(path, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[path] = body
}

func (b *fakeBridge) setStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

func (b *fakeBridge) lastPost() (bridgeRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].method == http.MethodPost {
			return b.requests[i], true
		}
	}
	return bridgeRequest{}, false
}

// hostPort returns the address the bridge listens on.
func (b *fakeBridge) hostPort(t *testing.T) (string, string) {
	t.Helper()

	u, err := url.Parse(b.srv.URL)
	if err != nil {
		t.Fatalf("parsing server url: %v", err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("splitting server host: %v", err)
	}
	return host, port
}

func (b *fakeBridge) client(t *testing.T, apiKey string) *Client {
	t.Helper()

	host, port := b.hostPort(t)
	c, err := NewClient(b.srv.Client(), host, port, apiKey)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}
