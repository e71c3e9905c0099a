package systembridge

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    string
		wantErr bool
	}{
		{name: "hostname", host: "test-bridge", port: "9170"},
		{name: "ipv4", host: "192.168.1.20", port: "9170"},
		{name: "ipv6", host: "fe80::1", port: "9170"},
		{name: "empty host", host: "", port: "9170", wantErr: true},
		{name: "scheme", host: "http://test-bridge", port: "9170", wantErr: true},
		{name: "path", host: "test-bridge/os", port: "9170", wantErr: true},
		{name: "userinfo", host: "user@test-bridge", port: "9170", wantErr: true},
		{name: "space", host: "test bridge", port: "9170", wantErr: true},
		{name: "port not numeric", host: "test-bridge", port: "http", wantErr: true},
		{name: "port out of range", host: "test-bridge", port: "70000", wantErr: true},
		{name: "port zero", host: "test-bridge", port: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHost(tt.host, tt.port)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHost(%q, %q) error = %v, wantErr %v", tt.host, tt.port, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidHost) {
				t.Errorf("error = %v, want ErrInvalidHost", err)
			}
		})
	}
}

func TestClient_Snapshot(t *testing.T) {
	b := newFakeBridge(t)
	c := b.client(t, testAPIKey)

	s, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if s.OS.Hostname != testHostname {
		t.Errorf("OS.Hostname = %q, want %q", s.OS.Hostname, testHostname)
	}
	if mac, ok := s.Network.DefaultMAC(); !ok || mac != testMAC {
		t.Errorf("DefaultMAC() = %q, %v; want %q", mac, ok, testMAC)
	}
	if s.CPU.CurrentSpeed.Avg == nil || *s.CPU.CurrentSpeed.Avg != 2.456 {
		t.Errorf("CPU.CurrentSpeed.Avg = %v, want 2.456", s.CPU.CurrentSpeed.Avg)
	}
	if !s.Battery.HasBattery {
		t.Error("Battery.HasBattery = false, want true")
	}
	if len(s.Filesystem.FSSize) != 2 {
		t.Errorf("len(FSSize) = %d, want 2", len(s.Filesystem.FSSize))
	}
	if s.Processes.All == nil || *s.Processes.All != 312 {
		t.Errorf("Processes.All = %v, want 312", s.Processes.All)
	}
	if s.System.System.Manufacturer != "Dell Inc." {
		t.Errorf("System.Manufacturer = %q", s.System.System.Manufacturer)
	}
}

func TestClient_Errors(t *testing.T) {
	t.Run("wrong key", func(t *testing.T) {
		b := newFakeBridge(t)
		_, err := b.client(t, "wrong").GetOS(context.Background())
		if !errors.Is(err, ErrAuthentication) {
			t.Errorf("GetOS() error = %v, want ErrAuthentication", err)
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		b := newFakeBridge(t)
		b.setStatus(http.StatusForbidden)
		_, err := b.client(t, testAPIKey).GetOS(context.Background())
		if !errors.Is(err, ErrAuthentication) {
			t.Errorf("GetOS() error = %v, want ErrAuthentication", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		b := newFakeBridge(t)
		b.setStatus(http.StatusInternalServerError)
		_, err := b.client(t, testAPIKey).GetOS(context.Background())
		if !errors.Is(err, ErrResponse) {
			t.Errorf("GetOS() error = %v, want ErrResponse", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		b := newFakeBridge(t)
		b.set("/os", `{"hostname": `)
		_, err := b.client(t, testAPIKey).GetOS(context.Background())
		if !errors.Is(err, ErrResponse) {
			t.Errorf("GetOS() error = %v, want ErrResponse", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		b := newFakeBridge(t)
		c := b.client(t, testAPIKey)
		b.srv.Close()
		_, err := c.GetOS(context.Background())
		if !errors.Is(err, ErrConnection) {
			t.Errorf("GetOS() error = %v, want ErrConnection", err)
		}
	})

	t.Run("snapshot fails as a whole", func(t *testing.T) {
		b := newFakeBridge(t)
		b.set("/battery", `not json`)
		s, err := b.client(t, testAPIKey).Snapshot(context.Background())
		if err == nil || s != nil {
			t.Errorf("Snapshot() = %v, %v; want nil and an error", s, err)
		}
	})
}

func TestClient_Actions(t *testing.T) {
	ctx := context.Background()
	b := newFakeBridge(t)
	c := b.client(t, testAPIKey)

	if err := c.Open(ctx, OpenRequest{URL: "https://example.com"}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	req, ok := b.lastPost()
	if !ok || req.path != "/open" || req.body["url"] != "https://example.com" {
		t.Errorf("last POST = %+v, want /open with url", req)
	}
	if _, hasPath := req.body["path"]; hasPath {
		t.Error("/open body carries an empty path")
	}

	if err := c.Command(ctx, CommandRequest{Command: "echo", Arguments: []string{"hi"}}); err != nil {
		t.Fatalf("Command() error = %v", err)
	}
	req, _ = b.lastPost()
	if req.path != "/command" || req.body["command"] != "echo" {
		t.Errorf("last POST = %+v, want /command echo", req)
	}

	invalid := []struct {
		name string
		fn   func() error
	}{
		{"open neither", func() error { return c.Open(ctx, OpenRequest{}) }},
		{"open both", func() error { return c.Open(ctx, OpenRequest{Path: "/tmp", URL: "https://example.com"}) }},
		{"command empty", func() error { return c.Command(ctx, CommandRequest{}) }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}
