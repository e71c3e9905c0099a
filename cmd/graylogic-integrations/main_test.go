package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/api"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-integrations/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// writeConfig writes a minimal config with MQTT, InfluxDB and discovery
// off and returns its path and database path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	configPath := filepath.Join(dir, "config.yaml")
	content := `
site:
  id: test-site

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

discovery:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18090

security:
  jwt:
    secret: "` + testSecret + `"
    access_token_ttl: 30
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingSecret verifies run refuses to start without a JWT secret.
func TestRun_MissingSecret(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  id: test-site
database:
  path: "` + filepath.Join(t.TempDir(), "test.db") + `"
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRAYLOGIC_JWT_SECRET", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil || !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Fatalf("run() error = %v, want jwt secret validation error", err)
	}
}

// TestRun_StartupAndShutdown starts the host with every optional
// dependency switched off and stops it by cancelling the context.
func TestRun_StartupAndShutdown(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := run(ctx, configPath); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"default", "", "", defaultConfigPath},
		{"env", "", "/etc/graylogic/env.yaml", "/etc/graylogic/env.yaml"},
		{"flag wins", "/etc/graylogic/flag.yaml", "/etc/graylogic/env.yaml", "/etc/graylogic/flag.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRAYLOGIC_CONFIG", tt.env)
			opts := &options{configPath: tt.flag}
			if got := opts.resolveConfigPath(); got != tt.want {
				t.Errorf("resolveConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenCommand(t *testing.T) {
	configPath, _ := writeConfig(t)

	out, err := execute(t, "token", "--config", configPath, "--subject", "installer")
	if err != nil {
		t.Fatalf("token command error: %v", err)
	}

	claims, err := api.ParseToken(strings.TrimSpace(out), testSecret)
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.Subject != "installer" {
		t.Errorf("subject = %q, want installer", claims.Subject)
	}
	if d := time.Until(claims.ExpiresAt.Time); d < 29*time.Minute || d > 30*time.Minute {
		t.Errorf("token expires in %v, want the configured 30m", d)
	}
}

func TestMigrateCommands(t *testing.T) {
	configPath, _ := writeConfig(t)

	out, err := execute(t, "migrate", "status", "--config", configPath)
	if err != nil {
		t.Fatalf("migrate status error: %v", err)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("status before migrating = %q, want pending migrations", out)
	}

	if _, err := execute(t, "migrate", "up", "--config", configPath); err != nil {
		t.Fatalf("migrate up error: %v", err)
	}
	out, err = execute(t, "migrate", "status", "--config", configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "pending") || !strings.Contains(out, "applied") {
		t.Errorf("status after migrating = %q", out)
	}

	if _, err := execute(t, "migrate", "down", "--config", configPath); err != nil {
		t.Fatalf("migrate down error: %v", err)
	}
	out, err = execute(t, "migrate", "status", "--config", configPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("status after rollback = %q, want pending", out)
	}
}

func TestEntriesListCommand(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: dbPath, BusyTimeout: 5, Migrations: migrations.FS})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	repo := entry.NewSQLiteRepository(db.DB)
	for _, e := range []*entry.Entry{
		{ID: "e1", Domain: "system_bridge", Title: "workstation", UniqueID: "aa:bb", Source: "zeroconf", Data: map[string]string{"api_key": "hunter2"}, State: entry.StateNotLoaded},
		{ID: "e2", Domain: "ovoenergy", Title: "OVO", UniqueID: "123", Source: "user", Data: map[string]string{"password": "s3cret"}, State: entry.StateNotLoaded},
	} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	out, err := execute(t, "entries", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("entries list error: %v", err)
	}
	for _, want := range []string{"workstation", "OVO", "aa:bb", "zeroconf"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, secret := range []string{"hunter2", "s3cret"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks entry data %q", secret)
		}
	}

	out, err = execute(t, "entries", "list", "--domain", "ovoenergy", "--config", configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "workstation") || !strings.Contains(out, "OVO") {
		t.Errorf("filtered output = %q", out)
	}
}
