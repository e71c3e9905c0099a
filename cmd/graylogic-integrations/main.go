// Gray Logic Integrations - vendor integration host
//
// This is the main entry point for the Gray Logic Integrations process.
// It runs the config flows, config entries, polling coordinators and
// entities of cloud and local vendor integrations:
//   - Honeywell Lyric thermostats (OAuth2 cloud)
//   - System Bridge host metrics (local, zeroconf discovered)
//   - OVO Energy usage (cloud portal)
//
// Entity states are published to MQTT, InfluxDB and WebSocket clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130) //nolint:mnd // shell convention for SIGINT
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the flags shared by every command.
type options struct {
	configPath string
}

// newRootCommand builds the command tree. Running the root command without
// a subcommand serves.
func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "graylogic-integrations",
		Short: "Gray Logic vendor integration host",
		Long: `graylogic-integrations runs config flows and polling integrations
(Lyric, System Bridge, OVO Energy) and publishes their entities to MQTT,
InfluxDB and the WebSocket API.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.resolveConfigPath())
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file path (env: GRAYLOGIC_CONFIG, default: "+defaultConfigPath+")")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newTokenCommand(opts),
		newEntriesCommand(opts),
	)
	return root
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the integration host until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.resolveConfigPath())
		},
	}
}

// resolveConfigPath returns the configuration file path.
// The --config flag wins, then GRAYLOGIC_CONFIG, then the default.
func (o *options) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return getConfigPath()
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
