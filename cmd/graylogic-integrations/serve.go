package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-integrations/internal/api"
	"github.com/nerrad567/gray-logic-integrations/internal/discovery"
	"github.com/nerrad567/gray-logic-integrations/internal/entity"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations/lyric"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations/ovoenergy"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations/systembridge"
	"github.com/nerrad567/gray-logic-integrations/internal/platform"
	"github.com/nerrad567/gray-logic-integrations/migrations"
)

const (
	// vendorHTTPTimeout is the outer bound on any vendor request; the
	// coordinators apply their own shorter poll timeouts.
	vendorHTTPTimeout = 60 * time.Second

	shutdownTimeout = 15 * time.Second
)

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Integrations",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Best effort on exit
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"output", cfg.Logging.Output,
	)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Config entries
	store := entry.NewStore(entry.NewSQLiteRepository(db.DB))
	store.SetLogger(log)
	if loadErr := store.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading config entries: %w", loadErr)
	}
	log.Info("config entries loaded", "entries", len(store.List()))

	registry := entity.NewRegistry()
	registry.SetLogger(log)

	httpClient := &http.Client{Timeout: vendorHTTPTimeout}
	host := platform.NewHost(platform.HostConfig{
		Store:       store,
		Registry:    registry,
		HTTPClient:  httpClient,
		ExternalURL: cfg.API.ExternalURL,
	})
	host.SetLogger(log)

	flows := flow.NewManager(store,
		flow.NewStateSigner(cfg.Security.JWT.Secret, cfg.Flows.ExternalStepTimeout),
		flow.Config{
			ExternalStepTimeout: cfg.Flows.ExternalStepTimeout,
			IdleTimeout:         cfg.Flows.IdleTimeout,
			ReapInterval:        cfg.Flows.ReapInterval,
		})
	flows.SetLogger(log)

	for _, integration := range enabledIntegrations(cfg, httpClient) {
		host.Register(integration)
		flows.Register(integration.Domain(), integration.NewFlow)
		log.Info("integration enabled", "domain", integration.Domain())
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		publisher := platform.NewMQTTPublisher(mqttClient)
		host.AddPublisher(publisher)
		unsubscribe := store.Subscribe(func(c entry.Change) {
			if pubErr := publisher.EntryChanged(c); pubErr != nil {
				log.Warn("publishing entry state failed", "entry_id", c.Entry.ID, "error", pubErr)
			}
		})
		defer unsubscribe()
		if subErr := publisher.SubscribeCommands(ctx, host); subErr != nil {
			return fmt.Errorf("subscribing to entity commands: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		host.AddPublisher(platform.NewInfluxPublisher(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Flows:    flows,
		Entries:  store,
		Host:     host,
		Entities: registry,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	host.AddPublisher(srv.Hub())

	// Stored entries are set up in the background; the API comes up while
	// slow or unreachable vendors are still being contacted.
	host.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("unloading config entries")
		host.Shutdown(shutdownCtx)
	}()

	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, srv); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return flows.Run(gctx)
	})
	if d := newDiscovery(cfg, flows, log); d != nil {
		g.Go(func() error {
			return d.Run(gctx)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := g.Wait(); err != nil {
		log.Error("background task failed", "error", err)
	}

	// Deferred calls run in reverse order: API server, entries,
	// InfluxDB, MQTT, database, logger.
	log.Info("Gray Logic Integrations stopped")
	return nil
}

// openDatabase opens the SQLite database holding the config entries.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.FromConfig(cfg.Database, migrations.FS))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", db.Path())
	return db, nil
}

// connectMQTT connects to the broker and hooks the client up to log.
func connectMQTT(ctx context.Context, cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// enabledIntegrations returns the integrations switched on in cfg.
func enabledIntegrations(cfg *config.Config, httpClient *http.Client) []platform.Integration {
	var integrations []platform.Integration
	if c := cfg.Integrations.Lyric; c.Enabled {
		integrations = append(integrations, lyric.New(c, cfg.API.ExternalURL, httpClient))
	}
	if c := cfg.Integrations.SystemBridge; c.Enabled {
		integrations = append(integrations, systembridge.New(c, httpClient))
	}
	if c := cfg.Integrations.OVOEnergy; c.Enabled {
		integrations = append(integrations, ovoenergy.New(c, httpClient))
	}
	return integrations
}

// newDiscovery returns the zeroconf scanner, or nil when discovery is off
// or no enabled integration is discoverable.
func newDiscovery(cfg *config.Config, flows *flow.Manager, log *logging.Logger) *discovery.Discovery {
	if !cfg.Discovery.Enabled {
		log.Info("zeroconf discovery disabled")
		return nil
	}

	var watches []discovery.Watch
	if cfg.Integrations.SystemBridge.Enabled {
		watches = append(watches, discovery.Watch{Domain: systembridge.Domain, Service: systembridge.ZeroconfType})
	}
	if len(watches) == 0 {
		return nil
	}

	resolver, err := discovery.NewResolver()
	if err != nil {
		log.Warn("zeroconf discovery unavailable", "error", err)
		return nil
	}

	d := discovery.New(resolver, flows, discovery.Config{
		Interval: cfg.Discovery.Interval,
		Timeout:  cfg.Discovery.Timeout,
	}, watches...)
	d.SetLogger(log)
	log.Info("zeroconf discovery started", "watches", len(watches))
	return d
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//   - srv: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, srv *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
