// ThingView Core - Device State Reconciliation Service
//
// This is the main entry point for the ThingView Core application.
// ThingView reconciles device state from three unreliable sources
// (durable telemetry, cloud shadows, live bus traffic), keeps dashboards
// populated with synthetic readings when devices go dark, and exposes
// the merged view over a REST/WebSocket API with an assistant layer
// for natural-language queries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/thingview-core/migrations"

	"github.com/nerrad567/thingview-core/internal/api"
	"github.com/nerrad567/thingview-core/internal/assist"
	"github.com/nerrad567/thingview-core/internal/command"
	"github.com/nerrad567/thingview-core/internal/infrastructure/config"
	"github.com/nerrad567/thingview-core/internal/infrastructure/database"
	"github.com/nerrad567/thingview-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/thingview-core/internal/infrastructure/logging"
	"github.com/nerrad567/thingview-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/thingview-core/internal/ingest"
	"github.com/nerrad567/thingview-core/internal/shadow"
	"github.com/nerrad567/thingview-core/internal/state"
	"github.com/nerrad567/thingview-core/internal/telemetry"
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

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ThingView Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Durable telemetry store
	repo := telemetry.NewRepository(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Live ingestion: bus traffic feeds the cache, alert ring, and
	// durable store.
	cache := ingest.NewCache()
	alerts := ingest.NewAlertRing()
	pipeline := ingest.NewPipeline(mqttClient, cache, repo, alerts, byte(cfg.MQTT.QoS), log)
	if startErr := pipeline.Start(ctx); startErr != nil {
		return fmt.Errorf("starting ingest pipeline: %w", startErr)
	}
	log.Info("ingest pipeline started")

	// Shadow store client (optional)
	var shadowStore state.ShadowStore
	if cfg.Shadow.Enabled {
		shadowClient, shadowErr := shadow.New(cfg.Shadow.BaseURL, time.Duration(cfg.Shadow.Timeout)*time.Second)
		if shadowErr != nil {
			return fmt.Errorf("creating shadow client: %w", shadowErr)
		}
		shadowStore = shadowClient
		log.Info("shadow store enabled", "url", cfg.Shadow.BaseURL)
	} else {
		log.Info("shadow store disabled")
	}

	// Connect to InfluxDB (optional) and mirror observed telemetry
	var influxClient *influxdb.Client
	var mirror *telemetry.Mirror
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		mirror = telemetry.NewMirror(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Reconciliation engine
	engine := state.NewEngine(repo, shadowStore, cache, state.Options{
		PollInterval:        cfg.GetPollInterval(),
		Staleness:           cfg.GetStalenessThreshold(),
		SyntheticAfter:      cfg.GetSyntheticAfter(),
		DegradedThreshold:   cfg.Reconcile.DegradedThreshold,
		DegradedMaxInterval: time.Duration(cfg.Reconcile.DegradedMaxInterval) * time.Second,
		SourceTimeout:       time.Duration(cfg.Reconcile.SourceTimeout) * time.Second,
		Synthetic:           cfg.Reconcile.Synthetic,
	}, log)

	// Command dispatch over the bus with optimistic overlays
	dispatcher := command.NewDispatcher(command.NewBusChannel(mqttClient, byte(cfg.MQTT.QoS)), engine, log)

	// Assistant routing: gateway, local patterns, then raw model
	var gateway assist.Gateway
	if cfg.Gateway.URL != "" {
		gatewayClient, gwErr := assist.NewGatewayClient(cfg.Gateway.URL, cfg.Gateway.BearerToken, time.Duration(cfg.Gateway.Timeout)*time.Second)
		if gwErr != nil {
			return fmt.Errorf("creating gateway client: %w", gwErr)
		}
		gateway = gatewayClient
		log.Info("reasoning gateway enabled", "url", cfg.Gateway.URL)
	}
	var model assist.Model
	if cfg.Model.URL != "" {
		modelClient, mdlErr := assist.NewModelClient(cfg.Model.URL, cfg.Model.APIKey, cfg.Model.ModelID, cfg.Model.MaxTokens, time.Duration(cfg.Model.Timeout)*time.Second)
		if mdlErr != nil {
			return fmt.Errorf("creating model client: %w", mdlErr)
		}
		model = modelClient
		log.Info("model endpoint enabled", "url", cfg.Model.URL, "model", cfg.Model.ModelID)
	}
	assistRouter := assist.NewRouter(gateway, model, engine, dispatcher, repo, log)

	// API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Engine:     engine,
		Dispatcher: dispatcher,
		Assist:     assistRouter,
		Alerts:     alerts,
		History:    repo,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Fan published snapshots out to WebSocket clients and the metrics
	// mirror. Listeners must be registered before the engine starts.
	hub := server.Hub()
	engine.OnUpdate(func(s *state.DeviceState) {
		hub.Broadcast(api.ChannelDeviceState, s)
		if mirror != nil {
			mirror.Record(s)
		}
	})

	engine.Start(ctx, cfg.Devices.Tracked)
	defer func() {
		log.Info("stopping reconciliation engine")
		engine.Stop()
	}()

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", len(cfg.Devices.Tracked),
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Reconciliation engine
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("ThingView Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses THINGVIEW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("THINGVIEW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
