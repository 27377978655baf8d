// Govee Bridge - BLE sensor fleet tracker
//
// This is the main entry point for the Govee bridge. It discovers Govee
// thermo-hygrometers over BlueZ, keeps one persistent accessory per sensor,
// and republishes readings to MQTT, InfluxDB, local history and a status API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/govee-bridge/internal/accessory"
	"github.com/nerrad567/govee-bridge/internal/api"
	"github.com/nerrad567/govee-bridge/internal/bluetooth/bluez"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/database"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/govee-bridge/internal/platform"
	"github.com/nerrad567/govee-bridge/internal/sensor"
	"github.com/nerrad567/govee-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Govee bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Verbose radio logging is only visible at debug level.
	if cfg.Platform.Debug {
		cfg.Logging.Level = "debug"
	}
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	registry := accessory.NewRegistry(accessory.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	history := sensor.NewSQLiteHistoryRepository(db.DB)

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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
	} else {
		log.Info("MQTT disabled")
	}

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
	} else {
		log.Info("InfluxDB disabled")
	}

	checks := healthChecks(db, mqttClient, influxClient)
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	hub := api.NewHub(cfg.WebSocket, log)
	telemetry := platform.NewTelemetry(telemetryOptions(mqttClient, influxClient, history, hub))
	telemetry.SetLogger(log)

	radio := bluez.New(cfg.Bluetooth.Adapter, nil)
	radio.SetLogger(log)
	if err := radio.Open(ctx); err != nil {
		return fmt.Errorf("opening bluetooth adapter: %w", err)
	}
	defer func() {
		if closeErr := radio.Close(); closeErr != nil {
			log.Error("error closing bluetooth adapter", "error", closeErr)
		}
	}()
	log.Info("bluetooth adapter opened", "adapter", cfg.Bluetooth.Adapter)

	plat := platform.New(platform.ConfigFrom(cfg), registry, radio, telemetry)
	plat.SetLogger(log)

	var srv *api.Server
	if cfg.API.Enabled {
		srv, err = api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log,
			Source:    plat,
			History:   history,
			Checks:    checks,
			Telemetry: telemetry,
			Hub:       hub,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
	} else {
		log.Info("status API disabled")
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return telemetry.Run(gctx)
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return plat.Run(gctx)
	})

	if srv != nil {
		if err := srv.Start(gctx); err != nil {
			stop()
			_ = g.Wait() //nolint:errcheck // startup error takes precedence
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("platform stopped: %w", err)
	}

	log.Info("Govee bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GOVEE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GOVEE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthChecks collects the enabled infrastructure connections by name.
// Nil clients are left out.
func healthChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) map[string]api.HealthChecker {
	checks := map[string]api.HealthChecker{}
	if db != nil {
		checks["database"] = db
	}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	return checks
}

// healthCheck verifies every connection in checks.
// It returns the first failure in a stable order.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		checker, ok := checks[name]
		if !ok {
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// telemetryOptions wires the enabled sinks. Disabled clients stay nil
// interfaces so Telemetry skips them.
func telemetryOptions(mqttClient *mqtt.Client, influxClient *influxdb.Client, history sensor.HistoryRepository, hub platform.Broadcaster) platform.TelemetryOptions {
	opts := platform.TelemetryOptions{
		History:     history,
		Broadcaster: hub,
	}
	if mqttClient != nil {
		opts.MQTT = mqttClient
	}
	if influxClient != nil {
		opts.Influx = influxClient
	}
	return opts
}
