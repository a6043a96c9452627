// SISEOA - Smart Integrated System for Energy Optimisation and Automation
//
// This is the main entry point for the SISEOA core. The core owns the
// building topology, the per-building automation state machines, device
// actuation, energy accrual, pattern mining, rule execution, and the
// connectivity guard. Device controllers and remote clients talk to it
// over MQTT; a small HTTP API serves operations views.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/yasrizalhakim/SISEOA/migrations"

	"github.com/yasrizalhakim/SISEOA/internal/actuator"
	"github.com/yasrizalhakim/SISEOA/internal/api"
	"github.com/yasrizalhakim/SISEOA/internal/automation"
	"github.com/yasrizalhakim/SISEOA/internal/energy"
	"github.com/yasrizalhakim/SISEOA/internal/event"
	"github.com/yasrizalhakim/SISEOA/internal/guard"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/config"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/database"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/influxdb"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/logging"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/mqtt"
	"github.com/yasrizalhakim/SISEOA/internal/listener"
	"github.com/yasrizalhakim/SISEOA/internal/pattern"
	"github.com/yasrizalhakim/SISEOA/internal/rules"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SISEOA core",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the document store
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	topologyRepo := topology.NewSQLiteRepository(db.DB)
	eventRepo := event.NewSQLiteRepository(db.DB, cfg.Automation.EventHistoryLimit)
	rulesRepo := rules.NewSQLiteRepository(db.DB)
	usageRepo := energy.NewSQLiteUsageRepository(db.DB)

	// Topology directory. Startup aborts if the initial load fails; the
	// core cannot resolve devices to buildings without it.
	directory := topology.NewDirectory(topologyRepo)
	directory.SetLogger(log)
	if loadErr := directory.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading topology: %w", loadErr)
	}
	log.Info("topology loaded", "devices", directory.DeviceCount())

	// Connect to the MQTT broker, the shared real-time store
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
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional telemetry sink)
	var influxClient *influxdb.Client
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	topics := mqtt.Topics{}

	// Energy accrual
	var energyTelemetry energy.Telemetry
	if influxClient != nil {
		energyTelemetry = influxClient
	}
	accruer := energy.NewAccruer(directory, usageRepo, energyTelemetry,
		cfg.Automation.AccrualPoll, cfg.Automation.AccrualFlush)
	accruer.SetLogger(log)

	// Building state machines
	machine := automation.NewStateMachine(directory,
		&lockPublisher{client: mqttClient, topics: topics},
		automation.Policy{
			HighDrawTypes: cfg.Automation.HighDrawTypes,
			NightOffTypes: cfg.Automation.NightOffTypes,
		})
	machine.SetLogger(log)

	// Device actuation
	var switchTelemetry actuator.Telemetry
	if influxClient != nil {
		switchTelemetry = influxClient
	}
	act := actuator.New(directory, machine,
		&channelPublisher{client: mqttClient, topics: topics},
		accruer, eventRepo, switchTelemetry)
	act.SetLogger(log)

	// Close the actuator/state-machine cycle and hook hot-plug events
	machine.SetSwitcher(act)
	directory.SetMembershipSink(machine)

	// Re-apply persisted building modes
	machine.Resync(ctx)
	log.Info("automation state restored")

	// Pattern mining
	miner := pattern.NewMiner(eventRepo, rulesRepo, directory,
		time.Duration(cfg.Automation.MiningLookbackDays)*24*time.Hour,
		cfg.Automation.SessionGap, cfg.Automation.MinQualifyingEvents)
	miner.SetLogger(log)
	scheduler := pattern.NewScheduler(miner, cfg.MiningWeekday(), cfg.Automation.MiningHour)
	scheduler.SetLogger(log)

	// Rule execution
	executor := rules.NewExecutor(rulesRepo, machine, directory, act, cfg.Automation.ExecutorTick)
	executor.SetLogger(log)

	// Connectivity guard
	watchdog := guard.New(db.DB,
		&realtimeProbe{client: mqttClient, topics: topics},
		machine, accruer, directory, act,
		cfg.Automation.ProbeInterval, cfg.Automation.ProbeTimeout)
	watchdog.SetLogger(log)
	executor.SetHealth(watchdog)

	// A restored broker session is not assumed gap-free: resync instead
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, requesting resync")
		go watchdog.RequestResync(ctx)
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Inbound change streams
	inbound := listener.New(mqttClient, act, machine, directory,
		watchdog, scheduler, eventRepo)
	inbound.SetLogger(log)
	if startErr := inbound.Start(ctx); startErr != nil {
		return fmt.Errorf("starting listener: %w", startErr)
	}

	// Background workers
	go accruer.Run(ctx)
	go executor.Run(ctx)
	go scheduler.Run(ctx)
	go watchdog.Run(ctx)

	// Operations HTTP API
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Directory: directory,
			Machine:   machine,
			Actuator:  act,
			Rules:     rulesRepo,
			Usage:     usageRepo,
			Health:    watchdog,
			Miner:     scheduler,
			History:   eventRepo,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// The MQTT client announces the core online on connect; push the
	// current device state behind it so retained statuses are fresh.
	act.ResyncAll()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Flush partial energy slices before the defer chain tears down the
	// stores
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	accruer.FlushAll(flushCtx)
	flushCancel()

	log.Info("SISEOA core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SISEOA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SISEOA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// channelPublisher adapts the MQTT client to the actuator's Channel
// interface: command topics are fire-and-forget, status topics are
// retained so late readers see the last confirmed state.
type channelPublisher struct {
	client *mqtt.Client
	topics mqtt.Topics
}

func (p *channelPublisher) PublishChannel(deviceID, action string) error {
	return p.client.PublishString(p.topics.ChannelSet(deviceID), action, 1, false)
}

func (p *channelPublisher) PublishStatus(deviceID, status string) error {
	return p.client.PublishString(p.topics.DeviceStatus(deviceID), status, 1, true)
}

// lockPublisher adapts the MQTT client to the state machine's
// LockPublisher interface. Lock flags are retained; "1" marks a device
// held OFF by the active building mode.
type lockPublisher struct {
	client *mqtt.Client
	topics mqtt.Topics
}

func (p *lockPublisher) PublishLocked(deviceID string, locked bool) error {
	payload := "0"
	if locked {
		payload = "1"
	}
	return p.client.PublishString(p.topics.DeviceLocked(deviceID), payload, 1, true)
}

// realtimeProbe adapts the MQTT client to the guard's RealtimeStore
// interface. A disconnected client fails fast; otherwise the probe is a
// retained publish the broker must accept.
type realtimeProbe struct {
	client *mqtt.Client
	topics mqtt.Topics
}

func (p *realtimeProbe) Probe(ctx context.Context) error {
	if err := p.client.HealthCheck(ctx); err != nil {
		return err
	}
	return p.client.PublishString(p.topics.SystemProbe(), "alive", 0, true)
}
