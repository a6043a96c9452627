package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yasrizalhakim/SISEOA/internal/automation"
	"github.com/yasrizalhakim/SISEOA/internal/energy"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/config"
	"github.com/yasrizalhakim/SISEOA/internal/infrastructure/logging"
	"github.com/yasrizalhakim/SISEOA/internal/rules"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// Topology is the read surface over the device directory.
type Topology interface {
	ListDevices() []topology.Device
	GetDevice(id string) (*topology.Device, error)
	ListBuildings() []topology.Building
	ResolveBuilding(deviceID string) (string, error)
	Load(ctx context.Context) error
}

// Automation is the building state machine surface.
type Automation interface {
	Apply(ctx context.Context, buildingID string, mode automation.Mode) error
	ModeOf(buildingID string) automation.Mode
	LockedDevices(buildingID string) []string
	IsLocked(deviceID string) bool
}

// Actuation is the device switching surface.
type Actuation interface {
	Switch(ctx context.Context, deviceID, action, source string) error
	Status(deviceID string) string
	IsOnline(deviceID string) bool
}

// RuleStore is the stored-rule surface.
type RuleStore interface {
	List(ctx context.Context) ([]*rules.Rule, error)
	Get(ctx context.Context, deviceID string) (*rules.Rule, error)
	SetEnabled(ctx context.Context, deviceID string, enabled bool) error
}

// UsageStore is the daily energy record surface.
type UsageStore interface {
	GetDay(ctx context.Context, deviceID, day string) (float64, error)
	ListDays(ctx context.Context, deviceID string, limit int) ([]energy.DailyUsage, error)
}

// Health reports store connectivity. The guard implements this.
type Health interface {
	Online() bool
}

// Miner requests an on-demand mining run. The mining scheduler
// implements this.
type Miner interface {
	Trigger()
}

// History clears a device's event log.
type History interface {
	DeleteForDevice(ctx context.Context, deviceID string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Directory Topology
	Machine   Automation
	Actuator  Actuation
	Rules     RuleStore
	Usage     UsageStore
	Health    Health
	Miner     Miner
	History   History
	Version   string
}

// Server is the operations HTTP server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	directory Topology
	machine   Automation
	actuator  Actuation
	rules     RuleStore
	usage     UsageStore
	health    Health
	miner     Miner
	history   History
	version   string
	server    *http.Server
}

// New creates an API server. The server is not started until Start is
// called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("topology directory is required")
	}
	if deps.Machine == nil || deps.Actuator == nil {
		return nil, fmt.Errorf("automation and actuation are required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		directory: deps.Directory,
		machine:   deps.Machine,
		actuator:  deps.Actuator,
		rules:     deps.Rules,
		usage:     deps.Usage,
		health:    deps.Health,
		miner:     deps.Miner,
		history:   deps.History,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("api listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api serve failed", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to the shutdown timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("api shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}
