package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/blockgrid/internal/config"
	"github.com/specialistvlad/blockgrid/internal/scheduler"
)

// Mode selects what the app does.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeWorker Mode = "worker"
)

// Config holds all the necessary configuration for an App instance to run.
// Zero values defer to the scheduler section of the task files, then to the
// built-in defaults.
type Config struct {
	Mode Mode

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Run mode.
	ConfigPaths  []string
	Vars         map[string]string
	Requests     []*config.Request
	Listen       string
	LocalWorkers int
	Journal      string

	// Worker mode.
	Connect            string
	WorkerID           string
	Tasks              []string
	InsecureSkipVerify bool

	// Both modes.
	HeartbeatInterval time.Duration
}

// NewConfig validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Mode {
	case ModeRun:
		if len(cfg.ConfigPaths) == 0 {
			return nil, errors.New("at least one task file or directory is required")
		}
	case ModeWorker:
		if cfg.Connect == "" {
			return nil, errors.New("worker mode requires the scheduler URL to connect to")
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.LocalWorkers < 0 {
		return nil, errors.New("local workers cannot be negative")
	}
	return &cfg, nil
}

// settings is the effective scheduler configuration of a run.
type settings struct {
	listen            string
	journal           string
	localWorkers      int
	heartbeatInterval time.Duration
	core              scheduler.Config
}

// resolveSettings merges command line values over the file's scheduler
// section.
func resolveSettings(cfg *Config, file *config.Scheduler) settings {
	s := settings{}
	if file != nil {
		s.listen = file.Listen
		s.journal = file.Journal
		s.localWorkers = file.LocalWorkers
		s.heartbeatInterval = file.HeartbeatInterval
		s.core = scheduler.Config{
			HeartbeatTimeout: file.HeartbeatTimeout,
			StatusInterval:   file.StatusInterval,
			ETAWindow:        file.ETAWindow,
			DrainTimeout:     file.DrainTimeout,
			DisconnectLimit:  file.DisconnectLimit,
			CheckConcurrency: file.CheckConcurrency,
		}
	}
	if cfg.Listen != "" {
		s.listen = cfg.Listen
	}
	if cfg.Journal != "" {
		s.journal = cfg.Journal
	}
	if cfg.LocalWorkers > 0 {
		s.localWorkers = cfg.LocalWorkers
	}
	if cfg.HeartbeatInterval > 0 {
		s.heartbeatInterval = cfg.HeartbeatInterval
	}
	return s
}
