package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/blockgrid/internal/config"
	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	// model is nil in worker mode.
	model *config.Model

	listening chan struct{}
	addr      string
}

// NewApp is the constructor for the main application. It configures an
// isolated logger, registers the modules (the built-in ones when none are
// given) and, in run mode, loads the task files.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	outW = &lockedWriter{w: outW}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "processors", reg.Names())

	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		listening: make(chan struct{}),
	}
	if cfg.Mode != ModeRun {
		return a, nil
	}

	model, err := config.Load(ctx, cfg.Vars, cfg.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	a.model = model
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded task files, or nil in worker mode.
func (a *App) Model() *config.Model {
	return a.model
}

// Addr waits until the scheduler's HTTP listener is bound and returns its
// address.
func (a *App) Addr(ctx context.Context) (string, error) {
	select {
	case <-a.listening:
		return a.addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
