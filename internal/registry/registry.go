package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/task"
)

// ErrUnknownProcessor is returned for names nothing registered.
var ErrUnknownProcessor = errors.New("unknown processor")

// ErrUnknownChecker is returned for checker names nothing registered.
var ErrUnknownChecker = errors.New("unknown checker")

// Module is the interface that all processor modules implement.
type Module interface {
	Register(r *Registry)
}

// Registry holds the processors and checkers of one application instance.
type Registry struct {
	processors map[string]task.Processor
	checkers   map[string]task.Checker
}

// New creates a registry and registers the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{
		processors: make(map[string]task.Processor),
		checkers:   make(map[string]task.Checker),
	}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterProcessor registers p under name. Registering a name twice panics.
func (r *Registry) RegisterProcessor(name string, p task.Processor) {
	if _, exists := r.processors[name]; exists {
		panic(fmt.Sprintf("processor with name '%s' already registered", name))
	}
	slog.Debug("Registering processor.", "name", name)
	r.processors[name] = p
}

// RegisterChecker registers c under name. Registering a name twice panics.
func (r *Registry) RegisterChecker(name string, c task.Checker) {
	if _, exists := r.checkers[name]; exists {
		panic(fmt.Sprintf("checker with name '%s' already registered", name))
	}
	slog.Debug("Registering checker.", "name", name)
	r.checkers[name] = c
}

// Processor resolves a processor by name.
func (r *Registry) Processor(name string) (task.Processor, bool) {
	p, ok := r.processors[name]
	return p, ok
}

// Checker resolves a checker by name.
func (r *Registry) Checker(name string) (task.Checker, bool) {
	c, ok := r.checkers[name]
	return c, ok
}

// Names returns the sorted processor names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every task names a registered processor.
func (r *Registry) Validate(ctx context.Context, tasks []*task.Task) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, t := range tasks {
		if _, ok := r.processors[t.Processor]; !ok {
			errs = append(errs, fmt.Errorf("task %q: %w %q (registered: %v)", t.ID, ErrUnknownProcessor, t.Processor, r.Names()))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Debug("Registry validated.", "tasks", len(tasks), "processors", len(r.processors))
	return nil
}
