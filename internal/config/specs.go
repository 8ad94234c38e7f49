package config

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/blockgrid/internal/task"
)

// Checkers resolves checker names. *registry.Registry satisfies it.
type Checkers interface {
	Checker(name string) (task.Checker, bool)
}

// BuildTasks turns every task definition into a task, resolving requires and
// checkers by name.
func (m *Model) BuildTasks(checkers Checkers) (map[string]*task.Task, error) {
	tasks := make(map[string]*task.Task, len(m.Tasks))
	var errs []error
	for _, def := range m.Tasks {
		t := &task.Task{
			ID:             def.ID,
			TotalRegion:    def.Total,
			ReadRegion:     def.Read,
			WriteRegion:    def.Write,
			Processor:      def.Processor,
			Arguments:      def.Arguments,
			Inputs:         def.Inputs,
			Outputs:        def.Outputs,
			Fit:            task.Fit(def.Fit),
			MaxRetries:     task.DefaultMaxRetries,
			VerifyAfterRun: def.VerifyAfterRun,
			NumWorkers:     def.NumWorkers,
		}
		if def.ReadWriteConflict != nil {
			t.ConflictFree = !*def.ReadWriteConflict
		}
		if def.MaxRetries != nil {
			t.MaxRetries = *def.MaxRetries
		}
		if def.Check != "" {
			c, ok := checkers.Checker(def.Check)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: task %q uses unknown checker %q", ErrInvalidConfig, def.ID, def.Check))
			}
			t.Check = c
		}
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", def.Source, err))
		}
		tasks[def.ID] = t
	}

	for _, def := range m.Tasks {
		t := tasks[def.ID]
		for _, id := range def.Requires {
			up, ok := tasks[id]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: task %q requires unknown task %q", ErrInvalidConfig, def.ID, id))
				continue
			}
			t.Requires = append(t.Requires, up)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Specs builds the distribution request. The requests of the files come
// first, then extra ones; with no request at all every task is requested in
// full. Upstream tasks named in requires are pulled in as needed.
func (m *Model) Specs(checkers Checkers, extra ...*Request) ([]task.Spec, error) {
	tasks, err := m.BuildTasks(checkers)
	if err != nil {
		return nil, err
	}

	requests := append(append([]*Request(nil), m.Requests...), extra...)
	if len(requests) == 0 {
		specs := make([]task.Spec, 0, len(m.Tasks))
		for _, def := range m.Tasks {
			specs = append(specs, task.Spec{Task: tasks[def.ID]})
		}
		return specs, nil
	}

	specs := make([]task.Spec, 0, len(requests))
	for _, r := range requests {
		t, ok := tasks[r.Task]
		if !ok {
			return nil, fmt.Errorf("%w: request for unknown task %q", ErrInvalidConfig, r.Task)
		}
		specs = append(specs, task.Spec{Task: t, Request: r.Region})
	}
	return specs, nil
}
