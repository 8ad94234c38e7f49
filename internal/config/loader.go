package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/fsutil"
	"github.com/specialistvlad/blockgrid/internal/region"
)

// ErrInvalidConfig wraps every semantic error found in a task file.
var ErrInvalidConfig = errors.New("invalid configuration")

// Loader reads one file of a specific format.
type Loader interface {
	Load(ctx context.Context, path string, vars map[string]string) (*Model, error)
}

// loaders maps file extensions to their loader.
var loaders = map[string]Loader{
	".hcl":  &HCLLoader{},
	".yaml": &YAMLLoader{},
	".yml":  &YAMLLoader{},
}

// Load reads every task file under the given paths, which may be files or
// directories, and merges them into one model. vars are the values of HCL
// variables; they override defaults declared in the files.
func Load(ctx context.Context, vars map[string]string, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no task files found in %v", ErrInvalidConfig, paths)
	}
	logger.Debug("Discovered task files.", "count", len(files))

	merged := &Model{}
	for _, file := range files {
		loader := loaders[filepath.Ext(file)]
		m, err := loader.Load(ctx, file, vars)
		if err != nil {
			return nil, err
		}
		if err := merged.merge(m, file); err != nil {
			return nil, err
		}
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	logger.Info("📄 Task files loaded.", "files", len(files), "tasks", len(merged.Tasks), "requests", len(merged.Requests))
	return merged, nil
}

func findFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		found := []string{path}
		if info.IsDir() {
			found, err = fsutil.FindFilesByExtension(path, exts...)
			if err != nil {
				return nil, err
			}
		} else if _, ok := loaders[filepath.Ext(path)]; !ok {
			return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidConfig, path)
		}
		for _, f := range found {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *Model) merge(o *Model, file string) error {
	if o.Scheduler != nil {
		if m.Scheduler != nil {
			return fmt.Errorf("%w: %s: scheduler settings are already defined in another file", ErrInvalidConfig, file)
		}
		m.Scheduler = o.Scheduler
	}
	for _, t := range o.Tasks {
		t.Source = file
	}
	m.Tasks = append(m.Tasks, o.Tasks...)
	m.Requests = append(m.Requests, o.Requests...)
	return nil
}

// Task returns the task with the given id.
func (m *Model) Task(id string) (*TaskDef, bool) {
	for _, t := range m.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Validate checks references between tasks and requests.
func (m *Model) Validate() error {
	var errs []error
	ids := make(map[string]string, len(m.Tasks))
	for _, t := range m.Tasks {
		if prev, dup := ids[t.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: task %q is defined in both %s and %s", ErrInvalidConfig, t.ID, prev, t.Source))
			continue
		}
		ids[t.ID] = t.Source
	}
	for _, t := range m.Tasks {
		for _, req := range t.Requires {
			if _, ok := ids[req]; !ok {
				errs = append(errs, fmt.Errorf("%w: task %q requires unknown task %q", ErrInvalidConfig, t.ID, req))
			}
		}
	}
	for _, r := range m.Requests {
		if _, ok := ids[r.Task]; !ok {
			errs = append(errs, fmt.Errorf("%w: request for unknown task %q", ErrInvalidConfig, r.Task))
		}
	}
	return errors.Join(errs...)
}

func parseRegion(field, raw string) (region.Region, error) {
	r, err := region.Parse(raw)
	if err != nil {
		return region.Region{}, fmt.Errorf("%s: %w", field, err)
	}
	return r, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
