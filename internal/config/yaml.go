package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// YAMLLoader reads .yaml and .yml task files.
type YAMLLoader struct{}

type yamlFile struct {
	Scheduler *rawScheduler `yaml:"scheduler"`
	Tasks     []*rawTask    `yaml:"tasks"`
	Requests  []*rawRequest `yaml:"requests"`
}

// Load implements Loader. YAML files have no expressions, so vars are unused.
func (l *YAMLLoader) Load(ctx context.Context, path string, _ map[string]string) (*Model, error) {
	ctxlog.FromContext(ctx).Debug("Loading YAML task file.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var root yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}
	m, err := toModel(root.Scheduler, root.Tasks, root.Requests)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
