// Package harness runs the whole application over task files written to a
// temporary directory, for tests that exercise a run end to end.
package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/blockgrid/internal/app"
	"github.com/specialistvlad/blockgrid/internal/registry"
	"github.com/specialistvlad/blockgrid/internal/testutil"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// Dir is the directory the task files were written to.
	Dir string
}

// RecorderModule registers a Recorder as the "record" processor.
type RecorderModule struct {
	Recorder *testutil.Recorder
}

// Register implements registry.Module.
func (m *RecorderModule) Register(r *registry.Registry) {
	r.RegisterProcessor("record", m.Recorder)
}

// WriteFiles writes files, keyed by relative path, into a fresh temporary
// directory and returns it.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// RunIntegrationTest writes files to a temporary directory and runs the app
// over it in run mode. cfg supplies everything but the mode and the paths;
// modules replace the built-in ones when given.
func RunIntegrationTest(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()
	dir := WriteFiles(t, files)
	cfg.Mode = app.ModeRun
	cfg.ConfigPaths = []string{dir}
	result := RunApp(ctx, t, cfg, modules...)
	result.Dir = dir
	return result
}

// RunApp runs the app with cfg and captures its output.
func RunApp(ctx context.Context, t *testing.T, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	logBuffer := &testutil.SafeBuffer{}
	t.Cleanup(func() {
		if t.Failed() || os.Getenv(testutil.LogsEnv) == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return &HarnessResult{Err: err}
	}
	testApp, err := app.NewApp(logBuffer, appConfig, modules...)
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err}
	}
	runErr := testApp.Run(ctx)
	return &HarnessResult{LogOutput: logBuffer.String(), Err: runErr, App: testApp}
}
