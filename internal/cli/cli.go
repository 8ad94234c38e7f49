package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/blockgrid/internal/app"
	"github.com/specialistvlad/blockgrid/internal/config"
	"github.com/specialistvlad/blockgrid/internal/region"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const usage = `
blockgrid - Block-wise distributed processing of N-dimensional regions.

Usage:
  blockgrid run [options] PATH...
  blockgrid worker [options] -connect URL

Commands:
  run     Load task files (.hcl, .yaml) and distribute their blocks.
  worker  Connect to a scheduler and process blocks.
`

// varsFlag collects repeated -var name=value flags.
type varsFlag map[string]string

func (v varsFlag) String() string { return fmt.Sprint(map[string]string(v)) }

func (v varsFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v[strings.TrimSpace(name)] = value
	return nil
}

// requestsFlag collects repeated -request task or task=[b:e,...] flags.
type requestsFlag []*config.Request

func (r *requestsFlag) String() string {
	parts := make([]string, 0, len(*r))
	for _, req := range *r {
		parts = append(parts, req.Task)
	}
	return strings.Join(parts, ",")
}

func (r *requestsFlag) Set(s string) error {
	id, raw, hasRegion := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("request %q has no task id", s)
	}
	req := &config.Request{Task: id}
	if hasRegion {
		reg, err := region.Parse(raw)
		if err != nil {
			return err
		}
		req.Region = &reg
	}
	*r = append(*r, req)
	return nil
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(output, usage)
		return nil, true, nil
	}

	mode := app.Mode(args[0])
	flagSet := flag.NewFlagSet("blockgrid "+args[0], flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		fmt.Fprintf(output, "\nOptions for %s:\n", mode)
		flagSet.PrintDefaults()
	}

	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	heartbeatFlag := flagSet.Duration("heartbeat-interval", 0, "Interval between worker heartbeats. 0 uses the default.")

	cfg := app.Config{Mode: mode}
	vars := varsFlag{}
	var requests requestsFlag
	var tasksFlag *string
	switch mode {
	case app.ModeRun:
		flagSet.Var(vars, "var", "Set a task file variable, as name=value. Repeatable.")
		flagSet.Var(&requests, "request", "Request a task, optionally limited to a region, as id or id=[b:e,...]. Repeatable.")
		flagSet.StringVar(&cfg.Listen, "listen", "", "Address to accept remote workers on, e.g. ':8080'.")
		flagSet.IntVar(&cfg.LocalWorkers, "local-workers", 0, "Number of in-process workers.")
		flagSet.StringVar(&cfg.Journal, "journal", "", "Completion journal: 'memory', 'sqlite:PATH' or a file path.")
	case app.ModeWorker:
		flagSet.StringVar(&cfg.Connect, "connect", "", "Scheduler Socket.IO URL, e.g. 'http://host:8080/socket.io/'.")
		flagSet.StringVar(&cfg.WorkerID, "worker-id", "", "Worker id. Defaults to a random UUID.")
		tasksFlag = flagSet.String("tasks", "", "Comma-separated task ids this worker accepts. Empty accepts any.")
		flagSet.BoolVar(&cfg.InsecureSkipVerify, "insecure-skip-verify", false, "Skip TLS certificate verification.")
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q: expected 'run' or 'worker'", args[0])}
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.", "mode", mode)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *heartbeatFlag < 0 || (*heartbeatFlag > 0 && *heartbeatFlag < time.Millisecond) {
		return nil, false, &ExitError{Code: 2, Message: "invalid heartbeat-interval"}
	}

	cfg.LogFormat = logFormat
	cfg.LogLevel = logLevel
	cfg.HealthcheckPort = *healthPortFlag
	cfg.HeartbeatInterval = *heartbeatFlag

	if mode == app.ModeRun {
		if flagSet.NArg() == 0 {
			slog.Debug("No task path provided, printing usage and exiting.")
			flagSet.Usage()
			return nil, true, nil
		}
		cfg.ConfigPaths = flagSet.Args()
		cfg.Vars = vars
		cfg.Requests = requests
	} else {
		if flagSet.NArg() > 0 {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))}
		}
		if *tasksFlag != "" {
			for _, id := range strings.Split(*tasksFlag, ",") {
				if id = strings.TrimSpace(id); id != "" {
					cfg.Tasks = append(cfg.Tasks, id)
				}
			}
		}
	}
	slog.Debug("CLI parameter validation complete.")

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", appConfig)
	return appConfig, false, nil
}
