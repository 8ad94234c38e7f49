package config

import (
	"errors"
	"fmt"
	"time"
)

// The raw structs are decoded straight from files. HCL and YAML share them,
// so both tag sets must stay in sync.

type rawScheduler struct {
	Listen            string `hcl:"listen,optional" yaml:"listen"`
	Journal           string `hcl:"journal,optional" yaml:"journal"`
	LocalWorkers      int    `hcl:"local_workers,optional" yaml:"local_workers"`
	HeartbeatInterval string `hcl:"heartbeat_interval,optional" yaml:"heartbeat_interval"`
	HeartbeatTimeout  string `hcl:"heartbeat_timeout,optional" yaml:"heartbeat_timeout"`
	StatusInterval    string `hcl:"status_interval,optional" yaml:"status_interval"`
	ETAWindow         string `hcl:"eta_window,optional" yaml:"eta_window"`
	DrainTimeout      string `hcl:"drain_timeout,optional" yaml:"drain_timeout"`
	DisconnectLimit   int    `hcl:"disconnect_limit,optional" yaml:"disconnect_limit"`
	CheckConcurrency  int    `hcl:"check_concurrency,optional" yaml:"check_concurrency"`
}

type rawTask struct {
	ID                string            `hcl:"id,label" yaml:"id"`
	Processor         string            `hcl:"processor" yaml:"processor"`
	Arguments         map[string]string `hcl:"arguments,optional" yaml:"arguments"`
	Total             string            `hcl:"total" yaml:"total"`
	Write             string            `hcl:"write" yaml:"write"`
	Read              *string           `hcl:"read,optional" yaml:"read"`
	Requires          []string          `hcl:"requires,optional" yaml:"requires"`
	Inputs            []string          `hcl:"inputs,optional" yaml:"inputs"`
	Outputs           []string          `hcl:"outputs,optional" yaml:"outputs"`
	ReadWriteConflict *bool             `hcl:"read_write_conflict,optional" yaml:"read_write_conflict"`
	Fit               string            `hcl:"fit,optional" yaml:"fit"`
	MaxRetries        *int              `hcl:"max_retries,optional" yaml:"max_retries"`
	Check             string            `hcl:"check,optional" yaml:"check"`
	VerifyAfterRun    bool              `hcl:"verify_after_run,optional" yaml:"verify_after_run"`
	NumWorkers        int               `hcl:"num_workers,optional" yaml:"num_workers"`
}

type rawRequest struct {
	Task   string  `hcl:"task,label" yaml:"task"`
	Region *string `hcl:"region,optional" yaml:"region"`
}

func (r *rawScheduler) toModel() (*Scheduler, error) {
	s := &Scheduler{
		Listen:           r.Listen,
		Journal:          r.Journal,
		LocalWorkers:     r.LocalWorkers,
		DisconnectLimit:  r.DisconnectLimit,
		CheckConcurrency: r.CheckConcurrency,
	}
	var errs []error
	for _, d := range []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"heartbeat_interval", r.HeartbeatInterval, &s.HeartbeatInterval},
		{"heartbeat_timeout", r.HeartbeatTimeout, &s.HeartbeatTimeout},
		{"status_interval", r.StatusInterval, &s.StatusInterval},
		{"eta_window", r.ETAWindow, &s.ETAWindow},
		{"drain_timeout", r.DrainTimeout, &s.DrainTimeout},
	} {
		v, err := parseDuration(d.field, d.raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*d.dst = v
	}
	if s.LocalWorkers < 0 {
		errs = append(errs, fmt.Errorf("local_workers cannot be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: scheduler: %w", ErrInvalidConfig, err)
	}
	return s, nil
}

func (r *rawTask) toModel() (*TaskDef, error) {
	t := &TaskDef{
		ID:                r.ID,
		Processor:         r.Processor,
		Arguments:         r.Arguments,
		Requires:          r.Requires,
		Inputs:            r.Inputs,
		Outputs:           r.Outputs,
		ReadWriteConflict: r.ReadWriteConflict,
		Fit:               r.Fit,
		MaxRetries:        r.MaxRetries,
		Check:             r.Check,
		VerifyAfterRun:    r.VerifyAfterRun,
		NumWorkers:        r.NumWorkers,
	}
	var errs []error
	if t.ID == "" {
		errs = append(errs, fmt.Errorf("id cannot be empty"))
	}
	if t.Processor == "" {
		errs = append(errs, fmt.Errorf("processor cannot be empty"))
	}
	var err error
	if t.Total, err = parseRegion("total", r.Total); err != nil {
		errs = append(errs, err)
	}
	if t.Write, err = parseRegion("write", r.Write); err != nil {
		errs = append(errs, err)
	}
	t.Read = t.Write
	if r.Read != nil {
		if t.Read, err = parseRegion("read", *r.Read); err != nil {
			errs = append(errs, err)
		}
	}
	if t.NumWorkers < 0 {
		errs = append(errs, fmt.Errorf("num_workers cannot be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: task %q: %w", ErrInvalidConfig, r.ID, err)
	}
	return t, nil
}

func (r *rawRequest) toModel() (*Request, error) {
	req := &Request{Task: r.Task}
	if r.Task == "" {
		return nil, fmt.Errorf("%w: request without a task", ErrInvalidConfig)
	}
	if r.Region != nil {
		reg, err := parseRegion("region", *r.Region)
		if err != nil {
			return nil, fmt.Errorf("%w: request for %q: %w", ErrInvalidConfig, r.Task, err)
		}
		req.Region = &reg
	}
	return req, nil
}

// toModel converts the decoded sections of one file.
func toModel(sched *rawScheduler, tasks []*rawTask, requests []*rawRequest) (*Model, error) {
	m := &Model{}
	var errs []error
	if sched != nil {
		s, err := sched.toModel()
		if err != nil {
			errs = append(errs, err)
		}
		m.Scheduler = s
	}
	for _, rt := range tasks {
		t, err := rt.toModel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Tasks = append(m.Tasks, t)
	}
	for _, rr := range requests {
		r, err := rr.toModel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Requests = append(m.Requests, r)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}
