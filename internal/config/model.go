package config

import (
	"time"

	"github.com/specialistvlad/blockgrid/internal/region"
)

// Model is the merged content of all loaded task files.
type Model struct {
	// Scheduler is nil when no file has a scheduler section.
	Scheduler *Scheduler
	Tasks     []*TaskDef
	Requests  []*Request
}

// Scheduler holds the scheduler settings of a task file. Zero values mean
// "use the default".
type Scheduler struct {
	Listen            string
	Journal           string
	LocalWorkers      int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	StatusInterval    time.Duration
	ETAWindow         time.Duration
	DrainTimeout      time.Duration
	DisconnectLimit   int
	CheckConcurrency  int
}

// TaskDef is one task as written in a file.
type TaskDef struct {
	ID        string
	Processor string
	Arguments map[string]string

	Total region.Region
	Read  region.Region
	Write region.Region

	Requires []string
	Inputs   []string
	Outputs  []string

	// ReadWriteConflict is nil when unset, which means true.
	ReadWriteConflict *bool
	Fit               string
	// MaxRetries is nil when unset.
	MaxRetries     *int
	Check          string
	VerifyAfterRun bool
	NumWorkers     int

	// Source is the file the task was read from.
	Source string
}

// Request asks for part of a task. A nil Region means the whole total region.
type Request struct {
	Task   string
	Region *region.Region
}
