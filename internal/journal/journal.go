// Package journal records completed blocks so an interrupted run can resume
// without recomputing them.
//
// Entries are keyed by block key plus a fingerprint of the task geometry, so
// a changed task definition never matches completions of an older one.
package journal

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dchest/siphash"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/task"
)

// Fixed siphash keys; fingerprints must be stable across processes.
const (
	fingerprintK0 = 0x626c6f636b677269
	fingerprintK1 = 0x646a6f75726e616c
)

// Journal stores block completions.
type Journal interface {
	IsDone(ctx context.Context, key protocol.BlockKey, fingerprint uint64) (bool, error)
	MarkDone(ctx context.Context, key protocol.BlockKey, fingerprint uint64) error
	Close() error
}

// Fingerprint hashes the parts of a task that determine what its blocks
// compute.
func Fingerprint(t *task.Task) uint64 {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s", t.ID, t.TotalRegion, t.ReadRegion, t.WriteRegion, t.Processor, t.FitPolicy())
	keys := make([]string, 0, len(t.Arguments))
	for k := range t.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, t.Arguments[k])
	}
	return siphash.Hash(fingerprintK0, fingerprintK1, []byte(b.String()))
}

// Open returns the journal named by dsn: "memory" for an in-process journal,
// "sqlite:<path>" or a bare path for a SQLite database.
func Open(ctx context.Context, dsn string) (Journal, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("journal DSN cannot be empty")
	case dsn == "memory":
		return NewMemory()
	case strings.HasPrefix(dsn, "sqlite:"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	default:
		return OpenSQLite(ctx, dsn)
	}
}
