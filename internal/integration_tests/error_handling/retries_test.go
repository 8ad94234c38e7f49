package integration_tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/blockgrid/internal/app"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/testutil"
	"github.com/specialistvlad/blockgrid/internal/testutil/harness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flakyHCL = `
scheduler {
  status_interval = "-1s"
  local_workers   = 2
}

task "flaky" {
  processor   = "record"
  total       = "[0:4]"
  write       = "[0:1]"
  max_retries = 2
}

task "after" {
  processor = "record"
  total     = "[0:4]"
  write     = "[0:1]"
  requires  = ["flaky"]
}
`

// Test for: a block that fails fewer times than its retry budget succeeds.
func TestErrorHandling_TransientFailureIsRetried(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	attempts := 0
	rec := testutil.NewRecorder()
	rec.Fail = func(block *protocol.BlockDescriptor) error {
		if block.TaskID != "flaky" || block.Coord[0] != 1 {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts <= 2 {
			return errors.New("transient")
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := harness.RunIntegrationTest(ctx, t, map[string]string{"main.hcl": flakyHCL}, app.Config{}, &harness.RecorderModule{Recorder: rec})
	require.NoError(t, result.Err)
	assert.Equal(t, 3, rec.Count(protocol.NewBlockKey("flaky", region.Coord{1})))
	assert.Len(t, rec.Order(), 10)
	final, ok := rec.Record(protocol.NewBlockKey("flaky", region.Coord{1}))
	require.True(t, ok)
	assert.Equal(t, 3, final.Attempt)
}

// Test for: a block that exhausts its retries fails its task and every
// dependent block, while independent blocks still complete.
func TestErrorHandling_ExhaustedRetriesFailDownstream(t *testing.T) {
	t.Parallel()
	rec := testutil.NewRecorder()
	rec.Fail = func(block *protocol.BlockDescriptor) error {
		if block.TaskID == "flaky" && block.Coord[0] == 1 {
			return errors.New("permanent")
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := harness.RunIntegrationTest(ctx, t, map[string]string{"main.hcl": flakyHCL}, app.Config{}, &harness.RecorderModule{Recorder: rec})
	require.ErrorIs(t, result.Err, app.ErrTasksFailed)
	assert.Equal(t, 3, rec.Count(protocol.NewBlockKey("flaky", region.Coord{1})))
	assert.Equal(t, 0, rec.Count(protocol.NewBlockKey("after", region.Coord{1})))
	for _, i := range []int64{0, 2, 3} {
		assert.Equal(t, 1, rec.Count(protocol.NewBlockKey("after", region.Coord{i})), "after[%d]", i)
	}
	assert.Contains(t, result.LogOutput, "blocks_orphaned=1")
}

// Test for: cancelling a run stops it with the context error.
func TestErrorHandling_CancelStopsRun(t *testing.T) {
	t.Parallel()
	rec := testutil.NewRecorder()
	rec.Delay = 50 * time.Millisecond
	files := map[string]string{"main.hcl": `
scheduler {
  status_interval = "-1s"
  local_workers   = 1
  drain_timeout   = "2s"
}

task "slow" {
  processor = "record"
  total     = "[0:1000]"
  write     = "[0:1]"
}
`}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	result := harness.RunIntegrationTest(ctx, t, files, app.Config{}, &harness.RecorderModule{Recorder: rec})
	require.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Less(t, len(rec.Order()), 1000)
}
