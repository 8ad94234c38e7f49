package scheduler

import (
	"context"
	"fmt"

	"github.com/specialistvlad/blockgrid/internal/protocol"
)

// drainPromotions moves blocks whose dependencies are done to READY, or
// straight to DONE when the journal already has them. Blocks of tasks with
// a Checker stay PENDING until their check comes back. It works through a
// worklist since skipping a block can release its dependents.
func (c *Core) drainPromotions(ctx context.Context) {
	for len(c.promote) > 0 {
		b := c.promote[0]
		c.promote = c.promote[1:]
		if b.state != Pending || b.checking {
			continue
		}
		done, err := c.journaled(ctx, b)
		if err != nil {
			c.logger.Warn("Journal lookup failed, scheduling block.", "block", b.key().String(), "error", err)
		}
		switch {
		case done:
			c.complete(ctx, b, true)
		case b.task.task.Check != nil:
			c.startCheck(ctx, b, false)
		default:
			c.requeue(b)
		}
	}
}

func (c *Core) journaled(ctx context.Context, b *blockState) (bool, error) {
	if c.journal == nil {
		return false, nil
	}
	done, err := c.journal.IsDone(ctx, b.key(), b.task.fingerprint)
	if err != nil {
		return false, fmt.Errorf("journal lookup: %w", err)
	}
	return done, nil
}

// checkResult is the outcome of one Checker call.
type checkResult struct {
	key    protocol.BlockKey
	verify bool
	done   bool
	err    error
}

// startCheck calls the task's Checker for b on its own goroutine and posts
// the result back to the control loop.
func (c *Core) startCheck(ctx context.Context, b *blockState, verify bool) {
	b.checking = true
	checker := b.task.task.Check
	r := &checkResult{key: b.key(), verify: verify}
	desc := b.block.Descriptor(b.task.task, b.dispatches)
	go func() {
		if err := c.checks.Acquire(ctx, 1); err != nil {
			r.err = err
		} else {
			r.done, r.err = checker.CheckBlock(ctx, desc)
			c.checks.Release(1)
		}
		c.post(ctx, event{kind: eventChecked, check: r})
	}()
}

func (c *Core) handleCheck(ctx context.Context, r *checkResult) {
	b, ok := c.blocks[r.key]
	if !ok || !b.checking {
		return
	}
	b.checking = false
	if b.state == Done || b.state == Failed {
		return
	}
	done := r.done && r.err == nil

	if r.verify {
		if done {
			c.complete(ctx, b, false)
			return
		}
		cause := ErrVerifyFailed
		if r.err != nil {
			cause = fmt.Errorf("%w: %v", ErrVerifyFailed, r.err)
		}
		// Output reported by a stale session does not disturb the holder.
		if b.inFlight() && !c.held(b) {
			c.retry(ctx, b, cause)
			return
		}
		c.logger.Debug("Late output failed verification.", "block", r.key.String(), "error", cause)
		return
	}

	if b.state != Pending {
		return
	}
	if r.err != nil {
		c.logger.Warn("Completion check failed, scheduling block.", "block", r.key.String(), "error", r.err)
	}
	if done {
		c.complete(ctx, b, true)
		return
	}
	c.requeue(b)
}

// held reports whether a live session is still working on b.
func (c *Core) held(b *blockState) bool {
	s, ok := c.sessions[b.session]
	return ok && s.assigned != nil && *s.assigned == b.key()
}

func (c *Core) handleDone(ctx context.Context, s *session, msg protocol.Message) {
	key := *msg.Key
	holder := s.assigned != nil && *s.assigned == key
	if holder {
		s.assigned = nil
	}

	b, ok := c.blocks[key]
	if !ok || b.state == Done || b.state == Failed {
		c.logger.Debug("Ignoring completion of a finished block.", "block", key.String(), "session", s.id)
		return
	}
	holder = holder && b.session == s.id
	if !holder && b.dispatches == 0 {
		c.logger.Debug("Ignoring completion of a block that was never dispatched.", "block", key.String(), "session", s.id)
		return
	}

	if msg.Outcome == protocol.Failure {
		if !holder {
			c.logger.Debug("Ignoring failure from a session that does not hold the block.", "block", key.String(), "session", s.id)
			return
		}
		c.retry(ctx, b, fmt.Errorf("%w: %s", ErrBlockProcess, msg.Error))
		return
	}

	if b.checking {
		c.logger.Debug("Ignoring completion of a block under verification.", "block", key.String(), "session", s.id)
		return
	}
	if b.task.task.VerifyAfterRun && b.task.task.Check != nil {
		if holder {
			// The session is free again; the block keeps its state until
			// the output is verified.
			b.session = ""
		}
		c.startCheck(ctx, b, true)
		return
	}
	if !holder && b.inFlight() {
		c.logger.Info("Block completed by a session that no longer holds it.", "block", key.String(), "session", s.id, "holder", b.session)
	}
	c.complete(ctx, b, false)
}

// complete marks b DONE and releases its dependents.
func (c *Core) complete(ctx context.Context, b *blockState, skipped bool) {
	key := b.key()
	if b.state == Ready {
		c.ready.Remove(key)
	}
	b.state = Done
	b.session = ""

	ts := b.task
	if skipped {
		ts.skipped++
		c.logger.Debug("Block already complete, skipping.", "block", key.String())
	} else {
		ts.done++
		c.reporter.RecordCompletion(c.now())
		if c.journal != nil {
			if err := c.journal.MarkDone(ctx, key, ts.fingerprint); err != nil {
				c.logger.Warn("Failed to journal block completion.", "block", key.String(), "error", err)
			}
		}
	}

	for _, dk := range b.block.Dependents {
		d, ok := c.blocks[dk]
		if !ok || d.state != Pending {
			continue
		}
		d.waiting--
		if d.waiting == 0 {
			c.promote = append(c.promote, d)
		}
	}

	c.collect(b)
	for _, up := range b.block.Deps {
		if u, ok := c.blocks[up]; ok {
			c.collect(u)
		}
	}
	c.noteTask(b.task)
}

// retry puts b back on the ready queue or fails it once its retries are
// used up.
func (c *Core) retry(ctx context.Context, b *blockState, cause error) {
	b.retries++
	b.session = ""
	if b.retries > b.task.task.MaxRetries {
		c.fail(&BlockError{Key: b.key(), Attempts: b.retries, Cause: cause}, b)
		return
	}
	c.logger.Warn("🔁 Block failed, retrying.", "block", b.key().String(), "retry", b.retries, "max_retries", b.task.task.MaxRetries, "error", cause)
	c.requeue(b)
}

// disconnected handles a block whose worker went away.
func (c *Core) disconnected(ctx context.Context, b *blockState, cause error) {
	b.disconnects++
	if b.disconnects > c.cfg.DisconnectLimit {
		c.retry(ctx, b, fmt.Errorf("%w: %v", ErrWorkerDisconnected, cause))
		return
	}
	b.session = ""
	c.requeue(b)
}

func (c *Core) requeue(b *blockState) {
	b.state = Ready
	c.ready.Push(b.key(), b.block.Coord, b.block.Morton)
}

// fail marks b FAILED and every block depending on it, directly or not,
// FAILED with ErrUpstreamFailed. Failed blocks are then dropped from the
// graph.
func (c *Core) fail(err *BlockError, b *blockState) {
	c.markFailed(b, err, false)
	failed := []*blockState{b}
	for i := 0; i < len(failed); i++ {
		cur := failed[i]
		for _, dk := range cur.block.Dependents {
			d, ok := c.blocks[dk]
			if !ok || d.state == Done || d.state == Failed {
				continue
			}
			c.markFailed(d, &BlockError{
				Key:      dk,
				Attempts: d.retries,
				Cause:    fmt.Errorf("%w: %s", ErrUpstreamFailed, cur.key()),
			}, true)
			failed = append(failed, d)
		}
	}

	for _, f := range failed {
		delete(c.blocks, f.key())
	}
	for _, f := range failed {
		for _, up := range f.block.Deps {
			if u, ok := c.blocks[up]; ok {
				c.collect(u)
			}
		}
		c.noteTask(f.task)
	}
}

func (c *Core) markFailed(b *blockState, err *BlockError, orphan bool) {
	if b.state == Ready {
		c.ready.Remove(b.key())
	}
	b.state = Failed
	b.session = ""
	ts := b.task
	ts.failed++
	if orphan {
		ts.orphaned++
	}
	if ts.cause == nil {
		key := b.key()
		ts.failedBlock = &key
		ts.cause = err
		c.logger.Error("❌ Block failed.", "block", key.String(), "task", ts.task.ID, "error", err)
	}
}

// collect drops a DONE block once nothing can still need it.
func (c *Core) collect(b *blockState) {
	if b.state != Done || b.session != "" {
		return
	}
	for _, dk := range b.block.Dependents {
		if d, ok := c.blocks[dk]; ok && d.state != Done && d.state != Failed {
			return
		}
	}
	delete(c.blocks, b.key())
}

func (c *Core) noteTask(ts *taskState) {
	if ts.reported || !ts.terminal() {
		return
	}
	ts.reported = true
	if ts.failed > 0 {
		c.logger.Error("❌ Task failed.", "task", ts.task.ID, "failed_blocks", ts.failed, "orphaned", ts.orphaned, "error", ts.cause)
		return
	}
	c.logger.Info("✅ Task finished.", "task", ts.task.ID, "done", ts.done, "skipped", ts.skipped)
}
