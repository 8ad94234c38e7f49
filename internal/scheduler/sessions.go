package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/protocol"
)

// session is one connected worker.
type session struct {
	id         string
	ch         channel.Channel
	workerID   string
	tasks      map[string]struct{}
	registered bool
	// wantsWork is set by REQUEST_NEXT and cleared by the next ASSIGN.
	wantsWork bool
	assigned  *protocol.BlockKey
	// lastSeen holds the receive time of the latest message in unix
	// nanoseconds. The reader stamps it, not the control loop.
	lastSeen atomic.Int64
	cancel   context.CancelFunc
}

// accepts reports whether the session may receive blocks of taskID.
func (s *session) accepts(taskID string) bool {
	if len(s.tasks) == 0 {
		return true
	}
	_, ok := s.tasks[taskID]
	return ok
}

func (s *session) idle() bool { return s.registered && s.wantsWork && s.assigned == nil }

func (s *session) seen(t time.Time) { s.lastSeen.Store(t.UnixNano()) }

func (s *session) silentFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventClosed
	eventChecked
)

// event is what a session reader or a Checker call forwards to the control
// loop.
type event struct {
	kind    eventKind
	session string
	msg     protocol.Message
	err     error
	check   *checkResult
}

func (c *Core) addSession(ctx context.Context, ch channel.Channel) {
	c.seq++
	s := &session{
		id: fmt.Sprintf("%d/%s", c.seq, ch.ID()),
		ch: ch,
	}
	s.seen(c.now())
	// Readers outlive cancellation of ctx so that a cancelled run can drain.
	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	c.sessions[s.id] = s
	c.order = append(c.order, s.id)
	c.logger.Debug("Worker channel attached.", "session", s.id)

	go c.read(readCtx, s)
}

func (c *Core) read(ctx context.Context, s *session) {
	for {
		msg, err := s.ch.Recv(ctx)
		if err != nil {
			c.post(ctx, event{kind: eventClosed, session: s.id, err: err})
			return
		}
		s.seen(c.now())
		if !c.post(ctx, event{kind: eventMessage, session: s.id, msg: msg}) {
			return
		}
	}
}

func (c *Core) post(ctx context.Context, ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Core) handleEvent(ctx context.Context, ev event) {
	if ev.kind == eventChecked {
		c.handleCheck(ctx, ev.check)
		return
	}
	s, ok := c.sessions[ev.session]
	if !ok {
		return
	}
	switch ev.kind {
	case eventClosed:
		cause := ev.err
		if errors.Is(cause, channel.ErrClosed) {
			cause = ErrWorkerDisconnected
		}
		c.dropSession(ctx, s, cause)
	case eventMessage:
		c.handleMessage(ctx, s, ev.msg)
	}
}

func (c *Core) handleMessage(ctx context.Context, s *session, msg protocol.Message) {
	if err := msg.Validate(); err != nil {
		c.logger.Warn("Ignoring invalid message from worker.", "session", s.id, "error", err)
		return
	}
	switch msg.Kind {
	case protocol.Register:
		s.registered = true
		s.workerID = msg.WorkerID
		s.tasks = nil
		if len(msg.Tasks) > 0 {
			s.tasks = make(map[string]struct{}, len(msg.Tasks))
			for _, id := range msg.Tasks {
				s.tasks[id] = struct{}{}
			}
		}
		c.logger.Info("👷 Worker registered.", "session", s.id, "worker", s.workerID, "tasks", msg.Tasks)
	case protocol.RequestNext:
		s.registered = true
		s.wantsWork = true
	case protocol.Heartbeat:
		c.handleHeartbeat(s, msg.Key)
	case protocol.BlockDone:
		c.handleDone(ctx, s, msg)
	case protocol.Release:
		c.logger.Info("Worker released its session.", "session", s.id, "worker", s.workerID)
		c.dropSession(ctx, s, errReleased)
	default:
		c.logger.Warn("Ignoring unexpected message from worker.", "session", s.id, "kind", msg.Kind)
	}
}

func (c *Core) handleHeartbeat(s *session, key *protocol.BlockKey) {
	if key == nil || s.assigned == nil || *key != *s.assigned {
		return
	}
	if b, ok := c.blocks[*key]; ok && b.state == Assigned && b.session == s.id {
		b.state = Running
	}
}

// send delivers msg to s, dropping the session when delivery fails.
func (c *Core) send(ctx context.Context, s *session, msg protocol.Message) bool {
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()
	if err := s.ch.Send(sendCtx, msg); err != nil {
		c.logger.Warn("Failed to send to worker.", "session", s.id, "kind", msg.Kind, "error", err)
		c.dropSession(ctx, s, fmt.Errorf("%w: %v", ErrWorkerDisconnected, err))
		return false
	}
	return true
}

// closeSession forgets s without touching its block.
func (c *Core) closeSession(s *session) {
	s.cancel()
	_ = s.ch.Close()
	delete(c.sessions, s.id)
	c.order = slices.DeleteFunc(c.order, func(id string) bool { return id == s.id })
}

// dropSession forgets s and reschedules the block it held.
func (c *Core) dropSession(ctx context.Context, s *session, cause error) {
	if _, ok := c.sessions[s.id]; !ok {
		return
	}
	c.closeSession(s)
	if s.assigned == nil {
		c.logger.Info("Worker left.", "session", s.id, "worker", s.workerID, "reason", cause)
		return
	}
	key := *s.assigned
	s.assigned = nil
	c.logger.Warn("⚠️ Worker lost with a block in flight.", "session", s.id, "worker", s.workerID, "block", key.String(), "reason", cause)
	if b, ok := c.blocks[key]; ok && b.session == s.id && b.inFlight() {
		c.disconnected(ctx, b, cause)
	}
}

func (c *Core) checkHeartbeats(ctx context.Context) {
	now := c.now()
	for _, id := range slices.Clone(c.order) {
		s, ok := c.sessions[id]
		if !ok {
			continue
		}
		if silent := s.silentFor(now); silent > c.cfg.HeartbeatTimeout {
			c.logger.Warn("Worker missed its heartbeat.", "session", s.id, "silent_for", silent)
			c.dropSession(ctx, s, ErrHeartbeatTimeout)
		}
	}
}

// retireSessions shuts down idle sessions whose task filter has nothing
// left to run.
func (c *Core) retireSessions(ctx context.Context) {
	for _, id := range slices.Clone(c.order) {
		s, ok := c.sessions[id]
		if !ok || !s.idle() || len(s.tasks) == 0 {
			continue
		}
		finished := true
		for taskID := range s.tasks {
			if ts, ok := c.tasks[taskID]; ok && !ts.terminal() {
				finished = false
				break
			}
		}
		if finished {
			c.shutdown(ctx, s)
		}
	}
}

func (c *Core) shutdown(ctx context.Context, s *session) {
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()
	_ = s.ch.Send(sendCtx, protocol.NewShutdown())
	c.closeSession(s)
}

func (c *Core) shutdownIdle(ctx context.Context) {
	for _, id := range slices.Clone(c.order) {
		if s, ok := c.sessions[id]; ok && s.assigned == nil {
			c.shutdown(ctx, s)
		}
	}
}

func (c *Core) shutdownAll(ctx context.Context) {
	for _, id := range slices.Clone(c.order) {
		if s, ok := c.sessions[id]; ok {
			c.shutdown(ctx, s)
		}
	}
}
