package scheduler

import (
	"context"
	"slices"

	"github.com/specialistvlad/blockgrid/internal/protocol"
)

// dispatch offers the lowest Z-order ready block each idle session accepts.
// A session is idle once it has asked for work with REQUEST_NEXT.
func (c *Core) dispatch(ctx context.Context) {
	for _, id := range slices.Clone(c.order) {
		if c.ready.Len() == 0 {
			return
		}
		s, ok := c.sessions[id]
		if !ok || !s.idle() {
			continue
		}
		key, ok := c.ready.PopMatching(s.accepts)
		if !ok {
			continue
		}
		c.assign(ctx, s, c.blocks[key])
	}
}

func (c *Core) assign(ctx context.Context, s *session, b *blockState) {
	key := b.key()
	b.state = Assigned
	b.session = s.id
	b.dispatches++
	s.assigned = &key
	s.wantsWork = false

	desc := b.block.Descriptor(b.task.task, b.dispatches)
	c.logger.Debug("Block assigned.", "block", key.String(), "session", s.id, "attempt", b.dispatches)
	c.send(ctx, s, protocol.NewAssign(desc))
}
