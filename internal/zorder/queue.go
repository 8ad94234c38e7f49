package zorder

import (
	"github.com/google/btree"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
)

const btreeDegree = 32

// entry is a queued block. Entries order by Morton code, then task id, then
// grid coordinate, so ties are resolved deterministically.
type entry struct {
	code  Code
	key   protocol.BlockKey
	coord region.Coord
}

func (e *entry) Less(than btree.Item) bool {
	o := than.(*entry)
	if c := e.code.Compare(o.code); c != 0 {
		return c < 0
	}
	if e.key.TaskID != o.key.TaskID {
		return e.key.TaskID < o.key.TaskID
	}
	return e.coord.Compare(o.coord) < 0
}

// Queue is the set of ready blocks ordered along the Z-order curve. It is not
// safe for concurrent use; the scheduler loop owns it.
type Queue struct {
	tree  *btree.BTree
	index map[protocol.BlockKey]*entry
}

// NewQueue returns an empty ready set.
func NewQueue() *Queue {
	return &Queue{
		tree:  btree.New(btreeDegree),
		index: make(map[protocol.BlockKey]*entry),
	}
}

// Push adds a block. It returns false if the block is already queued.
func (q *Queue) Push(key protocol.BlockKey, coord region.Coord, code Code) bool {
	if _, ok := q.index[key]; ok {
		return false
	}
	e := &entry{code: code, key: key, coord: coord.Clone()}
	q.index[key] = e
	q.tree.ReplaceOrInsert(e)
	return true
}

// Remove drops a block from the set. It returns false if it was not queued.
func (q *Queue) Remove(key protocol.BlockKey) bool {
	e, ok := q.index[key]
	if !ok {
		return false
	}
	delete(q.index, key)
	q.tree.Delete(e)
	return true
}

// Has reports whether the block is queued.
func (q *Queue) Has(key protocol.BlockKey) bool {
	_, ok := q.index[key]
	return ok
}

// Len returns the number of queued blocks.
func (q *Queue) Len() int { return q.tree.Len() }

// Pop removes and returns the block with the lowest Morton code.
func (q *Queue) Pop() (protocol.BlockKey, bool) {
	item := q.tree.DeleteMin()
	if item == nil {
		return protocol.BlockKey{}, false
	}
	e := item.(*entry)
	delete(q.index, e.key)
	return e.key, true
}

// PopMatching removes and returns the lowest block whose task is accepted.
func (q *Queue) PopMatching(accept func(taskID string) bool) (protocol.BlockKey, bool) {
	var found *entry
	q.tree.Ascend(func(item btree.Item) bool {
		e := item.(*entry)
		if accept(e.key.TaskID) {
			found = e
			return false
		}
		return true
	})
	if found == nil {
		return protocol.BlockKey{}, false
	}
	q.Remove(found.key)
	return found.key, true
}

// Keys lists queued blocks in dispatch order.
func (q *Queue) Keys() []protocol.BlockKey {
	out := make([]protocol.BlockKey, 0, q.tree.Len())
	q.tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(*entry).key)
		return true
	})
	return out
}
