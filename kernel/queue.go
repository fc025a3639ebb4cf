// Implements the WorkQueue, the FIFO sequence of units currently being
// drained. A WorkQueue is itself usable as a unit payload (via SeqUnit), so
// queues nest arbitrarily.
//
// Queues are immutable: every operation returns a new queue and never
// mutates the receiver, so snapshots taken by capture/copy stay valid.

package kernel

import (
	"fmt"
	"strings"
)

// WorkQueue is an immutable FIFO of units plus execution side-metadata that
// is not part of the simulated world:
//
//   - onError: optional unit run when draining this queue faults
//   - captured: stack of queue snapshots taken by Capture, for loop replay
//   - replayState: stack of per-loop state values used by SReplay
type WorkQueue struct {
	items       []Unit
	onError     *Unit
	captured    []*WorkQueue
	replayState []any
}

// NewQueue builds a queue holding the given units front-to-back.
func NewQueue(units ...Unit) *WorkQueue {
	q := &WorkQueue{}
	if len(units) > 0 {
		q.items = make([]Unit, len(units))
		copy(q.items, units)
	}
	return q
}

// Len returns the number of queued units. Nil-safe.
func (q *WorkQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Empty reports whether the queue holds no units. Nil-safe.
func (q *WorkQueue) Empty() bool {
	return q.Len() == 0
}

// clone copies the queue shell, sharing the metadata stacks. Callers then
// replace whichever field they are updating.
func (q *WorkQueue) clone() *WorkQueue {
	if q == nil {
		return &WorkQueue{}
	}
	out := *q
	return &out
}

// PushBack returns a queue with u appended at the back.
func (q *WorkQueue) PushBack(u Unit) *WorkQueue {
	out := q.clone()
	items := make([]Unit, out.Len()+1)
	copy(items, out.items)
	items[len(items)-1] = u
	out.items = items
	return out
}

// PushFront returns a queue with u inserted at the front.
func (q *WorkQueue) PushFront(u Unit) *WorkQueue {
	out := q.clone()
	items := make([]Unit, out.Len()+1)
	items[0] = u
	copy(items[1:], out.items)
	out.items = items
	return out
}

// PopFront returns the front unit and the queue without it.
// The popped queue shares the receiver's metadata.
func (q *WorkQueue) PopFront() (Unit, *WorkQueue) {
	if q.Empty() {
		panic("kernel: PopFront on empty WorkQueue")
	}
	out := q.clone()
	out.items = q.items[1:]
	return q.items[0], out
}

// PeekFront returns the front unit without removing it.
func (q *WorkQueue) PeekFront() (Unit, bool) {
	if q.Empty() {
		return Unit{}, false
	}
	return q.items[0], true
}

// Concat returns a queue draining q first, then other. Metadata comes from
// the receiver.
func (q *WorkQueue) Concat(other *WorkQueue) *WorkQueue {
	out := q.clone()
	items := make([]Unit, q.Len()+other.Len())
	copy(items, q.items)
	if other != nil {
		copy(items[q.Len():], other.items)
	}
	out.items = items
	return out
}

// Clear returns a queue with no units, metadata preserved.
func (q *WorkQueue) Clear() *WorkQueue {
	out := q.clone()
	out.items = nil
	return out
}

// Bare returns a metadata-stripped snapshot of the queued units. This is
// what Capture and Copy record: replaying a loop body must not replay the
// loop's own bookkeeping stacks.
func (q *WorkQueue) Bare() *WorkQueue {
	if q == nil {
		return &WorkQueue{}
	}
	return &WorkQueue{items: q.items}
}

// WithOnError returns a queue whose faults route through hook before
// draining resumes.
func (q *WorkQueue) WithOnError(hook Unit) *WorkQueue {
	out := q.clone()
	out.onError = &hook
	return out
}

// OnError returns the on-error hook, if any.
func (q *WorkQueue) OnError() (Unit, bool) {
	if q == nil || q.onError == nil {
		return Unit{}, false
	}
	return *q.onError, true
}

// pushCapture returns a queue with snap pushed on the captured stack and an
// unset slot pushed on the replay-state stack.
func (q *WorkQueue) pushCapture(snap *WorkQueue) *WorkQueue {
	out := q.clone()
	out.captured = append(q.captured[:len(q.captured):len(q.captured)], snap)
	out.replayState = append(q.replayState[:len(q.replayState):len(q.replayState)], nil)
	return out
}

// topCapture returns the most recent captured snapshot and replay state.
func (q *WorkQueue) topCapture() (*WorkQueue, any, bool) {
	if q == nil || len(q.captured) == 0 {
		return nil, nil, false
	}
	return q.captured[len(q.captured)-1], q.replayState[len(q.replayState)-1], true
}

// popCapture returns a queue with one level dropped from both stacks.
func (q *WorkQueue) popCapture() *WorkQueue {
	out := q.clone()
	out.captured = q.captured[:len(q.captured)-1]
	out.replayState = q.replayState[:len(q.replayState)-1]
	return out
}

// setReplayState returns a queue whose top replay-state slot holds state.
func (q *WorkQueue) setReplayState(state any) *WorkQueue {
	out := q.clone()
	rs := make([]any, len(q.replayState))
	copy(rs, q.replayState)
	rs[len(rs)-1] = state
	out.replayState = rs
	return out
}

// captureDepth returns the height of the captured stack.
func (q *WorkQueue) captureDepth() int {
	if q == nil {
		return 0
	}
	return len(q.captured)
}

func (q *WorkQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, u := range q.items {
		switch u.Kind {
		case UnitValue:
			sb.WriteString(fmt.Sprint(u.Value))
		case UnitFunc:
			sb.WriteString("fn")
		case UnitSeq:
			sb.WriteString(u.Seq.String())
		}
		if i < len(q.items)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
