// Composable control-flow building blocks usable as unit bodies. Each
// primitive operates on the active working queue (or its side metadata) and
// returns a new context; constructors close over the non-context arguments
// so the result is directly usable as a FuncUnit body.

package kernel

// activeQueue returns the working queue currently being drained, or an
// EMPTY_QUEUE_ACCESS error when no unit is executing.
func activeQueue(ctx *Context) (*WorkQueue, error) {
	if ctx.Exec.Queue == nil {
		return nil, &Error{
			Code:    CodeEmptyQueueAccess,
			Message: "no active working queue",
			Path:    ctx.Exec.Path,
			At:      ctx.Exec.TimeVec,
		}
	}
	return ctx.Exec.Queue, nil
}

// Breaker cancels the remaining work in the current sequence unless pred
// holds: a conditional abort.
func Breaker(pred func(*Context) bool) Func {
	return func(ctx *Context) (*Context, error) {
		q, err := activeQueue(ctx)
		if err != nil {
			return nil, err
		}
		if pred(ctx) {
			return ctx, nil
		}
		return ctx.withQueue(q.Clear()), nil
	}
}

// Capture snapshots the remaining queue onto the captured stack and pushes
// an unset slot onto the replay-state stack. The queue's contents are not
// altered; the snapshot is metadata-stripped.
func Capture() Func {
	return func(ctx *Context) (*Context, error) {
		q, err := activeQueue(ctx)
		if err != nil {
			return nil, err
		}
		return ctx.withQueue(q.pushCapture(q.Bare())), nil
	}
}

// Replay re-runs the most recently captured queue while pred holds. Once
// pred fails, one level is popped off both the captured and replay-state
// stacks and draining continues past the loop.
func Replay(pred func(*Context) bool) Func {
	return func(ctx *Context) (*Context, error) {
		q, err := activeQueue(ctx)
		if err != nil {
			return nil, err
		}
		snap, _, ok := q.topCapture()
		if !ok {
			return nil, &Error{
				Code:    CodeEmptyQueueAccess,
				Message: "replay without a captured queue",
				Path:    ctx.Exec.Path,
				At:      ctx.Exec.TimeVec,
			}
		}
		if !pred(ctx) {
			return ctx.withQueue(q.popCapture()), nil
		}
		return ctx.withQueue(reinstall(q, snap)), nil
	}
}

// SReplay is the stateful replay: pred receives the loop state (seed on
// first entry) and returns the next state to continue, or ok=false to exit
// the loop.
func SReplay(pred func(*Context, any) (any, bool), seed any) Func {
	return func(ctx *Context) (*Context, error) {
		q, err := activeQueue(ctx)
		if err != nil {
			return nil, err
		}
		snap, state, ok := q.topCapture()
		if !ok {
			return nil, &Error{
				Code:    CodeEmptyQueueAccess,
				Message: "sreplay without a captured queue",
				Path:    ctx.Exec.Path,
				At:      ctx.Exec.TimeVec,
			}
		}
		if state == nil {
			state = seed
		}
		next, cont := pred(ctx, state)
		if !cont {
			return ctx.withQueue(q.popCapture()), nil
		}
		return ctx.withQueue(reinstall(q, snap).setReplayState(next)), nil
	}
}

// reinstall makes snap's units the active items while keeping q's metadata
// stacks, so the loop can keep replaying.
func reinstall(q, snap *WorkQueue) *WorkQueue {
	out := q.clone()
	out.items = snap.items
	return out
}

// PredRepeat is the bounded-loop predicate for SReplay: seeded with n, it
// continues with n-1 while n > 0. SReplay(PredRepeat, int64(3)) replays a
// captured body three times.
func PredRepeat(_ *Context, state any) (any, bool) {
	n, ok := state.(int64)
	if !ok || n <= 0 {
		return nil, false
	}
	return n - 1, true
}

// Enqueue appends u behind the work registered at (tvec, path).
func Enqueue(ctx *Context, tvec TimeVec, path Path, u Unit) (*Context, error) {
	return ctx.ScheduleUnit(tvec, path, u)
}

// EnqueueFront merges u ahead of the work registered at (tvec, path).
func EnqueueFront(ctx *Context, tvec TimeVec, path Path, u Unit) (*Context, error) {
	return ctx.ScheduleUnitFront(tvec, path, u)
}

// EnqueueIn appends u at delta steps from the executing coordinate.
func EnqueueIn(ctx *Context, delta TimeVec, path Path, u Unit) (*Context, error) {
	return ctx.ScheduleUnitIn(delta, path, u)
}

// EnqueueSeq merges a whole sequence behind the work at (tvec, path).
func EnqueueSeq(ctx *Context, tvec TimeVec, path Path, q *WorkQueue) (*Context, error) {
	return ctx.ScheduleUnit(tvec, path, SeqUnit(q))
}

// PushBackCurrent appends u at the back of the executing queue.
func PushBackCurrent(ctx *Context, u Unit) (*Context, error) {
	q, err := activeQueue(ctx)
	if err != nil {
		return nil, err
	}
	return ctx.withQueue(q.PushBack(u)), nil
}

// PushFrontCurrent pushes u to run next on the executing queue.
func PushFrontCurrent(ctx *Context, u Unit) (*Context, error) {
	q, err := activeQueue(ctx)
	if err != nil {
		return nil, err
	}
	return ctx.withQueue(q.PushFront(u)), nil
}

// Copy duplicates the remaining queue onto the coordinate produced by
// toCoord, at the current path. The current queue keeps draining.
func Copy(toCoord func(*Context) (TimeVec, error)) Func {
	return func(ctx *Context) (*Context, error) {
		q, err := activeQueue(ctx)
		if err != nil {
			return nil, err
		}
		tvec, err := toCoord(ctx)
		if err != nil {
			return nil, err
		}
		return ctx.ScheduleUnit(tvec, ctx.Exec.Path, SeqUnit(q.Bare()))
	}
}

// Delay moves the remaining queue onto the coordinate produced by toCoord:
// like Copy, but the current queue is cleared.
func Delay(toCoord func(*Context) (TimeVec, error)) Func {
	return func(ctx *Context) (*Context, error) {
		q, err := activeQueue(ctx)
		if err != nil {
			return nil, err
		}
		tvec, err := toCoord(ctx)
		if err != nil {
			return nil, err
		}
		next, err := ctx.ScheduleUnit(tvec, ctx.Exec.Path, SeqUnit(q.Bare()))
		if err != nil {
			return nil, err
		}
		return next.withQueue(q.Clear()), nil
	}
}

// In builds a toCoord that offsets the executing coordinate by delta, for
// use with Copy and Delay.
func In(delta TimeVec) func(*Context) (TimeVec, error) {
	return func(ctx *Context) (TimeVec, error) {
		return Combine(ctx.Exec.TimeVec, delta)
	}
}

// ExecAhead splices seq to run immediately ahead of the remaining queue.
func ExecAhead(seq *WorkQueue) Func {
	return func(ctx *Context) (*Context, error) {
		q, err := activeQueue(ctx)
		if err != nil {
			return nil, err
		}
		// splice ahead, keeping the current queue's metadata
		out := q.clone()
		items := make([]Unit, seq.Len()+q.Len())
		copy(items, seq.items)
		copy(items[seq.Len():], q.items)
		out.items = items
		return ctx.withQueue(out), nil
	}
}

// Mirror applies fn to the world-state node addressed by the current path,
// bypassing the queue. fn receives the current value (nil when absent) and
// the primary time.
func Mirror(fn func(value any, ptime int64) (any, error)) Func {
	return func(ctx *Context) (*Context, error) {
		if len(ctx.Exec.Path) == 0 {
			return nil, &Error{
				Code:    CodeInvalidEventTarget,
				Message: "mirror with no executing path",
				At:      ctx.Exec.TimeVec,
			}
		}
		pt, _ := ctx.currentPtime()
		return ctx.StateUpdate(ctx.Exec.Path, func(cur any) (any, error) {
			return fn(cur, pt)
		})
	}
}

// Do runs a nullary effect for its side effect only; the context passes
// through unchanged.
func Do(effect func()) Func {
	return func(ctx *Context) (*Context, error) {
		effect()
		return ctx, nil
	}
}
