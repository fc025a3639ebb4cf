// Time-advancement drivers: the loops that iterate the schedule coordinate
// by coordinate and ptime by ptime. JumpUntil is the primary state machine;
// Jump, JumpTo and JumpToEnd are stop predicates over it, and History
// exposes the same loop as a pull iterator yielding one context per tick.

package kernel

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// StopPred decides whether a driver should stop before draining the next
// ptime. last is nil before any tick of this call has completed; next is
// the primary time about to be drained. Returning stop=true ends the drive
// with the returned context (later work stays queued for a future call).
type StopPred func(ctx *Context, last *int64, next int64) (*Context, bool)

// Options configures a driver call. Zero value means: units are applied
// directly (ApplyUnit), both per-tick hooks are the identity.
type Options struct {
	// Handler interprets each popped unit. Defaults to ApplyUnit.
	Handler Handler
	// BeforePtime runs once per tick, before any unit of that tick.
	BeforePtime func(*Context, int64) (*Context, error)
	// AfterPtime runs once per tick, after all units of that tick and
	// before the stop predicate is consulted.
	AfterPtime func(*Context) (*Context, error)
}

func (o *Options) normalized() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Handler == nil {
		out.Handler = ApplyUnit
	}
	if out.BeforePtime == nil {
		out.BeforePtime = func(c *Context, _ int64) (*Context, error) { return c, nil }
	}
	if out.AfterPtime == nil {
		out.AfterPtime = func(c *Context) (*Context, error) { return c, nil }
	}
	return &out
}

// runTick drains every leaf scheduled at the current minimum primary time,
// including work inserted mid-tick at that same ptime, then runs the
// after-ptime hook and records the tick as processed. The ambient handler
// must already be installed on ctx.
func runTick(ctx *Context, opts *Options) (*Context, error) {
	tvec, _, ok := ctx.Schedule.Min()
	if !ok {
		return ctx, nil
	}
	ptime := tvec.Ptime()
	logrus.Debugf("[tick %07d] draining", ptime)

	hooked, err := opts.BeforePtime(ctx.withPtime(ptime), ptime)
	if err != nil {
		return nil, driverFault(err, ctx, TimeVec{ptime})
	}
	ctx = hooked

	for {
		tvec, tree, ok := ctx.Schedule.Min()
		if !ok || tvec.Ptime() > ptime {
			break
		}
		if tvec.Ptime() < ptime {
			return nil, &Error{
				Code:     CodeTimeRegression,
				Message:  fmt.Sprintf("work appeared at ptime %d while draining ptime %d", tvec.Ptime(), ptime),
				At:       tvec,
				Snapshot: ctx.stripHandler().clearExec(),
			}
		}

		u, path, rest, pulled := tree.PullLeaf()
		if !pulled {
			// empty tree left behind, drop the entry
			ctx = ctx.withSchedule(ctx.Schedule.drop(tvec))
			continue
		}
		if rest.Empty() {
			ctx = ctx.withSchedule(ctx.Schedule.drop(tvec))
		} else {
			ctx = ctx.withSchedule(ctx.Schedule.put(tvec, rest))
		}

		ctx, err = runLeaf(ctx.handler, ctx, tvec, path, u)
		if err != nil {
			return nil, err
		}
	}

	// the tick-level ptime stays visible to the after-ptime hook; the
	// whole scratch is cleared once the tick is recorded
	hooked, err = opts.AfterPtime(ctx)
	if err != nil {
		return nil, driverFault(err, ctx, TimeVec{ptime})
	}
	return hooked.clearExec().withLastPtime(ptime), nil
}

// driverFault wraps a hook failure, attaching a postmortem snapshot. The
// snapshot carries no ambient handler: handlers live only for the duration
// of a driver call.
func driverFault(err error, ctx *Context, at TimeVec) *Error {
	ke := userFault(err, at, nil)
	if ke.Snapshot == nil && ctx != nil {
		ke.Snapshot = ctx.stripHandler().clearExec()
	}
	return ke
}

// JumpUntil advances simulated time tick by tick until the schedule is
// exhausted or pred stops the drive. pred is consulted before anything runs
// (enabling zero-step queries) and again at every ptime boundary.
func JumpUntil(ctx *Context, pred StopPred, opts *Options) (*Context, error) {
	opts = opts.normalized()

	tvec, _, ok := ctx.Schedule.Min()
	if !ok {
		return ctx, nil
	}
	first := tvec.Ptime()
	if ctx.LastPtime != nil && first <= *ctx.LastPtime {
		return nil, &Error{
			Code:     CodeTimeRegression,
			Message:  fmt.Sprintf("schedule minimum ptime %d is not after last processed ptime %d", first, *ctx.LastPtime),
			At:       tvec,
			Snapshot: ctx.clearExec(),
		}
	}
	if out, stop := pred(ctx, nil, first); stop {
		return out.stripHandler(), nil
	}

	ctx = ctx.withHandler(opts.Handler)
	for {
		next, err := runTick(ctx, opts)
		if err != nil {
			return nil, err
		}
		ctx = next

		tvec, _, ok := ctx.Schedule.Min()
		if !ok {
			break
		}
		cur := *ctx.LastPtime
		if tvec.Ptime() <= cur {
			return nil, &Error{
				Code:     CodeTimeRegression,
				Message:  fmt.Sprintf("schedule minimum ptime %d did not advance past %d", tvec.Ptime(), cur),
				At:       tvec,
				Snapshot: ctx.stripHandler().clearExec(),
			}
		}
		if out, stop := pred(ctx, &cur, tvec.Ptime()); stop {
			return out.stripHandler(), nil
		}
	}
	return ctx.stripHandler(), nil
}

// Jump runs exactly one full tick (or zero if nothing is scheduled).
func Jump(ctx *Context, opts *Options) (*Context, error) {
	return JumpUntil(ctx, func(c *Context, last *int64, _ int64) (*Context, bool) {
		return c, last != nil
	}, opts)
}

// JumpTo advances through every tick with primary time <= target.
func JumpTo(ctx *Context, target int64, opts *Options) (*Context, error) {
	return JumpUntil(ctx, func(c *Context, _ *int64, next int64) (*Context, bool) {
		return c, next > target
	}, opts)
}

// JumpToEnd drains the schedule completely.
func JumpToEnd(ctx *Context, opts *Options) (*Context, error) {
	return JumpUntil(ctx, func(c *Context, _ *int64, _ int64) (*Context, bool) {
		return c, false
	}, opts)
}

// History iterates the same state machine as JumpUntil but yields one
// context snapshot per completed ptime, pulled lazily: no tick runs until
// Next is called, and abandoning the iterator computes nothing further.
type History struct {
	ctx     *Context
	opts    *Options
	started bool
	failed  bool
}

// NewHistory returns an iterator over ctx's future, one element per tick.
// The final element (if the schedule drains) is the fully drained context.
func NewHistory(ctx *Context, opts *Options) *History {
	return &History{ctx: ctx, opts: opts.normalized()}
}

// Next drains one full tick and returns the context right after its
// after-ptime hook ran. ok is false once the schedule is exhausted.
func (h *History) Next() (*Context, bool, error) {
	if h.failed {
		return nil, false, nil
	}
	if !h.started {
		h.started = true
		if tvec, _, ok := h.ctx.Schedule.Min(); ok && h.ctx.LastPtime != nil && tvec.Ptime() <= *h.ctx.LastPtime {
			h.failed = true
			return nil, false, &Error{
				Code:     CodeTimeRegression,
				Message:  fmt.Sprintf("schedule minimum ptime %d is not after last processed ptime %d", tvec.Ptime(), *h.ctx.LastPtime),
				At:       tvec,
				Snapshot: h.ctx.clearExec(),
			}
		}
	}
	if h.ctx.Schedule.Empty() {
		return nil, false, nil
	}
	next, err := runTick(h.ctx.withHandler(h.opts.Handler), h.opts)
	if err != nil {
		h.failed = true
		return nil, false, err
	}
	h.ctx = next.stripHandler()
	return h.ctx, true, nil
}
