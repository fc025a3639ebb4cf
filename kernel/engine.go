// The working-queue execution engine: drives one WorkQueue to completion,
// recursing into nested sequences, catching and recovering from unit
// failures through the queue's on-error hook.

package kernel

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// doneFn is the continuation invoked once a queue drains to empty. Nesting
// is realized by passing a continuation that restores the outer queue and
// keeps draining it: each recursive drainQueue call is the call frame.
type doneFn func(*Context) (*Context, error)

// drainQueue pops and runs units off q until it empties, then hands the
// resulting context to done.
//
// A sequence unit is recursed into; its continuation restores the outer
// queue into the execution scratch and resumes it. A value or function unit
// goes to the handler, which may push new work: the loop re-reads the
// active queue from the handler's result before continuing.
func drainQueue(h Handler, ctx *Context, q *WorkQueue, done doneFn) (*Context, error) {
	for {
		if q.Empty() {
			return done(ctx.withQueue(q))
		}
		u, rest := q.PopFront()

		if u.Kind == UnitSeq {
			outer := rest
			inner := u.Seq
			return drainQueue(h, ctx.withQueue(inner), inner, func(c *Context) (*Context, error) {
				restored := c.withQueue(outer)
				return drainQueue(h, restored, outer, done)
			})
		}

		next, err := invokeUnit(h, ctx.withQueue(rest), u)
		if err != nil {
			next, err = recoverFault(h, ctx, rest, err)
			if err != nil {
				return nil, err
			}
		}
		ctx = next
		q = next.Exec.Queue
	}
}

// invokeUnit runs one value/function unit through the handler, converting
// panics raised inside user code into user faults.
func invokeUnit(h Handler, ctx *Context, u Unit) (next *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = userFault(fmt.Errorf("panic: %v", r), ctx.Exec.TimeVec, ctx.Exec.Path)
			next = nil
		}
	}()
	next, err = h(ctx, u)
	if err != nil {
		err = userFault(err, ctx.Exec.TimeVec, ctx.Exec.Path)
	}
	return next, err
}

// recoverFault routes a caught failure through the queue's on-error hook.
// Without a hook the error is re-raised, attaching the best last-known-good
// context (current context with the execution scratch cleared) when none is
// attached yet.
//
// ctx is the context from before the faulting unit ran; rest is the queue
// remainder behind that unit, which is where draining resumes on recovery.
func recoverFault(h Handler, ctx *Context, rest *WorkQueue, cause error) (*Context, error) {
	ke := userFault(cause, ctx.Exec.TimeVec, ctx.Exec.Path)

	// Only user faults are locally recoverable. Kernel invariant
	// violations (time regression and friends) always propagate.
	hook, ok := rest.OnError()
	if !ok || ke.Code != CodeUserFault {
		if ke.Snapshot == nil {
			ke.Snapshot = ctx.stripHandler().clearExec()
		}
		return nil, ke
	}

	logrus.Debugf("fault at path=%v routed to on-error hook: %v", ctx.Exec.Path, ke)

	inner := ke.Snapshot
	if inner == nil {
		inner = ctx.stripHandler().clearExec()
	}
	faultCtx := ctx.withQueue(rest).withFault(&Fault{Err: ke, Inner: inner})
	next, err := h(faultCtx, hook)
	if err != nil {
		// A hook that faults itself is not recoverable.
		hke := userFault(err, ctx.Exec.TimeVec, ctx.Exec.Path)
		if hke.Snapshot == nil {
			hke.Snapshot = ctx.stripHandler().clearExec()
		}
		return nil, hke
	}
	return next.withFault(nil), nil
}

// runLeaf executes one leaf extracted from a coordinate's event tree. A
// bare sequence is handed straight to the engine; a single value or
// function first gets a trivial one-item working queue so the handler (and
// anything it pushes) drains through the same machinery.
func runLeaf(h Handler, ctx *Context, tvec TimeVec, path Path, u Unit) (*Context, error) {
	ctx = ctx.withExecAt(tvec.Clone(), path.Clone())

	q := u.Seq
	if u.Kind != UnitSeq {
		q = NewQueue(u)
	}

	return drainQueue(h, ctx.withQueue(q), q, func(c *Context) (*Context, error) {
		return c.clearExecUnit(), nil
	})
}
