// The flow subsystem: registration of continuous processes that are
// transparently resampled once per primary-time tick, piggybacked onto the
// discrete schedule at a reserved low-priority rank so flows always run
// after the ordinary work of their tick.

package kernel

import (
	"github.com/sirupsen/logrus"
)

// RankFlows is the reserved sub-priority for flow resampling entries. Any
// ordinary same-tick work sorts before it.
const RankFlows int64 = 1_000_000_000

// samplerKey is the reserved path segment the per-tick sampler entry lives
// under in the schedule.
const samplerKey = "ticktree.flows"

// Flow is one continuous process, sampled against the context once per
// tick. The sample's primary time is on the execution scratch
// (Exec.Ptime); the flow's registry path is Exec.Path.
type Flow func(*Context) (*Context, error)

// FiniteFlow is a bounded flow: each sample additionally receives the
// normalized progress in [0,1).
type FiniteFlow func(*Context, float64) (*Context, error)

// FlowNode is one registered flow: the sampling function, the coordinate
// at registration, and the residual queue captured at registration, which
// resumes when the flow ends.
type FlowNode struct {
	Flow  Flow
	Init  TimeVec
	Queue *WorkQueue
}

// FInfinite registers a flow with no end condition at the current path and
// schedules an immediate low-priority resample. The remainder of the
// executing queue moves into the flow node; it resumes when FEnd runs.
func FInfinite(flow Flow) Func {
	return func(ctx *Context) (*Context, error) {
		return registerFlow(ctx, flow)
	}
}

// FFinite registers a bounded flow: each sample sees progress
// (ptime - startPtime) / duration, and once progress reaches 1 the flow is
// deregistered and its captured queue resumes at the coordinate the flow
// ends at.
func FFinite(duration int64, flow FiniteFlow) Func {
	return func(ctx *Context) (*Context, error) {
		start := ctx.Exec.TimeVec.Ptime()
		return registerFlow(ctx, finiteSampler(start, duration, flow, nil))
	}
}

// FSampled is FFinite with extra sampling checkpoints: whenever toCoord
// yields a coordinate earlier than the flow's end, a sampler entry is
// scheduled there as well.
func FSampled(toCoord func(*Context) (TimeVec, error), duration int64, flow FiniteFlow) Func {
	return func(ctx *Context) (*Context, error) {
		start := ctx.Exec.TimeVec.Ptime()
		return registerFlow(ctx, finiteSampler(start, duration, flow, toCoord))
	}
}

// finiteSampler wraps a bounded flow into the plain Flow sampled per tick.
func finiteSampler(start, duration int64, flow FiniteFlow, toCoord func(*Context) (TimeVec, error)) Flow {
	return func(ctx *Context) (*Context, error) {
		pt, _ := ctx.currentPtime()
		progress := float64(pt-start) / float64(duration)
		if progress >= 1 {
			return FEnd(ctx, ctx.Exec.Path)
		}
		next, err := flow(ctx, progress)
		if err != nil {
			return nil, err
		}
		if toCoord != nil {
			extra, err := toCoord(next)
			if err != nil {
				return nil, err
			}
			if len(extra) > 0 && extra.Ptime() > pt && extra.Ptime() < start+duration {
				return scheduleSampler(next, extra.Ptime())
			}
		}
		return next, nil
	}
}

// registerFlow stores the flow node at the executing path, moves the
// residual queue into it, and makes sure a sampler runs this tick.
func registerFlow(ctx *Context, flow Flow) (*Context, error) {
	q, err := activeQueue(ctx)
	if err != nil {
		return nil, err
	}
	node := FlowNode{
		Flow:  flow,
		Init:  ctx.Exec.TimeVec.Clone(),
		Queue: q.Bare(),
	}
	out := ctx.clone()
	out.Flows = ctx.Flows.Assoc(ctx.Exec.Path, node)
	out.Exec.Queue = q.Clear()
	logrus.Debugf("[tick %07d] flow registered at path=%v", ctx.Exec.TimeVec.Ptime(), ctx.Exec.Path)
	return scheduleSampler(out, ctx.Exec.TimeVec.Ptime())
}

// FEnd deregisters the flow at path. Its residual queue, captured at
// registration, resumes re-anchored to the current primary time with the
// registration coordinate's sub-ranks.
func FEnd(ctx *Context, path Path) (*Context, error) {
	node, ok := ctx.Flows.Get(path)
	if !ok {
		return ctx, nil
	}
	out := ctx.clone()
	out.Flows = ctx.Flows.Dissoc(path)

	pt, _ := ctx.currentPtime()
	logrus.Debugf("[tick %07d] flow ended at path=%v", pt, path)

	if node.Queue.Empty() {
		return out, nil
	}
	anchorPt := pt
	if out.LastPtime != nil && anchorPt <= *out.LastPtime {
		// ended outside a drive; resume strictly after the last processed tick
		anchorPt = *out.LastPtime + 1
	}
	anchor := append(TimeVec{anchorPt}, node.Init[1:]...)
	return out.scheduleRaw(anchor, path, SeqUnit(node.Queue), false)
}

// FSample forces an immediate out-of-band sample of every flow registered
// at or under path, independent of the per-tick schedule.
func FSample(ctx *Context, path Path) (*Context, error) {
	leaf, sub := ctx.Flows.At(path)
	if leaf != nil {
		return sampleOne(ctx, path, *leaf)
	}
	if sub == nil {
		return ctx, nil
	}
	var err error
	serr := sub.Walk(func(rel Path, node FlowNode) error {
		full := append(path.Clone(), rel...)
		ctx, err = sampleOne(ctx, full, node)
		return err
	})
	if serr != nil {
		return nil, serr
	}
	return ctx, nil
}

// FSampleAll samples every registered flow immediately.
func FSampleAll(ctx *Context) (*Context, error) {
	return FSample(ctx, nil)
}

// sampleOne runs one flow with the execution scratch pointed at it, then
// restores the caller's scratch.
func sampleOne(ctx *Context, path Path, node FlowNode) (*Context, error) {
	pt, _ := ctx.currentPtime()
	saved := ctx.Exec

	run := ctx.clone()
	run.Exec.Path = path
	run.Exec.Ptime = &pt

	next, err := node.Flow(run)
	if err != nil {
		return nil, userFault(err, saved.TimeVec, path)
	}
	out := next.clone()
	out.Exec = saved
	out.Exec.Queue = next.Exec.Queue
	return out, nil
}

// scheduleSampler makes sure a resampling entry exists at
// (ptime, RankFlows). The entry is engine-generated, so it may target the
// ptime currently being drained.
func scheduleSampler(ctx *Context, ptime int64) (*Context, error) {
	tvec := TimeVec{ptime, RankFlows}
	if tree, ok := ctx.Schedule.Get(tvec); ok {
		if _, exists := tree.Get(Path{samplerKey}); exists {
			return ctx, nil
		}
	}
	return ctx.scheduleRaw(tvec, Path{samplerKey}, FuncUnit(sampleTick), false)
}

// sampleTick is the per-tick sampler unit: it samples every registered
// flow in deterministic path order, then reschedules itself for the next
// tick while any flow remains.
func sampleTick(ctx *Context) (*Context, error) {
	pt := ctx.Exec.TimeVec.Ptime()

	next, err := FSampleAll(ctx)
	if err != nil {
		return nil, err
	}
	if next.Flows.Empty() {
		return next, nil
	}
	return scheduleSampler(next, pt+1)
}
