// Implements Context, the full simulation snapshot: the schedule of pending
// work, the flow registry, the world state, and the ephemeral execution
// scratch. Contexts are immutable; every kernel operation returns a new
// Context built by structural update.

package kernel

import "fmt"

// Fault records a failure caught while draining a queue, for consumption by
// the queue's on-error hook.
type Fault struct {
	Err   error    // the error raised by the faulting unit
	Inner *Context // last-good context at the point of failure, scratch stripped
}

// Execution is the ephemeral scratch record describing what is running
// right now. Queue is non-nil exactly while a unit or sequence is actively
// being drained; it is cleared together with Path and TimeVec once the
// sequence empties.
type Execution struct {
	Path    Path       // current logical location in the world state
	TimeVec TimeVec    // coordinate of the unit being run
	Ptime   *int64     // primary time during a sub-step (e.g. a flow sample)
	Queue   *WorkQueue // the working queue, present only mid-execution
	Fault   *Fault     // set only while an on-error hook runs
}

// Context is the top-level immutable snapshot.
type Context struct {
	Schedule  *Schedule
	Flows     *PathTree[FlowNode]
	State     *PathTree[any]
	Exec      Execution
	LastPtime *int64 // primary time of the last fully processed tick

	// handler is ambient: installed for the duration of a driver call,
	// stripped before the driver returns.
	handler Handler
}

// NewContext returns an empty context: nothing scheduled, no flows, empty
// world state.
func NewContext() *Context {
	return &Context{
		Schedule: NewSchedule(),
		Flows:    NewPathTree[FlowNode](),
		State:    NewPathTree[any](),
	}
}

// clone copies the context shell. Callers replace fields on the copy.
func (c *Context) clone() *Context {
	out := *c
	return &out
}

func (c *Context) withSchedule(s *Schedule) *Context {
	out := c.clone()
	out.Schedule = s
	return out
}

func (c *Context) withQueue(q *WorkQueue) *Context {
	out := c.clone()
	out.Exec.Queue = q
	return out
}

func (c *Context) withExecAt(tvec TimeVec, path Path) *Context {
	out := c.clone()
	out.Exec.TimeVec = tvec
	out.Exec.Path = path
	return out
}

func (c *Context) withPtime(pt int64) *Context {
	out := c.clone()
	out.Exec.Ptime = &pt
	return out
}

func (c *Context) withFault(f *Fault) *Context {
	out := c.clone()
	out.Exec.Fault = f
	return out
}

// clearExec strips the whole execution scratch.
func (c *Context) clearExec() *Context {
	out := c.clone()
	out.Exec = Execution{}
	return out
}

// clearExecUnit strips the per-unit scratch (queue, path, coordinate) while
// keeping the tick-level ptime.
func (c *Context) clearExecUnit() *Context {
	out := c.clone()
	out.Exec.Queue = nil
	out.Exec.Path = nil
	out.Exec.TimeVec = nil
	out.Exec.Fault = nil
	return out
}

func (c *Context) withLastPtime(pt int64) *Context {
	out := c.clone()
	out.LastPtime = &pt
	return out
}

func (c *Context) withHandler(h Handler) *Context {
	out := c.clone()
	out.handler = h
	return out
}

// stripHandler removes the ambient handler; drivers call this on every exit
// path so the handler never persists across driver calls.
func (c *Context) stripHandler() *Context {
	if c.handler == nil {
		return c
	}
	out := c.clone()
	out.handler = nil
	return out
}

// currentPtime returns the primary time the context is logically at:
// the sub-step ptime when one is set, else the coordinate being executed,
// else the last completed tick.
func (c *Context) currentPtime() (int64, bool) {
	switch {
	case c.Exec.Ptime != nil:
		return *c.Exec.Ptime, true
	case len(c.Exec.TimeVec) > 0:
		return c.Exec.TimeVec.Ptime(), true
	case c.LastPtime != nil:
		return *c.LastPtime, true
	}
	return 0, false
}

// ScheduleUnit registers u at (tvec, path) through the normal add path.
// The coordinate's primary time must be strictly greater than the time the
// context is at; anything else would let simulated time move backward.
func (c *Context) ScheduleUnit(tvec TimeVec, path Path, u Unit) (*Context, error) {
	return c.scheduleChecked(tvec, path, u, false)
}

// ScheduleUnitFront is ScheduleUnit merging ahead of (not behind) whatever
// sequence is already registered at the target.
func (c *Context) ScheduleUnitFront(tvec TimeVec, path Path, u Unit) (*Context, error) {
	return c.scheduleChecked(tvec, path, u, true)
}

func (c *Context) scheduleChecked(tvec TimeVec, path Path, u Unit, front bool) (*Context, error) {
	if len(tvec) == 0 {
		return nil, &Error{Code: CodeInvalidEventTarget, Message: "empty time coordinate"}
	}
	if now, ok := c.currentPtime(); ok && tvec.Ptime() <= now {
		return nil, &Error{
			Code:    CodeTimeRegression,
			Message: fmt.Sprintf("cannot schedule at ptime %d, current ptime is %d", tvec.Ptime(), now),
			At:      tvec,
			Path:    path,
		}
	}
	return c.scheduleRaw(tvec, path, u, front)
}

// ScheduleUnitIn registers u at delta steps from the coordinate currently
// being executed.
func (c *Context) ScheduleUnitIn(delta TimeVec, path Path, u Unit) (*Context, error) {
	base := c.Exec.TimeVec
	if len(base) == 0 && c.LastPtime != nil {
		base = TimeVec{*c.LastPtime}
	}
	tvec, err := Combine(base, delta)
	if err != nil {
		return nil, err
	}
	return c.ScheduleUnit(tvec, path, u)
}

// scheduleRaw inserts without the regression check. Engine-internal callers
// (flow resampling, flow-end resumption, the drain loop itself) may insert
// work inside the ptime currently being drained.
func (c *Context) scheduleRaw(tvec TimeVec, path Path, u Unit, front bool) (*Context, error) {
	s, err := c.Schedule.merge(tvec, path, u, front)
	if err != nil {
		return nil, err
	}
	return c.withSchedule(s), nil
}

// StateGet reads the world-state leaf at path.
func (c *Context) StateGet(path Path) (any, bool) {
	return c.State.Get(path)
}

// StateSet writes v at path in the world state.
func (c *Context) StateSet(path Path, v any) *Context {
	out := c.clone()
	out.State = c.State.Assoc(path, v)
	return out
}

// StateUpdate rewrites the leaf at path through fn. fn receives the current
// value (nil when absent).
func (c *Context) StateUpdate(path Path, fn func(any) (any, error)) (*Context, error) {
	cur, _ := c.State.Get(path)
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	return c.StateSet(path, next), nil
}
