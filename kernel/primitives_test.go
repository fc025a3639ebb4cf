package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_FalsePred_CancelsRemainder(t *testing.T) {
	var trace []string
	q := NewQueue(
		record(&trace, "a"),
		FuncUnit(Breaker(func(*Context) bool { return false })),
		record(&trace, "never"),
	)

	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, trace)
}

func TestBreaker_TruePred_PassesThrough(t *testing.T) {
	var trace []string
	q := NewQueue(
		FuncUnit(Breaker(func(*Context) bool { return true })),
		record(&trace, "runs"),
	)

	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.NoError(t, err)
	assert.Equal(t, []string{"runs"}, trace)
}

func TestCaptureReplay_LoopsUntilPredFlips(t *testing.T) {
	// GIVEN a loop whose body increments a counter and whose replay pred
	// holds while the counter is below 3
	runs := 0
	body := FuncUnit(func(ctx *Context) (*Context, error) {
		runs++
		return ctx, nil
	})
	depthAtExit := -1
	probe := FuncUnit(func(ctx *Context) (*Context, error) {
		depthAtExit = ctx.Exec.Queue.captureDepth()
		return ctx, nil
	})
	q := NewQueue(
		FuncUnit(Capture()),
		body,
		FuncUnit(Replay(func(*Context) bool { return runs < 3 })),
		probe,
	)

	// WHEN the queue drains
	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.NoError(t, err)

	// THEN the body replayed until the pred flipped and the stacks are
	// back at their prior depth
	assert.Equal(t, 3, runs)
	assert.Equal(t, 0, depthAtExit)
}

func TestSReplay_PredRepeat_BoundedLoop(t *testing.T) {
	runs := 0
	body := FuncUnit(func(ctx *Context) (*Context, error) {
		runs++
		return ctx, nil
	})
	q := NewQueue(
		FuncUnit(Capture()),
		body,
		FuncUnit(SReplay(PredRepeat, int64(2))),
	)

	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.NoError(t, err)
	// initial pass plus one replay per seed count
	assert.Equal(t, 3, runs)
}

func TestSReplay_StateThreadsThroughIterations(t *testing.T) {
	var seen []int64
	q := NewQueue(
		FuncUnit(Capture()),
		FuncUnit(SReplay(func(_ *Context, state any) (any, bool) {
			n := state.(int64)
			seen = append(seen, n)
			if n >= 3 {
				return nil, false
			}
			return n + 1, true
		}, int64(1))),
	)

	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, seen)
}

func TestReplay_WithoutCapture_Fails(t *testing.T) {
	q := NewQueue(FuncUnit(Replay(func(*Context) bool { return true })))

	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeEmptyQueueAccess))
}

func TestPrimitives_NoActiveQueue_EmptyQueueAccess(t *testing.T) {
	ctx := NewContext()
	_, err := Capture()(ctx)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeEmptyQueueAccess))

	_, err = PushBackCurrent(ctx, ValueUnit("x"))
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeEmptyQueueAccess))
}

func TestDelay_MovesRemainderToLaterCoordinate(t *testing.T) {
	var trace []string
	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{1}, Path{"p"}, SeqUnit(NewQueue(
		tracedAt(&trace, "now"),
		FuncUnit(Delay(In(TimeVec{2}))),
		tracedAt(&trace, "later"),
	)))

	out, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"now@1", "later@3"}, trace)
	assert.Equal(t, int64(3), *out.LastPtime)
}

func TestCopy_DuplicatesRemainder(t *testing.T) {
	var trace []string
	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{1}, Path{"p"}, SeqUnit(NewQueue(
		FuncUnit(Copy(In(TimeVec{1}))),
		tracedAt(&trace, "tail"),
	)))

	_, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)
	// the remainder runs now and again one step later
	assert.Equal(t, []string{"tail@1", "tail@2"}, trace)
}

func TestExecAhead_SplicesBeforeRemainder(t *testing.T) {
	var trace []string
	spliced := NewQueue(record(&trace, "s1"), record(&trace, "s2"))
	q := NewQueue(
		FuncUnit(ExecAhead(spliced)),
		record(&trace, "tail"),
	)

	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "tail"}, trace)
}

func TestMirror_UpdatesStateAtCurrentPath(t *testing.T) {
	ctx := NewContext().StateSet(Path{"counter"}, int64(10))
	ctx = mustSchedule(t, ctx, TimeVec{4}, Path{"counter"}, FuncUnit(Mirror(
		func(v any, pt int64) (any, error) {
			return v.(int64) + pt, nil
		})))

	out, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)
	v, ok := out.StateGet(Path{"counter"})
	require.True(t, ok)
	assert.Equal(t, int64(14), v)
}

func TestMirror_NoExecutingPath_Fails(t *testing.T) {
	_, err := Mirror(func(v any, _ int64) (any, error) { return v, nil })(NewContext())
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidEventTarget))
}

func TestDo_EffectOnly(t *testing.T) {
	ran := false
	q := NewQueue(FuncUnit(Do(func() { ran = true })))

	_, err := runLeaf(ApplyUnit, NewContext(), TimeVec{1}, Path{"p"}, SeqUnit(q))
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestEnqueueIn_RelativeToExecutingCoordinate(t *testing.T) {
	var trace []string
	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{2}, Path{"p"}, FuncUnit(func(c *Context) (*Context, error) {
		return EnqueueIn(c, TimeVec{3}, Path{"q"}, tracedAt(&trace, "later"))
	}))

	_, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"later@5"}, trace)
}

func TestEnqueueFront_RunsBeforeResidentWork(t *testing.T) {
	var trace []string
	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{1}, Path{"p"}, SeqUnit(NewQueue(tracedAt(&trace, "resident"))))
	ctx, err := EnqueueFront(ctx, TimeVec{1}, Path{"p"}, tracedAt(&trace, "jumped"))
	require.NoError(t, err)

	_, err = JumpToEnd(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"jumped@1", "resident@1"}, trace)
}
