package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFinite_SamplesEveryTickThenResumes(t *testing.T) {
	var samples []string
	var trace []string

	flow := func(ctx *Context, progress float64) (*Context, error) {
		pt, _ := ctx.currentPtime()
		samples = append(samples, fmt.Sprintf("%d:%.1f", pt, progress))
		return ctx, nil
	}

	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{5}, Path{"tank"}, SeqUnit(NewQueue(
		FuncUnit(FFinite(10, flow)),
		tracedAt(&trace, "resumed"),
	)))

	out, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)

	// one sample per tick over [5, 15), then the residual queue at 15
	require.Len(t, samples, 10)
	assert.Equal(t, "5:0.0", samples[0])
	assert.Equal(t, "14:0.9", samples[9])
	assert.Equal(t, []string{"resumed@15"}, trace)
	assert.True(t, out.Flows.Empty())
	require.NotNil(t, out.LastPtime)
	assert.Equal(t, int64(15), *out.LastPtime)
}

func TestFInfinite_RunsUntilExplicitEnd(t *testing.T) {
	var samples []int64

	flow := func(ctx *Context) (*Context, error) {
		pt, _ := ctx.currentPtime()
		samples = append(samples, pt)
		return ctx, nil
	}

	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{5}, Path{"pump"}, FuncUnit(FInfinite(flow)))
	ctx = mustSchedule(t, ctx, TimeVec{8}, Path{"ctl"}, FuncUnit(func(c *Context) (*Context, error) {
		return FEnd(c, Path{"pump"})
	}))

	out, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)

	// end runs before the tick's sampler, so tick 8 is not sampled
	assert.Equal(t, []int64{5, 6, 7}, samples)
	assert.True(t, out.Flows.Empty())
}

func TestFlows_SampleAfterSameTickDiscreteWork(t *testing.T) {
	var trace []string

	flow := func(ctx *Context) (*Context, error) {
		pt, _ := ctx.currentPtime()
		trace = append(trace, fmt.Sprintf("flow@%d", pt))
		return ctx, nil
	}

	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{5}, Path{"pump"}, FuncUnit(FInfinite(flow)))
	ctx = mustSchedule(t, ctx, TimeVec{5, 7}, Path{"work"}, tracedAt(&trace, "work"))
	ctx = mustSchedule(t, ctx, TimeVec{6, 3}, Path{"work"}, tracedAt(&trace, "work"))
	ctx = mustSchedule(t, ctx, TimeVec{6, 500}, Path{"stop"}, FuncUnit(func(c *Context) (*Context, error) {
		return FEnd(c, Path{"pump"})
	}))

	_, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"work@5", "flow@5", "work@6"}, trace)
}

func TestFEnd_ResumeKeepsRegistrationSubRanks(t *testing.T) {
	var resumedAt TimeVec

	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{5, 2}, Path{"pump"}, SeqUnit(NewQueue(
		FuncUnit(FInfinite(func(c *Context) (*Context, error) { return c, nil })),
		FuncUnit(func(c *Context) (*Context, error) {
			resumedAt = c.Exec.TimeVec.Clone()
			return c, nil
		}),
	)))
	ctx = mustSchedule(t, ctx, TimeVec{9}, Path{"ctl"}, FuncUnit(func(c *Context) (*Context, error) {
		return FEnd(c, Path{"pump"})
	}))

	_, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, TimeVec{9, 2}, resumedAt)
}

func TestFEnd_BetweenDrives_ResumesResidualQueue(t *testing.T) {
	var trace []string
	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{1}, Path{"pump"}, SeqUnit(NewQueue(
		FuncUnit(FInfinite(func(c *Context) (*Context, error) { return c, nil })),
		tracedAt(&trace, "resumed"),
	)))

	out, err := Jump(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, trace, "residual queue must stay parked while the flow runs")

	// ending the flow outside a drive must not anchor the residual queue
	// at an already-processed ptime
	out, err = FEnd(out, Path{"pump"})
	require.NoError(t, err)

	out, err = JumpToEnd(out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"resumed@2"}, trace)
	assert.True(t, out.Schedule.Empty())
}

func TestFEnd_UnknownPathIsNoop(t *testing.T) {
	ctx := NewContext()
	out, err := FEnd(ctx, Path{"nope"})
	require.NoError(t, err)
	assert.Same(t, ctx, out)
}

func TestFSample_OutOfBand(t *testing.T) {
	var samples []int64

	flow := func(ctx *Context) (*Context, error) {
		pt, _ := ctx.currentPtime()
		samples = append(samples, pt)
		return ctx, nil
	}

	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{3}, Path{"plant", "pump"}, FuncUnit(FInfinite(flow)))

	out, err := Jump(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, samples)

	// forced sample between drives, addressed by subtree prefix
	out, err = FSample(out, Path{"plant"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 3}, samples)
	_, ok := out.Flows.Get(Path{"plant", "pump"})
	assert.True(t, ok)
}

func TestFSampled_CheckpointCoordinatesDeduplicate(t *testing.T) {
	var samples []int64

	flow := func(ctx *Context, _ float64) (*Context, error) {
		pt, _ := ctx.currentPtime()
		samples = append(samples, pt)
		return ctx, nil
	}
	toCoord := func(ctx *Context) (TimeVec, error) {
		pt, _ := ctx.currentPtime()
		return TimeVec{pt + 1}, nil
	}

	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{2}, Path{"ramp"}, FuncUnit(FSampled(toCoord, 4, flow)))

	_, err := JumpToEnd(ctx, nil)
	require.NoError(t, err)
	// checkpoint coordinates collapse into the per-tick sampler slots
	assert.Equal(t, []int64{2, 3, 4, 5}, samples)
}

func TestFlowError_SurfacesAsUserFault(t *testing.T) {
	ctx := NewContext()
	ctx = mustSchedule(t, ctx, TimeVec{1}, Path{"bad"}, FuncUnit(FInfinite(
		func(*Context) (*Context, error) { return nil, fmt.Errorf("sensor offline") },
	)))

	_, err := JumpToEnd(ctx, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeUserFault))
}
