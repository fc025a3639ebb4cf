package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_MinFollowsCoordinateOrder(t *testing.T) {
	s := NewSchedule()
	var err error
	for _, tvec := range []TimeVec{{2}, {1, 5}, {1}, {1, 0, 3}} {
		s, err = s.merge(tvec, Path{"p"}, ValueUnit("x"), false)
		require.NoError(t, err)
	}

	var order []string
	for !s.Empty() {
		tvec, _, _ := s.Min()
		order = append(order, tvec.String())
		s = s.drop(tvec)
	}
	assert.Equal(t, []string{"[1]", "[1 0 3]", "[1 5]", "[2]"}, order)
}

func TestSchedule_MergeSameCoordinate_AppendsToSequence(t *testing.T) {
	s := NewSchedule()
	s, err := s.merge(TimeVec{1}, Path{"p"}, SeqUnit(NewQueue(ValueUnit("a"))), false)
	require.NoError(t, err)
	s, err = s.merge(TimeVec{1}, Path{"p"}, ValueUnit("b"), false)
	require.NoError(t, err)

	require.Equal(t, 1, s.Len())
	tree, ok := s.Get(TimeVec{1})
	require.True(t, ok)
	u, _ := tree.Get(Path{"p"})
	require.Equal(t, UnitSeq, u.Kind)
	assert.Equal(t, 2, u.Seq.Len())
}

func TestSchedule_MergeFront_RunsFirst(t *testing.T) {
	s := NewSchedule()
	s, err := s.merge(TimeVec{1}, Path{"p"}, SeqUnit(NewQueue(ValueUnit("a"))), false)
	require.NoError(t, err)
	s, err = s.merge(TimeVec{1}, Path{"p"}, ValueUnit("b"), true)
	require.NoError(t, err)

	tree, _ := s.Get(TimeVec{1})
	u, _ := tree.Get(Path{"p"})
	front, _ := u.Seq.PeekFront()
	assert.Equal(t, "b", front.Value)
}

func TestSchedule_MergeOntoTerminalLeaf_Fails(t *testing.T) {
	s := NewSchedule()
	s, err := s.merge(TimeVec{1}, Path{"p"}, ValueUnit("terminal"), false)
	require.NoError(t, err)

	_, err = s.merge(TimeVec{1}, Path{"p"}, ValueUnit("more"), false)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidEventTarget))

	// deeper than a terminal leaf is just as invalid
	_, err = s.merge(TimeVec{1}, Path{"p", "deeper"}, ValueUnit("more"), false)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidEventTarget))
}

func TestSchedule_IndependentPathsShareCoordinate(t *testing.T) {
	s := NewSchedule()
	s, err := s.merge(TimeVec{1}, Path{"a"}, ValueUnit(1), false)
	require.NoError(t, err)
	s, err = s.merge(TimeVec{1}, Path{"b", "c"}, ValueUnit(2), false)
	require.NoError(t, err)

	tree, _ := s.Get(TimeVec{1})
	assert.Equal(t, 2, tree.Len())
}

func TestSchedule_CopyOnWrite(t *testing.T) {
	s1 := NewSchedule()
	s1, err := s1.merge(TimeVec{1}, Path{"p"}, ValueUnit("x"), false)
	require.NoError(t, err)

	s2 := s1.drop(TimeVec{1})
	assert.Equal(t, 1, s1.Len(), "drop mutated the original")
	assert.True(t, s2.Empty())
}
