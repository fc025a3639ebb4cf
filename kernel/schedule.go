// Implements the Schedule, the ordered map from time coordinate to event
// tree. Backed by a sorted slice with binary search; ordering is the
// lexicographic TimeVec order, so min-lookup is index zero.
//
// Like every other kernel container the schedule is copy-on-write: updates
// return a new Schedule sharing unchanged entries.

package kernel

import (
	"errors"
	"sort"
	"strings"
)

type scheduleEntry struct {
	tvec TimeVec
	tree *EventTree
}

// Schedule maps time coordinates to the event trees pending at them.
type Schedule struct {
	entries []scheduleEntry
}

// NewSchedule returns an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{}
}

// Len returns the number of distinct scheduled coordinates. Nil-safe.
func (s *Schedule) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Empty reports whether nothing is scheduled.
func (s *Schedule) Empty() bool {
	return s.Len() == 0
}

// Min returns the earliest scheduled coordinate and its event tree.
func (s *Schedule) Min() (TimeVec, *EventTree, bool) {
	if s.Empty() {
		return nil, nil, false
	}
	e := s.entries[0]
	return e.tvec, e.tree, true
}

// search returns the insertion index for tvec and whether an entry with
// exactly that coordinate exists.
func (s *Schedule) search(tvec TimeVec) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].tvec.Compare(tvec) >= 0
	})
	return i, i < len(s.entries) && s.entries[i].tvec.Equal(tvec)
}

// Get returns the event tree at exactly tvec.
func (s *Schedule) Get(tvec TimeVec) (*EventTree, bool) {
	if s == nil {
		return nil, false
	}
	i, found := s.search(tvec)
	if !found {
		return nil, false
	}
	return s.entries[i].tree, true
}

// put returns a schedule with tvec bound to tree, replacing or inserting.
func (s *Schedule) put(tvec TimeVec, tree *EventTree) *Schedule {
	i, found := s.search(tvec)
	out := make([]scheduleEntry, 0, len(s.entries)+1)
	out = append(out, s.entries[:i]...)
	out = append(out, scheduleEntry{tvec: tvec.Clone(), tree: tree})
	if found {
		out = append(out, s.entries[i+1:]...)
	} else {
		out = append(out, s.entries[i:]...)
	}
	return &Schedule{entries: out}
}

// drop returns a schedule without the entry at tvec.
func (s *Schedule) drop(tvec TimeVec) *Schedule {
	i, found := s.search(tvec)
	if !found {
		return s
	}
	out := make([]scheduleEntry, 0, len(s.entries)-1)
	out = append(out, s.entries[:i]...)
	out = append(out, s.entries[i+1:]...)
	return &Schedule{entries: out}
}

// merge folds unit u into the event tree at (tvec, path).
func (s *Schedule) merge(tvec TimeVec, path Path, u Unit, front bool) (*Schedule, error) {
	if s == nil {
		s = NewSchedule()
	}
	tree, _ := s.Get(tvec)
	merged, err := mergeLeaf(tree, path, u, front)
	if err != nil {
		var ke *Error
		if errors.As(err, &ke) && ke.At == nil {
			ke.At = tvec
		}
		return nil, err
	}
	return s.put(tvec, merged), nil
}

func (s *Schedule) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, e := range s.entries {
		sb.WriteString(e.tvec.String())
		if i < len(s.entries)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("}")
	return sb.String()
}
