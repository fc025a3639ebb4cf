// Implements TimeVec, the hierarchical time coordinate every schedule entry
// is keyed by. The first component is the primary simulated time (ptime);
// the remaining components are sub-priority ranks used to break ties within
// a single ptime (nesting depth, explicit rank, the reserved flow rank).

package kernel

import "fmt"

// TimeVec is a multi-component time coordinate. Coordinates are totally
// ordered lexicographically, so [5] < [5, 1] < [6].
type TimeVec []int64

// Ptime returns the primary time component.
// Panics on an empty coordinate: an empty TimeVec is never schedulable.
func (t TimeVec) Ptime() int64 {
	if len(t) == 0 {
		panic("kernel: Ptime on empty TimeVec")
	}
	return t[0]
}

// Compare returns -1, 0, or 1 ordering t against u lexicographically.
// On an equal common prefix the shorter coordinate sorts first.
func (t TimeVec) Compare(u TimeVec) int {
	n := min(len(t), len(u))
	for i := 0; i < n; i++ {
		switch {
		case t[i] < u[i]:
			return -1
		case t[i] > u[i]:
			return 1
		}
	}
	switch {
	case len(t) < len(u):
		return -1
	case len(t) > len(u):
		return 1
	}
	return 0
}

// Equal reports whether t and u are the same coordinate.
func (t TimeVec) Equal(u TimeVec) bool {
	return t.Compare(u) == 0
}

// Clone returns an independent copy of t.
func (t TimeVec) Clone() TimeVec {
	if t == nil {
		return nil
	}
	out := make(TimeVec, len(t))
	copy(out, t)
	return out
}

func (t TimeVec) String() string {
	return fmt.Sprint([]int64(t))
}

// Combine adds delta onto base component-wise over their common length and
// extends the result with the remaining components of whichever operand is
// longer. This is the sole arithmetic used to compute "N steps from now"
// coordinates. Simulated time must not move backward, so a delta with a
// negative primary component is rejected.
func Combine(base, delta TimeVec) (TimeVec, error) {
	if len(delta) > 0 && delta[0] < 0 {
		return nil, &Error{
			Code:    CodeNegativeTimeDelta,
			Message: fmt.Sprintf("delta %v has negative primary time", delta),
		}
	}
	n := max(len(base), len(delta))
	out := make(TimeVec, n)
	for i := 0; i < n; i++ {
		var b, d int64
		if i < len(base) {
			b = base[i]
		}
		if i < len(delta) {
			d = delta[i]
		}
		out[i] = b + d
	}
	return out, nil
}
