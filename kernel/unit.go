package kernel

// UnitKind discriminates the three unit variants.
type UnitKind int

const (
	// UnitValue is an opaque payload interpreted by the active handler.
	UnitValue UnitKind = iota + 1
	// UnitFunc is a context transformation applied immediately.
	UnitFunc
	// UnitSeq is a nested FIFO of further units, recursed into.
	UnitSeq
)

// Func is a context transformation usable as a unit body.
type Func func(*Context) (*Context, error)

// Unit is a single schedulable piece of work. Exactly one of Value, Fn or
// Seq is populated, selected by Kind.
type Unit struct {
	Kind  UnitKind
	Value any
	Fn    Func
	Seq   *WorkQueue
}

// ValueUnit wraps an opaque payload as a unit.
func ValueUnit(v any) Unit {
	return Unit{Kind: UnitValue, Value: v}
}

// FuncUnit wraps a context transformation as a unit.
func FuncUnit(fn Func) Unit {
	return Unit{Kind: UnitFunc, Fn: fn}
}

// SeqUnit wraps a queue of units as a single composite unit.
func SeqUnit(q *WorkQueue) Unit {
	return Unit{Kind: UnitSeq, Seq: q}
}

// OpUnit wraps a data-encoded operation as a value unit. Dispatched by the
// handler built with OpApplier.
func OpUnit(key string, args ...any) Unit {
	return ValueUnit(Operation{Key: key, Args: args})
}

// composable reports whether more work can be appended behind u. Only
// sequences compose; a bare value or function is terminal.
func (u Unit) composable() bool {
	return u.Kind == UnitSeq
}
