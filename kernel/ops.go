// Operation dispatch: a data-encoded (serializable) alternative to closures
// for event bodies. An operation is a tagged tuple (key, args); OpApplier
// builds a handler that resolves operations through a table merged from
// caller entries over the built-ins.

package kernel

import (
	"fmt"
)

// Operation is a data-encoded unit body: a key into the dispatch table plus
// positional arguments. Operations round-trip through YAML, so event
// schedules can live in plain files.
type Operation struct {
	Key  string `yaml:"op" json:"op"`
	Args []any  `yaml:"args,omitempty" json:"args,omitempty"`
}

func (op Operation) String() string {
	if len(op.Args) == 0 {
		return fmt.Sprintf("(%s)", op.Key)
	}
	return fmt.Sprintf("(%s %v)", op.Key, op.Args)
}

// Handler interprets one popped unit against a context. The active handler
// is ambient on the context for the duration of a driver call.
type Handler func(*Context, Unit) (*Context, error)

// OpFunc implements one operation key.
type OpFunc func(*Context, Operation) (*Context, error)

// OpTable maps operation keys to their implementations.
type OpTable map[string]OpFunc

// ApplyUnit is the default handler: function units are applied, value
// units are consumed as opaque payload.
func ApplyUnit(ctx *Context, u Unit) (*Context, error) {
	if u.Kind == UnitFunc {
		return u.Fn(ctx)
	}
	return ctx, nil
}

// OpExec resolves op through the context's ambient handler. It is how
// built-in operations recursively resolve nested operation arguments.
func OpExec(ctx *Context, op Operation) (*Context, error) {
	if ctx.handler == nil {
		return nil, &Error{
			Code:    CodeNoHandlerInstalled,
			Message: fmt.Sprintf("no handler installed for %v", op),
		}
	}
	return ctx.handler(ctx, ValueUnit(op))
}

// OpApplier builds a handler from user entries merged over the built-in
// table (user entries win). Function units are applied directly; value
// units carrying an Operation dispatch through the merged table; any other
// value is consumed as opaque payload.
func OpApplier(user OpTable) Handler {
	table := make(OpTable, len(builtinOps)+len(user))
	for k, fn := range builtinOps {
		table[k] = fn
	}
	for k, fn := range user {
		table[k] = fn
	}
	return func(ctx *Context, u Unit) (*Context, error) {
		switch u.Kind {
		case UnitFunc:
			return u.Fn(ctx)
		case UnitValue:
			op, ok := asOperation(u.Value)
			if !ok {
				return ctx, nil
			}
			fn, ok := table[op.Key]
			if !ok {
				return nil, &Error{
					Code:    CodeUnknownOperation,
					Message: fmt.Sprintf("no entry for %v", op),
					Path:    ctx.Exec.Path,
					At:      ctx.Exec.TimeVec,
				}
			}
			return fn(ctx, op)
		default:
			return ctx, nil
		}
	}
}

// builtinOps is the standard table. Each entry forwards to the
// corresponding queue primitive. Predicate-valued primitives (breaker,
// mirror over arbitrary functions, sreplay over arbitrary predicates) have
// no data encoding and stay closure-only; bounded loops are covered by
// capture + repeat.
var builtinOps = OpTable{
	"set":     opSet,
	"add":     opAdd,
	"delay":   opDelay,
	"copy":    opCopy,
	"into":    opInto,
	"exec":    opExec,
	"capture": opCapture,
	"repeat":  opRepeat,
}

// opSet writes its argument at the current path.
func opSet(ctx *Context, op Operation) (*Context, error) {
	if len(op.Args) != 1 {
		return nil, opArity(op, "1 argument")
	}
	v := op.Args[0]
	return Mirror(func(any, int64) (any, error) { return v, nil })(ctx)
}

// opAdd adds a number onto the value at the current path (absent counts as
// zero).
func opAdd(ctx *Context, op Operation) (*Context, error) {
	if len(op.Args) != 1 {
		return nil, opArity(op, "1 argument")
	}
	delta, ok := asFloat(op.Args[0])
	if !ok {
		return nil, opArity(op, "a numeric argument")
	}
	return Mirror(func(cur any, _ int64) (any, error) {
		base, _ := asFloat(cur)
		return base + delta, nil
	})(ctx)
}

// opDelay moves the remaining queue delta steps ahead.
func opDelay(ctx *Context, op Operation) (*Context, error) {
	if len(op.Args) != 1 {
		return nil, opArity(op, "a time delta")
	}
	delta, ok := asTimeVec(op.Args[0])
	if !ok {
		return nil, opArity(op, "a time delta")
	}
	return Delay(In(delta))(ctx)
}

// opCopy duplicates the remaining queue delta steps ahead.
func opCopy(ctx *Context, op Operation) (*Context, error) {
	if len(op.Args) != 1 {
		return nil, opArity(op, "a time delta")
	}
	delta, ok := asTimeVec(op.Args[0])
	if !ok {
		return nil, opArity(op, "a time delta")
	}
	return Copy(In(delta))(ctx)
}

// opInto enqueues its trailing operations delta steps ahead at the given
// path: args are [delta, path, op...].
func opInto(ctx *Context, op Operation) (*Context, error) {
	if len(op.Args) < 3 {
		return nil, opArity(op, "a delta, a path and at least one operation")
	}
	delta, ok := asTimeVec(op.Args[0])
	if !ok {
		return nil, opArity(op, "a time delta first")
	}
	path, ok := asPath(op.Args[1])
	if !ok {
		return nil, opArity(op, "a path second")
	}
	units, err := asOpUnits(op, op.Args[2:])
	if err != nil {
		return nil, err
	}
	tvec, err := Combine(ctx.Exec.TimeVec, delta)
	if err != nil {
		return nil, err
	}
	return EnqueueSeq(ctx, tvec, path, NewQueue(units...))
}

// opExec splices its argument operations ahead of the remaining queue.
func opExec(ctx *Context, op Operation) (*Context, error) {
	units, err := asOpUnits(op, op.Args)
	if err != nil {
		return nil, err
	}
	return ExecAhead(NewQueue(units...))(ctx)
}

// opCapture snapshots the remaining queue for a later repeat.
func opCapture(ctx *Context, op Operation) (*Context, error) {
	if len(op.Args) != 0 {
		return nil, opArity(op, "no arguments")
	}
	return Capture()(ctx)
}

// opRepeat replays the captured queue n times.
func opRepeat(ctx *Context, op Operation) (*Context, error) {
	if len(op.Args) != 1 {
		return nil, opArity(op, "a repeat count")
	}
	n, ok := asInt(op.Args[0])
	if !ok {
		return nil, opArity(op, "a repeat count")
	}
	return SReplay(PredRepeat, n)(ctx)
}

func opArity(op Operation, want string) *Error {
	return &Error{
		Code:    CodeUnknownOperation,
		Message: fmt.Sprintf("%s expects %s, got %v", op.Key, want, op.Args),
	}
}

// asOperation views v as an operation. YAML decoding yields generic maps,
// so both the typed form and map form are accepted.
func asOperation(v any) (Operation, bool) {
	switch t := v.(type) {
	case Operation:
		return t, true
	case *Operation:
		return *t, true
	case map[string]any:
		key, ok := t["op"].(string)
		if !ok {
			return Operation{}, false
		}
		args, _ := t["args"].([]any)
		return Operation{Key: key, Args: args}, true
	}
	return Operation{}, false
}

// asOpUnits converts operation-valued arguments into value units, so
// nested operations resolve through the handler when drained.
func asOpUnits(parent Operation, args []any) ([]Unit, error) {
	units := make([]Unit, 0, len(args))
	for _, a := range args {
		op, ok := asOperation(a)
		if !ok {
			return nil, opArity(parent, "nested operations")
		}
		units = append(units, ValueUnit(op))
	}
	return units, nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	}
	return 0, false
}

func asTimeVec(v any) (TimeVec, bool) {
	switch t := v.(type) {
	case TimeVec:
		return t, true
	case []int64:
		return TimeVec(t), true
	case []any:
		out := make(TimeVec, 0, len(t))
		for _, e := range t {
			n, ok := asInt(e)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	}
	if n, ok := asInt(v); ok {
		return TimeVec{n}, true
	}
	return nil, false
}

func asPath(v any) (Path, bool) {
	switch t := v.(type) {
	case Path:
		return t, true
	case []string:
		return Path(t), true
	case string:
		return Path{t}, true
	case []any:
		out := make(Path, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
