// Event-tree semantics layered over PathTree[Unit]: merging new work into a
// coordinate's tree and pulling single leaves out for execution.

package kernel

import "fmt"

// EventTree holds the work registered for one time coordinate, keyed by
// path. A leaf is a single unit or a sequence; multiple independent leaves
// may exist under different paths.
type EventTree = PathTree[Unit]

// NewEventTree returns an empty event tree.
func NewEventTree() *EventTree {
	return NewPathTree[Unit]()
}

// mergeLeaf folds u into the work already registered at path.
//
//   - no node at path: u is stored as-is
//   - existing sequence leaf: u is appended (front or back); merging a
//     sequence into a sequence concatenates
//   - existing value/function leaf, or a subtree of deeper work: the target
//     is not composable, INVALID_EVENT_TARGET
func mergeLeaf(t *EventTree, path Path, u Unit, front bool) (*EventTree, error) {
	if len(path) == 0 {
		return nil, &Error{Code: CodeInvalidEventTarget, Message: "event path must be non-empty"}
	}
	if t == nil {
		t = NewEventTree()
	}
	n, ok := t.child(path[0])
	if len(path) == 1 {
		if !ok {
			return t.withNode(path[0], treeNode[Unit]{leaf: &u}), nil
		}
		if n.sub != nil {
			return nil, &Error{
				Code:    CodeInvalidEventTarget,
				Message: fmt.Sprintf("path %v holds a subtree of pending work", path),
				Path:    path,
			}
		}
		if !n.leaf.composable() {
			return nil, &Error{
				Code:    CodeInvalidEventTarget,
				Message: "cannot append to a terminal (non-sequence) event",
				Path:    path,
			}
		}
		merged := mergeUnits(*n.leaf, u, front)
		return t.withNode(path[0], treeNode[Unit]{leaf: &merged}), nil
	}
	if ok && n.sub == nil {
		return nil, &Error{
			Code:    CodeInvalidEventTarget,
			Message: fmt.Sprintf("path step %q is a terminal leaf", path[0]),
			Path:    path,
		}
	}
	sub, err := mergeLeaf(n.sub, path[1:], u, front)
	if err != nil {
		return nil, err
	}
	return t.withNode(path[0], treeNode[Unit]{sub: sub}), nil
}

// mergeUnits composes new work behind (or ahead of) an existing sequence
// leaf. Callers have already verified the leaf composes.
func mergeUnits(existing, u Unit, front bool) Unit {
	eq := existing.Seq
	switch {
	case u.Kind == UnitSeq && front:
		// incoming items run first; metadata stays with the resident queue
		out := eq.clone()
		items := make([]Unit, u.Seq.Len()+eq.Len())
		copy(items, u.Seq.items)
		copy(items[u.Seq.Len():], eq.items)
		out.items = items
		return SeqUnit(out)
	case u.Kind == UnitSeq:
		return SeqUnit(eq.Concat(u.Seq.Bare()))
	case front:
		return SeqUnit(eq.PushFront(u))
	default:
		return SeqUnit(eq.PushBack(u))
	}
}
