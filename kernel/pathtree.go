// Implements PathTree, the insertion-ordered nested map underlying the
// schedule's event trees, the flow registry, and the world state. Iteration
// order is the order keys were first inserted, which keeps traversal
// deterministic across runs.
//
// Trees are immutable: updates copy the spine from the root to the touched
// node and share everything else.

package kernel

// Path locates a logical subsystem of the world state. Paths key event
// trees, the flow registry, and the state tree alike.
type Path []string

// Equal reports whether p and other are the same path.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// treeNode is one slot of a PathTree: either a leaf value or a subtree,
// never both.
type treeNode[V any] struct {
	leaf *V
	sub  *PathTree[V]
}

// PathTree is an immutable nested map with deterministic (insertion-order)
// iteration.
type PathTree[V any] struct {
	keys  []string
	nodes map[string]treeNode[V]
}

// NewPathTree returns an empty tree.
func NewPathTree[V any]() *PathTree[V] {
	return &PathTree[V]{}
}

// Empty reports whether the tree holds no entries. Nil-safe.
func (t *PathTree[V]) Empty() bool {
	return t == nil || len(t.keys) == 0
}

// child returns the node under key at this level.
func (t *PathTree[V]) child(key string) (treeNode[V], bool) {
	if t == nil || t.nodes == nil {
		return treeNode[V]{}, false
	}
	n, ok := t.nodes[key]
	return n, ok
}

// withNode returns a copy of t with key bound to n, appending key to the
// iteration order if new.
func (t *PathTree[V]) withNode(key string, n treeNode[V]) *PathTree[V] {
	out := &PathTree[V]{nodes: make(map[string]treeNode[V], len(t.nodesOrEmpty())+1)}
	for k, v := range t.nodesOrEmpty() {
		out.nodes[k] = v
	}
	if _, exists := out.nodes[key]; exists {
		out.keys = t.keys
	} else {
		out.keys = append(t.keys[:len(t.keys):len(t.keys)], key)
	}
	out.nodes[key] = n
	return out
}

// without returns a copy of t with key removed.
func (t *PathTree[V]) without(key string) *PathTree[V] {
	if _, ok := t.child(key); !ok {
		return t
	}
	out := &PathTree[V]{nodes: make(map[string]treeNode[V], len(t.nodes)-1)}
	for k, v := range t.nodes {
		if k != key {
			out.nodes[k] = v
		}
	}
	out.keys = make([]string, 0, len(t.keys)-1)
	for _, k := range t.keys {
		if k != key {
			out.keys = append(out.keys, k)
		}
	}
	return out
}

func (t *PathTree[V]) nodesOrEmpty() map[string]treeNode[V] {
	if t == nil {
		return nil
	}
	return t.nodes
}

// Get returns the leaf value stored at exactly path.
func (t *PathTree[V]) Get(path Path) (V, bool) {
	var zero V
	if t == nil || len(path) == 0 {
		return zero, false
	}
	n, ok := t.child(path[0])
	if !ok {
		return zero, false
	}
	if len(path) == 1 {
		if n.leaf == nil {
			return zero, false
		}
		return *n.leaf, true
	}
	return n.sub.Get(path[1:])
}

// At returns what sits at path: a leaf value, a subtree of deeper entries,
// or neither when the path is absent. The empty path addresses the whole
// tree.
func (t *PathTree[V]) At(path Path) (leaf *V, sub *PathTree[V]) {
	if len(path) == 0 {
		return nil, t
	}
	if t == nil {
		return nil, nil
	}
	n, ok := t.child(path[0])
	if !ok {
		return nil, nil
	}
	if len(path) == 1 {
		return n.leaf, n.sub
	}
	return n.sub.At(path[1:])
}

// Assoc stores v as a leaf at path, replacing whatever was there, growing
// intermediate subtrees as needed. A leaf blocking an intermediate step is
// replaced by a subtree.
func (t *PathTree[V]) Assoc(path Path, v V) *PathTree[V] {
	if len(path) == 0 {
		return t
	}
	if t == nil {
		t = NewPathTree[V]()
	}
	if len(path) == 1 {
		return t.withNode(path[0], treeNode[V]{leaf: &v})
	}
	n, _ := t.child(path[0])
	sub := n.sub
	if sub == nil {
		sub = NewPathTree[V]()
	}
	return t.withNode(path[0], treeNode[V]{sub: sub.Assoc(path[1:], v)})
}

// Dissoc removes the leaf at path, pruning intermediate subtrees that
// become empty.
func (t *PathTree[V]) Dissoc(path Path) *PathTree[V] {
	if t == nil || len(path) == 0 {
		return t
	}
	n, ok := t.child(path[0])
	if !ok {
		return t
	}
	if len(path) == 1 {
		return t.without(path[0])
	}
	if n.sub == nil {
		return t
	}
	sub := n.sub.Dissoc(path[1:])
	if sub.Empty() {
		return t.without(path[0])
	}
	return t.withNode(path[0], treeNode[V]{sub: sub})
}

// PullLeaf removes and returns the first leaf in iteration order, together
// with its path and the residual tree with empty branches pruned. ok is
// false when the tree holds no leaves.
func (t *PathTree[V]) PullLeaf() (v V, path Path, rest *PathTree[V], ok bool) {
	var zero V
	if t.Empty() {
		return zero, nil, t, false
	}
	key := t.keys[0]
	n := t.nodes[key]
	if n.leaf != nil {
		return *n.leaf, Path{key}, t.without(key), true
	}
	sv, spath, srest, sok := n.sub.PullLeaf()
	if !sok {
		// degenerate empty subtree, prune and retry
		return t.without(key).PullLeaf()
	}
	if srest.Empty() {
		rest = t.without(key)
	} else {
		rest = t.withNode(key, treeNode[V]{sub: srest})
	}
	return sv, append(Path{key}, spath...), rest, true
}

// Walk visits every leaf in deterministic iteration order. Returning an
// error from fn stops the walk.
func (t *PathTree[V]) Walk(fn func(Path, V) error) error {
	return t.walk(nil, fn)
}

func (t *PathTree[V]) walk(prefix Path, fn func(Path, V) error) error {
	if t == nil {
		return nil
	}
	for _, key := range t.keys {
		n := t.nodes[key]
		path := append(prefix.Clone(), key)
		if n.leaf != nil {
			if err := fn(path, *n.leaf); err != nil {
				return err
			}
			continue
		}
		if err := n.sub.walk(path, fn); err != nil {
			return err
		}
	}
	return nil
}

// Len counts the leaves in the tree.
func (t *PathTree[V]) Len() int {
	count := 0
	_ = t.Walk(func(Path, V) error {
		count++
		return nil
	})
	return count
}
