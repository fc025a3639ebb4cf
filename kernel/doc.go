// Package kernel provides a purely functional discrete-event simulation
// kernel: given an immutable snapshot of world state plus a schedule of
// pending work, it advances simulated time by executing due work in a
// deterministic order, producing a new snapshot. Continuous ("flow")
// processes are transparently resampled once per time step.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - timevec.go: hierarchical time coordinates and their total order
//   - context.go: the Context snapshot (schedule, flows, world state,
//     execution scratch)
//   - drivers.go: the loops that advance time (JumpUntil and friends)
//
// # Architecture
//
// A driver pulls the minimum coordinate from the schedule, extracts one
// leaf from its event tree (tree.go), and drains it through the execution
// engine (engine.go). Units being drained may insert new schedule entries,
// including through the queue primitives (primitives.go), the data-encoded
// operation layer (ops.go), or the flow subsystem (flows.go). The driver
// loop repeats until the schedule empties or a stop predicate fires.
//
// Everything is immutable value semantics: a Context is never mutated,
// every engine operation returns a new one built by structural sharing.
// There is no wall-clock time and no goroutine concurrency anywhere in the
// kernel; determinism comes from the lexicographic coordinate order plus
// insertion-ordered tree traversal.
package kernel
