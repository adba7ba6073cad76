// Package engine implements the differential call-loop orchestrator.
//
// The engine drives one run: it draws an operation sequence from the
// generator, applies each operation to the in-memory reference model and to
// the system under test in the same logical step, normalizes the system's
// failures into the model's error code space, and compares the observable
// tuples field by field. On the first mismatch it halts and emits a
// structured divergence report naming the operation and the observable that
// disagreed.
//
// ARCHITECTURE:
//
// Single logical thread of control per run. Operations are applied strictly
// sequentially and comparison happens synchronously between steps: a step's
// result can depend on the previous step's state, and a divergence must be
// attributable to exactly one operation. The model executor never blocks;
// the system executor may suspend on I/O and the loop awaits it before
// advancing. Independent runs (different seeds) may execute concurrently as
// long as each owns its own executors and state.
//
// Error taxonomy:
//
//   - Semantic divergence: both systems answered, answers differ. Reported
//     via DivergenceReport; the run terminates but the caller treats this
//     as an expected, assertable failure mode.
//   - Normalization fault: a raw failure shape the normalizer does not
//     recognize. Fatal - never coerced to a default code.
//   - Collaborator fault: generator error, executor transport error, or a
//     missing auxiliary entity in an observable set. Fatal; the run's
//     premises are unmet and no comparison is attempted for the step.
//
// A failure on one side with a success on the other is not special-cased:
// it is a first-class divergence on the primary outcome check.
package engine
