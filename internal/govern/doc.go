// Package govern is the reference domain exercised by the differential
// engine: a proposal/voting/stake governance contract implemented twice.
//
// The model (model.go) keeps state in plain maps and is pure computation.
// The system under test (system.go) realizes the same semantics over the
// SQLite tables in internal/store and reports failures as raw numeric
// payloads, the way an opaque transport would. The two implementations
// share only the operation vocabulary and a period helper; everything else
// is written separately so the engine has genuine divergence surface.
//
// # Semantics
//
// The logical clock divides time into alternating periods of
// period_length levels: even periods accept proposals, odd periods accept
// votes. Freezing stake moves funds from the sender into the contract and
// grants vote weight. Votes are weighted by frozen stake, tallied per
// proposal, and the running tally of the voted proposal is pushed into the
// consumer entity's storage. Only the guardian may transfer contract funds
// to an auxiliary entity.
//
// Custom operations dispatch through a capability (custom.go). Entrypoints
// the capability does not define follow the run's configured policy:
// ignored as no-ops, or a fatal fault.
package govern
