// Package op defines the operation vocabulary shared by the reference model
// and the system under test.
//
// The package is data only: tagged operation payloads, outcomes, the
// observable tuple compared after every step, and the normalized error code
// space. Behavior lives in the executors (internal/govern) and the
// orchestrator (internal/engine).
//
// # Closed Unions
//
// Operation payloads form a closed union: Payload is a sealed interface with
// a private marker method, and every consumer dispatches with an exhaustive
// type switch. ErrorCode is a closed enum with fixed numeric wire tags so
// failures round-trip through opaque system-level encodings.
//
// # Canonical Serialization
//
// MarshalCanonical produces RFC 8785 canonical JSON (sorted keys, NFC
// normalized strings, no floats, no null). It is the only serialization used
// for trace persistence and divergence report rendering, which keeps both
// stable enough to golden-test.
package op
