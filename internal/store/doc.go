// Package store provides SQLite-backed storage for two concerns:
//
//   - Run traces: every differential run and every applied step, persisted
//     so a failing run can be listed, inspected, and replayed from its
//     recorded seed and config.
//   - Governance state: the tables backing the SQL implementation of the
//     system under test (internal/govern), kept deliberately separate from
//     the reference model's in-memory maps so the two implementations
//     share nothing but the operation vocabulary.
//
// A single Store value serves one concern at a time in practice: the CLI
// opens a file-backed store for traces and a fresh in-memory store per run
// for governance state, so replays never contaminate recorded traces.
//
// The database uses WAL mode with a single writer connection; run steps are
// written strictly sequentially by the engine loop.
package store
