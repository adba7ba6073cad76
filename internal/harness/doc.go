// Package harness runs differential scenarios described as YAML documents.
//
// A scenario names a run configuration plus either a generator seed or an
// explicit operation list, an optional fault injection (tampering with one
// step's reported observables), and the expected verdict. The harness
// wires the governance domain to the engine over a throwaway in-memory
// store, executes the run, and checks the verdict against the
// expectation.
//
// Scenarios with explicit operation lists have hand-computable reports,
// so their rendered divergence output is asserted against golden files.
package harness
