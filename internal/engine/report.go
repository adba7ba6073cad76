package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/diverge/internal/op"
)

// Comparator field labels. Aux fields carry the entity handle, e.g.
// "aux_storage[token]".
const (
	FieldPrimaryOutcome = "primary_outcome"
	FieldPrimaryStorage = "primary_storage"
	FieldPrimaryBalance = "primary_balance"
)

// FieldAuxStorage labels the storage check for one auxiliary entity.
func FieldAuxStorage(h op.Handle) string { return fmt.Sprintf("aux_storage[%s]", h) }

// FieldAuxBalance labels the balance check for one auxiliary entity.
func FieldAuxBalance(h op.Handle) string { return fmt.Sprintf("aux_balance[%s]", h) }

// DivergenceReport records the first mismatch between the two systems:
// which operation was being applied, which observable disagreed first, and
// both rendered values. Constructed only at failure time, never persisted
// beyond the run trace.
type DivergenceReport struct {
	// Index of the diverging operation, 1-based.
	Index int
	Op    op.Operation

	// Field is the comparator label of the first check that disagreed.
	Field string

	// Model and System are the canonical renderings of the two values.
	Model  string
	System string

	// Diff is a structural diff of the two values, for interactive
	// inspection. Excluded from Render: its format belongs to the diff
	// library, not to this report's stable output.
	Diff string
}

// Render produces the report's stable text form. The format is part of the
// package's contract and is golden-tested; change it deliberately.
func (r *DivergenceReport) Render() string {
	payload, err := op.MarshalOperation(r.Op)
	if err != nil {
		// Operations come from the generator and are canonicalizable by
		// construction; surface the anomaly rather than hiding it.
		payload = []byte(fmt.Sprintf("<unrenderable: %v>", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "divergence at operation %d (%s)\n", r.Index, r.Op.Payload.Kind())
	fmt.Fprintf(&b, "  operation: %s\n", payload)
	fmt.Fprintf(&b, "  field:     %s\n", r.Field)
	fmt.Fprintf(&b, "  model:     %s\n", r.Model)
	fmt.Fprintf(&b, "  system:    %s\n", r.System)
	return b.String()
}

// Error makes a report usable as an error value in test assertions.
func (r *DivergenceReport) Error() string {
	return fmt.Sprintf("operation %d diverged on %s", r.Index, r.Field)
}
