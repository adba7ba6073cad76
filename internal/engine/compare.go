package engine

import (
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/diverge/internal/op"
)

// Compare checks the two outcomes for one operation field by field.
//
// Five labeled checks run in a fixed order: primary outcome code, primary
// storage, primary balance, then each tracked auxiliary entity's storage
// and each one's balance (entities in sorted handle order). The first
// failing check produces the report; later checks are not evaluated, so a
// report always has a single cause. Running Compare twice on the same pair
// yields the same report.
//
// A failure on one side and a success on the other lands on the primary
// outcome check like any other code mismatch.
func Compare(index int, o op.Operation, model, system op.Outcome) *DivergenceReport {
	if model.Code != system.Code {
		return &DivergenceReport{
			Index: index, Op: o,
			Field:  FieldPrimaryOutcome,
			Model:  model.Code.String(),
			System: system.Code.String(),
			Diff:   cmp.Diff(model.Code.String(), system.Code.String()),
		}
	}

	if diff := cmp.Diff(model.Observed.Storage, system.Observed.Storage); diff != "" {
		return &DivergenceReport{
			Index: index, Op: o,
			Field:  FieldPrimaryStorage,
			Model:  renderStorage(model.Observed.Storage),
			System: renderStorage(system.Observed.Storage),
			Diff:   diff,
		}
	}

	if model.Observed.Balance != system.Observed.Balance {
		return &DivergenceReport{
			Index: index, Op: o,
			Field:  FieldPrimaryBalance,
			Model:  fmt.Sprintf("%d", model.Observed.Balance),
			System: fmt.Sprintf("%d", system.Observed.Balance),
			Diff:   cmp.Diff(model.Observed.Balance, system.Observed.Balance),
		}
	}

	handles := sortedHandles(model.Observed.Aux)

	for _, h := range handles {
		ms, ss := model.Observed.Aux[h], system.Observed.Aux[h]
		if diff := cmp.Diff(ms.Storage, ss.Storage); diff != "" {
			return &DivergenceReport{
				Index: index, Op: o,
				Field:  FieldAuxStorage(h),
				Model:  renderStorage(ms.Storage),
				System: renderStorage(ss.Storage),
				Diff:   diff,
			}
		}
	}

	for _, h := range handles {
		ms, ss := model.Observed.Aux[h], system.Observed.Aux[h]
		if ms.Balance != ss.Balance {
			return &DivergenceReport{
				Index: index, Op: o,
				Field:  FieldAuxBalance(h),
				Model:  fmt.Sprintf("%d", ms.Balance),
				System: fmt.Sprintf("%d", ss.Balance),
				Diff:   cmp.Diff(ms.Balance, ss.Balance),
			}
		}
	}

	return nil
}

func sortedHandles(aux map[op.Handle]op.AuxState) []op.Handle {
	handles := make([]op.Handle, 0, len(aux))
	for h := range aux {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// renderStorage produces the canonical rendering used in reports. Storage
// maps are canonicalizable by construction; an anomaly is surfaced inline
// rather than hidden.
func renderStorage(m map[string]any) string {
	b, err := op.MarshalCanonical(m)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return string(b)
}
