package op

// AuxState is the observable sub-state of one auxiliary entity: its storage
// and its balance.
type AuxState struct {
	Storage map[string]any
	Balance int64
}

// ObservableSet is the tuple of values compared after every step: primary
// storage, primary balance, and each tracked auxiliary entity's storage and
// balance. Both executors must report a value for every field; a missing
// auxiliary entity is a hard fault, not a soft skip.
type ObservableSet struct {
	Storage map[string]any
	Balance int64
	Aux     map[Handle]AuxState
}

// Outcome is the result of applying one operation: ErrNone with observables,
// or a normalized error code. Observables are reported on failure too, so
// balances and auxiliary state stay comparable across failed steps.
type Outcome struct {
	Code     ErrorCode
	Observed ObservableSet
}

// ModelState is the reference model's complete mutable state. It is owned
// exclusively by the model executor and mutated only by applying one
// operation at a time.
type ModelState struct {
	// Level is the shared logical clock.
	Level   int64
	Storage map[string]any
	Balance int64
	Aux     map[Handle]AuxState
}

// NewModelState builds the zero state for a run: empty primary storage,
// zero balances, and one zeroed sub-state per tracked auxiliary entity.
func NewModelState(env Environment, startLevel int64) *ModelState {
	aux := make(map[Handle]AuxState, len(env.Handles()))
	for _, h := range env.Handles() {
		aux[h] = AuxState{Storage: map[string]any{}}
	}
	return &ModelState{
		Level:   startLevel,
		Storage: map[string]any{},
		Aux:     aux,
	}
}

// Observe snapshots the state's observable tuple. The snapshot is a deep
// copy: later mutations of the model state never leak into an outcome that
// has already been compared or recorded.
func (s *ModelState) Observe() ObservableSet {
	aux := make(map[Handle]AuxState, len(s.Aux))
	for h, a := range s.Aux {
		aux[h] = AuxState{Storage: copyMap(a.Storage), Balance: a.Balance}
	}
	return ObservableSet{
		Storage: copyMap(s.Storage),
		Balance: s.Balance,
		Aux:     aux,
	}
}

// copyMap deep-copies a canonical value map. Values are canonical JSON
// scalars (string, int64, bool) or nested maps; slices do not occur in
// storage shapes but are copied for completeness.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyValue(elem)
		}
		return out
	default:
		return val
	}
}
