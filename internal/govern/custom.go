package govern

import (
	"context"

	"github.com/roach88/diverge/internal/op"
	"github.com/roach88/diverge/internal/store"
)

// ModelCustom evaluates a custom operation against model state. It returns
// handled=false when it does not define the entrypoint, leaving the policy
// decision to the caller.
type ModelCustom interface {
	ApplyModel(state *op.ModelState, env op.Environment, sender op.Sender, c op.Custom) (handled bool, code op.ErrorCode)
}

// SystemCustom is the store-backed counterpart of ModelCustom. raw is the
// failure payload in the system's native encoding, nil on success.
type SystemCustom interface {
	ApplySystem(ctx context.Context, st *store.Store, env op.Environment, sender op.Sender, c op.Custom) (handled bool, raw any, err error)
}

// TouchCustom is the built-in capability. It defines a single entrypoint,
// "touch", which increments a counter in the consumer entity's storage.
type TouchCustom struct{}

func (TouchCustom) ApplyModel(state *op.ModelState, env op.Environment, _ op.Sender, c op.Custom) (bool, op.ErrorCode) {
	if c.Entrypoint != "touch" {
		return false, op.ErrNone
	}
	aux := state.Aux[env.Consumer]
	n, _ := aux.Storage["touches"].(int64)
	aux.Storage["touches"] = n + 1
	state.Aux[env.Consumer] = aux
	return true, op.ErrNone
}

func (TouchCustom) ApplySystem(ctx context.Context, st *store.Store, env op.Environment, _ op.Sender, c op.Custom) (bool, any, error) {
	if c.Entrypoint != "touch" {
		return false, nil, nil
	}
	m, err := st.AuxStorage(ctx, env.Consumer)
	if err != nil {
		return true, nil, err
	}
	n, _ := m["touches"].(int64)
	m["touches"] = n + 1
	if err := st.SetAuxStorage(ctx, env.Consumer, m); err != nil {
		return true, nil, err
	}
	return true, nil, nil
}
