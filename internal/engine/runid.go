package engine

import (
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator produces identifiers for runs recorded in the trace store.
type RunIDGenerator interface {
	NewRunID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so trace listings
// sort by creation time without an extra column.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewRunID creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedRunIDs returns predetermined run identifiers for tests, enabling
// deterministic trace content and golden comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedRunIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedRunIDs creates a generator that returns the given IDs in order.
// It panics when the IDs are exhausted; tests that run out of IDs are
// misconfigured and should fail fast.
func NewFixedRunIDs(ids ...string) *FixedRunIDs {
	return &FixedRunIDs{ids: ids}
}

// NewRunID returns the next predetermined identifier.
func (g *FixedRunIDs) NewRunID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedRunIDs: all run IDs consumed")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
