// Package state manages the lifetime of a Model's opaque per-tree
// state, translating the reference implementation's void**
// free_state/invalidate_state lifecycle into a guarded Go value.
package state

import "github.com/HHildenbrandt/remphasis"

// A Guard owns one Model state pointer for the lifetime of a single
// augmentation or likelihood evaluation and guarantees FreeState is
// called exactly once.
//
// Grounded on plugin.hpp's free_state/invalidate_state pair, which
// the reference implementation calls by hand around every per-tree
// computation; Guard makes that pairing structural instead of
// convention.
type Guard struct {
	model  remphasis.Model
	value  any
	closed bool
}

// New returns a Guard over a freshly zeroed state for model.
func New(model remphasis.Model) *Guard {
	return &Guard{model: model}
}

// Ptr returns the address of the guarded state value, for passing
// directly to Model methods.
func (g *Guard) Ptr() *any {
	return &g.value
}

// Invalidate drops any cached derivative data the model holds in the
// guarded state, without releasing the state itself. Call this after
// changing the parameter vector a state was built against.
func (g *Guard) Invalidate() {
	if g.closed {
		return
	}
	g.model.InvalidateState(&g.value)
}

// Close releases the guarded state. Safe to call more than once;
// only the first call reaches the model.
func (g *Guard) Close() {
	if g.closed {
		return
	}
	g.model.FreeState(&g.value)
	g.closed = true
}
