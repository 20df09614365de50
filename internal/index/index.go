// Package index holds the cross-reference index: interfaces, declarations,
// and implementation summaries for one source tree.
//
// An Index publishes immutable Generations. Publish and Clear swap a single
// pointer, so a reader either sees the previous complete generation or the
// next one, never a mix.
package index

import "sync/atomic"

// Index is the live, published view of the cross-reference data.
// The zero value is not usable; call New.
type Index struct {
	gen atomic.Pointer[Generation]
}

// New returns an Index in the Empty state.
func New() *Index {
	x := &Index{}
	x.gen.Store(emptyGeneration())
	return x
}

// Current returns the published generation. It is never nil.
func (x *Index) Current() *Generation {
	return x.gen.Load()
}

// Publish replaces the current generation. A nil generation clears.
func (x *Index) Publish(g *Generation) {
	if g == nil {
		g = emptyGeneration()
	}
	x.gen.Store(g)
}

// Clear returns the index to the Empty state.
func (x *Index) Clear() {
	x.gen.Store(emptyGeneration())
}

// Populated reports whether a non-empty generation is published.
func (x *Index) Populated() bool {
	return !x.gen.Load().IsEmpty()
}
