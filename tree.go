package remphasis

import "sort"

// A Node is one event in a reconstructed or augmented phylogeny: a
// tip, an extinction, or a missing (unobserved) speciation.
//
// The node's Kind is not stored explicitly; it is derived from TExt:
// TExt == TipSentinel marks a tip, TExt == ExtinctSentinel marks an
// extinction, any other value marks a missing speciation whose
// unobserved descendant lineage dies at TExt.
type Node struct {
	// Brts is the branching time of the node, non-negative and
	// non-decreasing across a Tree.
	Brts float64

	// N is the number of extant lineages in the half-open interval
	// [prev.Brts, Brts) that precedes this node.
	N float64

	// TExt is the extinction-time annotation that also encodes the
	// node's kind; see TipSentinel and ExtinctSentinel.
	TExt float64

	// PD is the phylogenetic diversity accumulated up to and
	// including this node, summed over missing speciations only.
	PD float64
}

// IsTip reports whether n is a present-day tip.
func (n Node) IsTip() bool { return n.TExt == TipSentinel }

// IsExtinction reports whether n is an extinction event.
func (n Node) IsExtinction() bool { return n.TExt == ExtinctSentinel }

// IsMissing reports whether n is an unobserved (latent) speciation.
func (n Node) IsMissing() bool { return !n.IsTip() && !n.IsExtinction() }

// A Tree is an ordered sequence of nodes sorted by Brts ascending.
//
// Invariants maintained by every mutator in this package: for every
// missing node at (Brts, TExt) there is exactly one extinction node
// later in the sequence with Brts == TExt; N on each node equals the
// running lineage count immediately before that node; the final node
// is the tree's present-day boundary; PD reflects the current
// missing-node set.
type Tree []Node

// Sort restores ascending order by Brts. Augmentation keeps the tree
// sorted incrementally; Sort exists for building a tree from
// unordered input.
func (t Tree) Sort() {
	sort.Slice(t, func(i, j int) bool { return t[i].Brts < t[j].Brts })
}

// Present returns the branching time of the tree's final node, the
// tree's present-day boundary.
func (t Tree) Present() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Brts
}

// Clone returns an independent copy of t.
func (t Tree) Clone() Tree {
	c := make(Tree, len(t))
	copy(c, t)
	return c
}

// NumMissing returns the number of missing (latent speciation) nodes.
func (t Tree) NumMissing() int {
	n := 0
	for _, node := range t {
		if node.IsMissing() {
			n++
		}
	}
	return n
}

// nAfter returns the lineage count that applies immediately after
// node i, i.e. t[i].N adjusted by the event at i.
func (t Tree) nAfter(i int) float64 {
	if t[i].IsExtinction() {
		return t[i].N - 1
	}
	return t[i].N + 1
}

// lowerBoundBrts returns the index of the first node with Brts >= v.
func (t Tree) lowerBoundBrts(v float64) int {
	return sort.Search(len(t), func(i int) bool { return t[i].Brts >= v })
}

// InsertSpecies inserts a linked missing/extinction pair at (tSpec,
// tExt), preserving sort order and repairing the N column of every
// node between the insertion points.
//
// Grounded on augment_tree.cpp's insert_species: locate the position
// for tSpec, carry the lineage count forward from the preceding node,
// then walk forward repairing N until the first node whose Brts >=
// tExt, where the extinction node is inserted. The PD column is then
// recomputed for the new missing-node set.
func (t *Tree) InsertSpecies(tSpec, tExt float64) {
	tt := *t
	first := tt.lowerBoundBrts(tSpec)

	var n float64
	if first > 0 {
		n = tt.nAfter(first - 1)
	} else if len(tt) > 0 {
		n = tt[0].N
	}

	tt = insertAt(tt, first, Node{Brts: tSpec, N: n, TExt: tExt})

	i := first + 1
	for i < len(tt) && tt[i].Brts < tExt {
		tt[i].N = tt.nAfter(i - 1)
		i++
	}

	extN := tt.nAfter(i - 1)
	tt = insertAt(tt, i, Node{Brts: tExt, N: extN, TExt: ExtinctSentinel})

	tt.RecomputePD()
	*t = tt
}

// insertAt inserts v into s at index i, shifting later elements
// right.
func insertAt(s Tree, i int, v Node) Tree {
	s = append(s, Node{})
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// RecomputePD recomputes the PD column of every node by a single
// forward pass over the tree, summing (Brts(k) - Brts(prevMissing(k)))
// times the running lineage count at insertion, over missing nodes
// only.
//
// Grounded on E_step.cpp's detail::calculate_pd.
func (t Tree) RecomputePD() {
	if len(t) == 0 {
		return
	}
	var sum float64
	var prevBrts float64
	n := t[0].N
	for i := range t {
		node := &t[i]
		if node.IsMissing() {
			sum += (node.Brts - prevBrts) * n
			n++
			prevBrts = node.Brts
		}
		node.PD = sum
	}
}
