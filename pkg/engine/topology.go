package engine

import "math/rand"

// Topology supplies neighbor selection and per-step iteration order. The
// default Linear topology generalizes the teacher's neigh4/wrap toroidal
// 2-D neighbor calculation (world.go) down to a bounded, non-wrapping 1-D
// array: the array here has fixed edges (Invariant I1), unlike Wa-Tor's
// donut-shaped grid.
type Topology interface {
	// Neighbors returns the candidate indices for a move initiated at i,
	// given an array of length n.
	Neighbors(i, n int) []int

	// IterationOrder returns the index visiting order for one step, given
	// an array of length n.
	IterationOrder(n int) []int
}

// Linear is the canonical topology: neighbors are {i-1, i+1} within bounds,
// iteration order is [0,n) in index order (or seed-shuffled if Shuffle is
// set).
type Linear struct {
	// Shuffle, if true, randomizes IterationOrder per call using a
	// seeded RNG — grounded on the teacher's per-segment
	// rr.Shuffle(order) in step_par.go.
	Shuffle bool
	rng     *rand.Rand
}

// NewLinearTopology returns a Linear topology. seed seeds the optional
// shuffle RNG; it is ignored when shuffle is false.
func NewLinearTopology(shuffle bool, seed int64) *Linear {
	t := &Linear{Shuffle: shuffle}
	if shuffle {
		t.rng = rand.New(rand.NewSource(seed))
	}
	return t
}

func (t *Linear) Neighbors(i, n int) []int {
	var out []int
	if i-1 >= 0 {
		out = append(out, i-1)
	}
	if i+1 < n {
		out = append(out, i+1)
	}
	return out
}

func (t *Linear) IterationOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if t.Shuffle && t.rng != nil {
		t.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

// ChimericNearest is a topology for heterogeneous populations: each index
// is still paired with its immediate array neighbors (as Linear), but
// callers that need an algotype-aware pairing (e.g. AlgotypeAggregationIndex,
// see convergence.go) can wrap this topology and filter Neighbors' output by
// the cells' algotype. The core itself does not inspect algotype here — it
// only supplies positions — per spec.md §1 ("the core never inspects what a
// cell means").
type ChimericNearest struct {
	Linear
}

// NewChimericTopology returns a ChimericNearest topology with the same
// shuffle semantics as Linear.
func NewChimericTopology(shuffle bool, seed int64) *ChimericNearest {
	return &ChimericNearest{Linear: *NewLinearTopology(shuffle, seed)}
}
