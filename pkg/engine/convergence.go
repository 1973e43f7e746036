package engine

// ConvergenceStatus is the result of a ConvergenceDetector check.
type ConvergenceStatus int

const (
	NotConverged ConvergenceStatus = iota
	Converged
)

// ConvergenceDetector is a polymorphic termination predicate: given the
// current step, the array, and the swap count observed since the last
// check, it decides whether the run has converged.
type ConvergenceDetector interface {
	Check(step int, cells []*Cell, swapsSinceLast int64) ConvergenceStatus
	Reset()
}

// NoSwapForK is the canonical detector: converged once K consecutive steps
// have produced zero swaps. Default K=3 per spec.md §4.5; callers should
// raise K for larger arrays.
type NoSwapForK struct {
	K               int
	lastSwapStep    int
	stepsOnNoSwap   int
}

// NewNoSwapForK builds a NoSwapForK detector. k<=0 is treated as 1.
func NewNoSwapForK(k int) *NoSwapForK {
	if k <= 0 {
		k = 1
	}
	return &NoSwapForK{K: k}
}

func (d *NoSwapForK) Check(step int, _ []*Cell, swapsSinceLast int64) ConvergenceStatus {
	if swapsSinceLast > 0 {
		d.lastSwapStep = step
		d.stepsOnNoSwap = 0
		return NotConverged
	}
	d.stepsOnNoSwap++
	if step-d.lastSwapStep >= d.K {
		return Converged
	}
	return NotConverged
}

func (d *NoSwapForK) Reset() {
	d.lastSwapStep = 0
	d.stepsOnNoSwap = 0
}

// SortednessThreshold converges once the array's sortedness value (0-100,
// under the supplied comparator/direction) reaches Threshold.
type SortednessThreshold struct {
	Threshold  float64
	Comparator Comparator
	Direction  Direction
}

// NewSortednessThreshold builds a SortednessThreshold detector.
func NewSortednessThreshold(threshold float64, cmp Comparator, direction Direction) *SortednessThreshold {
	return &SortednessThreshold{Threshold: threshold, Comparator: cmp, Direction: direction}
}

func (d *SortednessThreshold) Check(_ int, cells []*Cell, _ int64) ConvergenceStatus {
	if Sortedness(cells, d.Comparator, d.Direction) >= d.Threshold {
		return Converged
	}
	return NotConverged
}

func (d *SortednessThreshold) Reset() {}

// MaxSteps reports NotConverged while step < Limit and Converged once
// step >= Limit, so a step ceiling can be expressed as a detector. It exists
// so callers can compose it into a detector chain uniformly.
type MaxSteps struct{ Limit int }

func NewMaxSteps(limit int) *MaxSteps { return &MaxSteps{Limit: limit} }

func (d *MaxSteps) Check(step int, _ []*Cell, _ int64) ConvergenceStatus {
	if step >= d.Limit {
		return Converged
	}
	return NotConverged
}

func (d *MaxSteps) Reset() {}

// Sortedness computes a 0-100 proximity-to-sorted metric: the fraction of
// adjacent pairs that are in order under direction, scaled to 100. An
// array of length <2 is trivially 100% sorted.
func Sortedness(cells []*Cell, cmp Comparator, direction Direction) float64 {
	if len(cells) < 2 {
		return 100
	}
	inOrder := 0
	total := len(cells) - 1
	for i := 0; i < total; i++ {
		if !outOfOrder(cmp(cells[i].Value, cells[i+1].Value), direction) {
			inOrder++
		}
	}
	return 100 * float64(inOrder) / float64(total)
}

// outOfOrder applies spec.md §4.5's definition: cmp>0 is out of order for
// ASCENDING, cmp<0 is out of order for DESCENDING.
func outOfOrder(cmp int, direction Direction) bool {
	if direction == Ascending {
		return cmp > 0
	}
	return cmp < 0
}

// MonotonicityError counts the adjacent pairs that violate direction — the
// raw complement to Sortedness's normalized percentage. Where Sortedness
// answers "how close to sorted" (0-100), MonotonicityError answers "how
// many violations remain" (an absolute count, useful for tracking
// trajectories across array sizes that Sortedness's normalization hides).
func MonotonicityError(cells []*Cell, cmp Comparator, direction Direction) int {
	violations := 0
	for i := 0; i+1 < len(cells); i++ {
		if outOfOrder(cmp(cells[i].Value, cells[i+1].Value), direction) {
			violations++
		}
	}
	return violations
}

// AlgotypeAggregationIndex measures spatial clustering of like algotypes: the
// fraction of adjacent pairs sharing the same algotype, scaled to 0-100. A
// freshly shuffled chimeric population sits near the value implied by its
// mix fractions (two equally-sized algotypes start near 50); as swaps
// relocate cells, same-algotype runs tend to consolidate before the array
// fully sorts, producing the transient rise spec.md §8 scenario 5 calls
// "delayed gratification" before the index falls back once sorting
// dominates algotype adjacency.
func AlgotypeAggregationIndex(cells []*Cell) float64 {
	if len(cells) < 2 {
		return 100
	}
	same := 0
	total := len(cells) - 1
	for i := 0; i < total; i++ {
		if cells[i].Algotype == cells[i+1].Algotype {
			same++
		}
	}
	return 100 * float64(same) / float64(total)
}
