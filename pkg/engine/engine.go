package engine

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ExecutionEngine drives the array to convergence by repeatedly asking each
// cell whether it wishes to swap with a neighbor under its algotype's rule.
//
// Grounded on the teacher's StepSeq (step_seq.go): a full double-buffered
// sweep over the grid, generalized from a two-species ordered pass
// (sharks then fish) into a single algotype-dispatched pass, and on
// main.go's terminal step loop for RunUntilConvergence.
type ExecutionEngine struct {
	cells      []*Cell
	topology   Topology
	swap       *SwapEngine
	probe      *Probe
	detector   ConvergenceDetector
	cmp        Comparator
	log        zerolog.Logger

	countShortCircuits bool

	// directionOverride, if non-nil, forces every move predicate to use
	// this direction instead of each cell's own Direction facet. Used for
	// experiments that want to study a uniform direction despite a
	// chimeric-direction population (spec.md §6 new_execution_engine
	// direction_override? parameter).
	directionOverride *Direction

	// selectionTouched tracks, for the current step, which SELECTION
	// boundary/direction groups had a successful swap land on their
	// shared idealPos. Reset at the top of every Step call.
	selectionTouched map[string]bool

	step         int
	lastSwapStep int
	converged    bool
}

// NewExecutionEngine builds an ExecutionEngine. cmp is the comparator used
// to order cell values; it must define a total order (the engine does not
// verify this — spec.md §4.5 "Failure semantics").
func NewExecutionEngine(
	cells []*Cell,
	topology Topology,
	swap *SwapEngine,
	probe *Probe,
	detector ConvergenceDetector,
	cmp Comparator,
	log zerolog.Logger,
) *ExecutionEngine {
	return &ExecutionEngine{
		cells:              cells,
		topology:           topology,
		swap:               swap,
		probe:              probe,
		detector:           detector,
		cmp:                cmp,
		log:                log,
		countShortCircuits: true,
	}
}

// WithCountShortCircuits sets the compareAndSwapCount policy resolved in
// DESIGN.md Open Question 1 and returns the engine for chaining.
func (e *ExecutionEngine) WithCountShortCircuits(v bool) *ExecutionEngine {
	e.countShortCircuits = v
	return e
}

// WithDirectionOverride forces every move predicate to use dir instead of
// each cell's own Direction facet.
func (e *ExecutionEngine) WithDirectionOverride(dir Direction) *ExecutionEngine {
	e.directionOverride = &dir
	return e
}

func (e *ExecutionEngine) directionFor(c *Cell) Direction {
	if e.directionOverride != nil {
		return *e.directionOverride
	}
	return c.Direction
}

// Cells exposes the live array. Callers must respect Invariant I2: only the
// engine (or, under a shared lock, a CellGroup worker) may mutate it.
func (e *ExecutionEngine) Cells() []*Cell { return e.cells }

// HasConverged reports whether the last Step/RunUntilConvergence call
// observed convergence.
func (e *ExecutionEngine) HasConverged() bool { return e.converged }

// Step performs one full iteration over all indices and returns the number
// of swaps that occurred during it.
func (e *ExecutionEngine) Step() (int64, error) {
	n := len(e.cells)
	order := e.topology.IterationOrder(n)
	var stepSwaps int64
	e.selectionTouched = map[string]bool{}

	for _, i := range order {
		c := e.cells[i]
		if c.Status != StatusActive {
			continue
		}
		swapped, err := e.evaluateAndSwap(i, c, n)
		if err != nil {
			return stepSwaps, err
		}
		if swapped {
			stepSwaps++
		}
	}

	e.advanceSelectionFrontiers()

	e.step++
	if stepSwaps > 0 {
		e.lastSwapStep = e.step
	}
	e.probe.Record(SnapshotFromCells(e.step, e.cells, e.isFrozenAt, stepSwaps))

	status := e.detector.Check(e.step, e.cells, stepSwaps)
	e.converged = status == Converged
	e.log.Debug().Int("step", e.step).Int64("swaps", stepSwaps).Bool("converged", e.converged).Msg("engine: step complete")
	return stepSwaps, nil
}

func (e *ExecutionEngine) isFrozenAt(i int) bool {
	return e.swap.Frozen().Kind(i) != FrozenNone
}

// evaluateAndSwap dispatches to the per-algotype move rule for cell c at
// index i and returns whether a swap occurred.
func (e *ExecutionEngine) evaluateAndSwap(i int, c *Cell, n int) (bool, error) {
	switch c.Algotype {
	case Bubble:
		return e.evaluateNeighborRule(i, c, n, func(j int) bool { return j == i+1 },
			func(j int) bool { return e.outOfOrder(c, i, j) })
	case Insertion:
		enabled, err := c.RequireEnableToMove()
		if err != nil {
			return false, err
		}
		return e.evaluateNeighborRule(i, c, n, func(j int) bool { return j == i-1 },
			func(j int) bool {
				return enabled && e.outOfOrder(c, j, i) && e.isLeftSorted(i, e.directionFor(c))
			})
	case Selection:
		return e.evaluateSelection(i, c)
	default:
		return false, fmt.Errorf("unknown algotype %v: %w", c.Algotype, ErrCapabilityMissing)
	}
}

// evaluateNeighborRule implements the shared shape of BUBBLE/INSERTION: walk
// every topology neighbor j, count the examination (subject to the
// short-circuit policy) for j's that don't match the algotype's expected
// relation, and fully evaluate+swap for the one that does.
func (e *ExecutionEngine) evaluateNeighborRule(i int, c *Cell, n int, isExpectedJ func(j int) bool, holds func(j int) bool) (bool, error) {
	for _, j := range e.topology.Neighbors(i, n) {
		if !isExpectedJ(j) {
			if e.countShortCircuits {
				e.probe.IncCompareAndSwap()
			}
			continue
		}
		e.probe.IncCompareAndSwap()
		if !holds(j) {
			continue
		}
		outcome := e.swap.AttemptSwap(e.cells, i, j)
		if outcome == RejectedFrozen {
			e.probe.IncFrozenSwapAttempt()
		}
		return outcome == Swapped, nil
	}
	return false, nil
}

// evaluateSelection implements SELECTION: the cell's target is its own
// idealPos rather than a topology-supplied neighbor (spec.md §4.4's note
// that chimeric topologies may be algotype-aware; here the engine itself
// supplies SELECTION's single relevant candidate directly — see
// DESIGN.md's discussion of this resolution).
//
// idealPos does not advance mid-step on a trivial target==i match: every
// active cell sharing a boundary starts a step pointed at the same
// idealPos, so a cell that merely happens to sit there is not yet a
// verified placement — a smaller cell elsewhere in the same step may
// still dethrone it. Advancement is decided once per step, after every
// cell has had a chance to challenge, by advanceSelectionFrontiers.
func (e *ExecutionEngine) evaluateSelection(i int, c *Cell) (bool, error) {
	target, err := c.RequireIdealPos()
	if err != nil {
		return false, err
	}
	if target < 0 || target >= len(e.cells) {
		return false, fmt.Errorf("selection idealPos %d out of range [0,%d): %w", target, len(e.cells), ErrInvariantViolated)
	}

	e.probe.IncCompareAndSwap()

	if target == i {
		return false, nil
	}

	if !e.outOfOrder(c, target, i) {
		return false, nil
	}

	outcome := e.swap.AttemptSwap(e.cells, i, target)
	if outcome == RejectedFrozen {
		e.probe.IncFrozenSwapAttempt()
	}
	if outcome == Swapped {
		e.selectionTouched[selectionGroupKey(c.LeftBoundary, c.RightBoundary, e.directionFor(c))] = true
		return true, nil
	}
	return false, nil
}

func selectionGroupKey(left, right int, direction Direction) string {
	return fmt.Sprintf("%d|%d|%d", left, right, direction)
}

// advanceSelectionFrontiers closes out a step: for every SELECTION
// boundary/direction group whose shared idealPos slot went unchallenged
// this step (no successful swap landed on it), the resident cell at that
// slot is locked there for good, and every other not-yet-settled member
// of the group advances its idealPos to the next slot. A group whose
// slot WAS challenged this step keeps targeting the same slot next step.
func (e *ExecutionEngine) advanceSelectionFrontiers() {
	type groupKey struct {
		left, right int
		direction   Direction
	}
	frontier := map[groupKey]int{}
	for _, c := range e.cells {
		if c.Algotype != Selection {
			continue
		}
		frontier[groupKey{c.LeftBoundary, c.RightBoundary, e.directionFor(c)}] = c.IdealPos
	}

	for k, f := range frontier {
		if e.selectionTouched[selectionGroupKey(k.left, k.right, k.direction)] {
			continue
		}
		if f < 0 || f >= len(e.cells) {
			continue
		}
		resident := e.cells[f]

		var next int
		if k.direction == Ascending {
			next = f + 1
			if next > k.right {
				next = k.right
			}
		} else {
			next = f - 1
			if next < k.left {
				next = k.left
			}
		}

		for _, c := range e.cells {
			if c == resident || c.Algotype != Selection {
				continue
			}
			if c.LeftBoundary != k.left || c.RightBoundary != k.right {
				continue
			}
			if e.directionFor(c) != k.direction {
				continue
			}
			if c.IdealPos == f {
				c.WithIdealPos(next)
			}
		}
	}
}

// outOfOrder evaluates out_of_order(cmp(a,b), direction) for the positions
// a and b in the live array, under cell c's effective direction.
func (e *ExecutionEngine) outOfOrder(c *Cell, a, b int) bool {
	sign := e.cmp(e.cells[a].Value, e.cells[b].Value)
	return outOfOrder(sign, e.directionFor(c))
}

// isLeftSorted walks k=0..i-1 tracking the previous in-chain value. FREEZE
// cells reset the chain (spec.md §4.5/GLOSSARY).
func (e *ExecutionEngine) isLeftSorted(i int, direction Direction) bool {
	havePrev := false
	var prev any
	for k := 0; k < i; k++ {
		if e.cells[k].Status == StatusFreeze {
			havePrev = false
			continue
		}
		if havePrev {
			if outOfOrder(e.cmp(prev, e.cells[k].Value), direction) {
				return false
			}
		}
		prev = e.cells[k].Value
		havePrev = true
	}
	return true
}

// Reset reinitializes all SELECTION idealPos values, clears counters, and
// clears probe history (spec.md §4.5).
func (e *ExecutionEngine) Reset() {
	for _, c := range e.cells {
		if c.Algotype == Selection {
			c.UpdateForBoundary(c.LeftBoundary, c.RightBoundary)
		}
	}
	e.swap.Reset()
	e.probe.Clear()
	e.step = 0
	e.lastSwapStep = 0
	e.converged = false
	e.detector.Reset()
}

// RunUntilConvergence steps the engine until the detector reports
// convergence or maxSteps is reached, whichever comes first. It returns the
// number of steps actually taken.
func (e *ExecutionEngine) RunUntilConvergence(maxSteps int) (int, error) {
	for e.step < maxSteps {
		if _, err := e.Step(); err != nil {
			return e.step, err
		}
		if e.converged {
			break
		}
	}
	return e.step, nil
}
