package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 1: small ascending bubble.
func TestScenario_SmallAscendingBubble(t *testing.T) {
	cells := cellsOf([]int{5, 2, 8, 1, 9}, Bubble, Ascending)
	eng := newBasicEngine(cells, false)

	steps, err := eng.RunUntilConvergence(1000)
	require.NoError(t, err)
	require.True(t, eng.HasConverged())
	require.Greater(t, steps, 0)
	require.Equal(t, []int{1, 2, 5, 8, 9}, valuesOf(eng.Cells()))
}

// Scenario 2: small descending insertion.
func TestScenario_SmallDescendingInsertion(t *testing.T) {
	cells := cellsOf([]int{3, 1, 2}, Insertion, Descending)
	eng := newBasicEngine(cells, false)

	_, err := eng.RunUntilConvergence(1000)
	require.NoError(t, err)
	require.True(t, eng.HasConverged())
	require.Equal(t, []int{3, 2, 1}, valuesOf(eng.Cells()))
}

// Scenario 3: selection ideal-pos.
func TestScenario_SelectionIdealPos(t *testing.T) {
	cells := cellsOf([]int{3, 1, 2, 0}, Selection, Ascending)
	eng := newBasicEngine(cells, false)

	_, err := eng.RunUntilConvergence(1000)
	require.NoError(t, err)
	require.True(t, eng.HasConverged())
	require.Equal(t, []int{0, 1, 2, 3}, valuesOf(eng.Cells()))
}

// Scenario 4: frozen landmark resets the isLeftSorted chain.
func TestScenario_FrozenLandmarkResetsChain(t *testing.T) {
	cells := cellsOf([]int{5, 99, 3, 1}, Insertion, Descending)
	cells[1].Status = StatusFreeze

	swapEng := NewSwapEngine(NewFrozenState())
	swapEng.Frozen().Set(1, FrozenMovable)
	probe := NewProbe(false, silentLogger())
	topo := NewLinearTopology(false, 1)
	detector := NewNoSwapForK(3)
	eng := NewExecutionEngine(cells, topo, swapEng, probe, detector, intCmp, silentLogger())

	require.True(t, eng.isLeftSorted(3, Descending))
}

// Scenario 5: chimeric 50/50 Bubble/Selection, N=100 — AlgotypeAggregationIndex
// traces a delayed-gratification curve: it rises above its shuffled-start
// baseline as swaps transiently cluster like algotypes together, then falls
// back once sorting dominates adjacency.
func TestScenario_ChimericAggregationRisesThenFalls(t *testing.T) {
	n := 100
	values := make([]any, n)
	for i := range values {
		values[i] = i
	}
	rand.New(rand.NewSource(17)).Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })

	pop := ChimericPopulation{
		Values:            values,
		AlgotypeMix:       map[Algotype]float64{Bubble: 0.5, Selection: 0.5},
		DirectionStrategy: AllAscending,
		Seed:              23,
	}
	cells, err := pop.Build()
	require.NoError(t, err)

	eng := newBasicEngine(cells, false)
	eng.detector = NewNoSwapForK(5)

	initial := AlgotypeAggregationIndex(eng.Cells())
	peak := initial
	for step := 0; step < 5000; step++ {
		_, err := eng.Step()
		require.NoError(t, err)
		if idx := AlgotypeAggregationIndex(eng.Cells()); idx > peak {
			peak = idx
		}
		if eng.HasConverged() {
			break
		}
	}
	final := AlgotypeAggregationIndex(eng.Cells())

	require.InDelta(t, 50, initial, 15)
	require.GreaterOrEqual(t, peak, initial+5)
	require.GreaterOrEqual(t, peak, 55.0)
	require.LessOrEqual(t, peak, 80.0)
	require.Greater(t, peak, final)
}

// Invariant 1: swapCount <= compareAndSwapCount.
func TestInvariant_SwapCountNeverExceedsCompareAndSwapCount(t *testing.T) {
	cells := cellsOf([]int{9, 3, 7, 1, 5, 2, 8, 4, 6, 0}, Bubble, Ascending)
	eng := newBasicEngine(cells, false)

	_, err := eng.RunUntilConvergence(10_000)
	require.NoError(t, err)

	swap, compareAndSwap, _ := eng.probe.Counters()
	require.LessOrEqual(t, swap, compareAndSwap)
}

// Invariant 2: Step preserves array length and the multiset of cells.
func TestInvariant_StepPreservesMultiset(t *testing.T) {
	cells := cellsOf([]int{5, 2, 8, 1, 9}, Bubble, Ascending)
	eng := newBasicEngine(cells, false)

	before := map[*Cell]bool{}
	for _, c := range cells {
		before[c] = true
	}

	_, err := eng.Step()
	require.NoError(t, err)

	require.Len(t, eng.Cells(), 5)
	after := map[*Cell]bool{}
	for _, c := range eng.Cells() {
		after[c] = true
	}
	require.Equal(t, before, after)
}

// Invariant 6: isLeftSorted holds everywhere once an insertion run converges
// on a sortable array.
func TestInvariant_IsLeftSortedHoldsAfterConvergence(t *testing.T) {
	cells := cellsOf([]int{5, 2, 8, 1, 9, 3, 7, 6, 0, 4}, Insertion, Ascending)
	eng := newBasicEngine(cells, false)

	_, err := eng.RunUntilConvergence(100_000)
	require.NoError(t, err)
	require.True(t, eng.HasConverged())

	for i := range eng.Cells() {
		require.True(t, eng.isLeftSorted(i, Ascending), "index %d", i)
	}
}

// Boundary: N=1 converges immediately with zero swaps.
func TestBoundary_SingleCellConvergesImmediately(t *testing.T) {
	cells := cellsOf([]int{42}, Bubble, Ascending)
	eng := newBasicEngine(cells, false)

	steps, err := eng.RunUntilConvergence(1000)
	require.NoError(t, err)
	require.True(t, eng.HasConverged())
	swap, _, _ := eng.probe.Counters()
	require.Equal(t, int64(0), swap)
	require.LessOrEqual(t, steps, 4)
}

// Boundary: already-sorted input produces zero swaps but nonzero
// compareAndSwapCount, converging within K+1 steps.
func TestBoundary_AlreadySortedProducesZeroSwaps(t *testing.T) {
	cells := cellsOf([]int{1, 2, 3, 4, 5}, Bubble, Ascending)
	eng := newBasicEngine(cells, false)

	steps, err := eng.RunUntilConvergence(1000)
	require.NoError(t, err)
	require.True(t, eng.HasConverged())

	swap, compareAndSwap, _ := eng.probe.Counters()
	require.Equal(t, int64(0), swap)
	require.Greater(t, compareAndSwap, int64(0))
	require.LessOrEqual(t, steps, 4) // K=3 default + 1
}

// Boundary: an all-IMMOVABLE array converges immediately; every rejected
// swap attempt is counted as a frozen attempt.
func TestBoundary_AllImmovableConvergesImmediately(t *testing.T) {
	cells := cellsOf([]int{5, 2, 8, 1, 9}, Bubble, Ascending)
	frozen := NewFrozenState()
	for i := range cells {
		frozen.Set(i, FrozenImmovable)
	}
	swapEng := NewSwapEngine(frozen)
	probe := NewProbe(false, silentLogger())
	topo := NewLinearTopology(false, 1)
	detector := NewNoSwapForK(3)
	eng := NewExecutionEngine(cells, topo, swapEng, probe, detector, intCmp, silentLogger())

	_, err := eng.RunUntilConvergence(1000)
	require.NoError(t, err)
	require.True(t, eng.HasConverged())

	swap, _, frozenAttempts := probe.Counters()
	require.Equal(t, int64(0), swap)
	require.Greater(t, frozenAttempts, int64(0))
}

// Round-trip: Reset is idempotent.
func TestEngine_ResetIsIdempotent(t *testing.T) {
	cells := cellsOf([]int{3, 1, 2, 0}, Selection, Ascending)
	eng := newBasicEngine(cells, false)
	_, err := eng.RunUntilConvergence(1000)
	require.NoError(t, err)

	eng.Reset()
	firstIdeal := make([]int, len(cells))
	for i, c := range cells {
		firstIdeal[i] = c.IdealPos
	}

	eng.Reset()
	for i, c := range cells {
		require.Equal(t, firstIdeal[i], c.IdealPos)
	}
}

// Determinism: SEQUENTIAL mode with a fixed seed produces identical
// snapshot sequences across two runs.
func TestEngine_DeterministicUnderFixedSeed(t *testing.T) {
	build := func() *ExecutionEngine {
		cells := cellsOf([]int{5, 2, 8, 1, 9, 3}, Bubble, Ascending)
		topo := NewLinearTopology(true, 42)
		swapEng := NewSwapEngine(NewFrozenState())
		probe := NewProbe(true, silentLogger())
		detector := NewNoSwapForK(3)
		return NewExecutionEngine(cells, topo, swapEng, probe, detector, intCmp, silentLogger())
	}

	e1 := build()
	_, err := e1.RunUntilConvergence(1000)
	require.NoError(t, err)

	e2 := build()
	_, err = e2.RunUntilConvergence(1000)
	require.NoError(t, err)

	snaps1 := e1.probe.Snapshots()
	snaps2 := e2.probe.Snapshots()
	require.Equal(t, len(snaps1), len(snaps2))
	for i := range snaps1 {
		require.Equal(t, snaps1[i].Values, snaps2[i].Values)
		require.Equal(t, snaps1[i].SwapCount, snaps2[i].SwapCount)
	}
}
