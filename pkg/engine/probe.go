package engine

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// CellTypeRecord is one cell's type snapshot within a StepSnapshot: its
// group, algotype label, value, and whether it is currently frozen.
type CellTypeRecord struct {
	GroupID  string
	Algotype Algotype
	Value    any
	Frozen   bool
}

// StepSnapshot captures one step's state: the step number, the ordered
// per-cell values, the ordered per-cell type records, and the local swap
// count observed during that step.
type StepSnapshot struct {
	Step      int
	Values    []any
	Types     []CellTypeRecord
	SwapCount int64
}

// Probe records per-step snapshots and accumulates counters. Recording can
// be disabled for memory-constrained batch runs (spec.md §4.7, §5); the
// counters keep accumulating regardless, since they are O(1).
//
// Grounded on the teacher's Count/PrintWorld census helpers (world.go),
// promoted from ad hoc debug printing into a structured, disableable
// recorder.
type Probe struct {
	recordingEnabled bool
	log              zerolog.Logger

	mu        sync.Mutex
	snapshots []StepSnapshot

	swapCount          atomic.Int64
	compareAndSwapCount atomic.Int64
	frozenSwapAttempts atomic.Int64
}

// NewProbe builds a Probe. When recordingEnabled is false, Record is a
// cheap no-op beyond counter updates.
func NewProbe(recordingEnabled bool, log zerolog.Logger) *Probe {
	return &Probe{recordingEnabled: recordingEnabled, log: log}
}

// Record appends a step snapshot (if recording is enabled) and folds the
// step's local swap count into the running total.
func (p *Probe) Record(snap StepSnapshot) {
	p.swapCount.Add(snap.SwapCount)
	if !p.recordingEnabled {
		return
	}
	p.mu.Lock()
	p.snapshots = append(p.snapshots, snap)
	p.mu.Unlock()
	p.log.Debug().Int("step", snap.Step).Int64("swaps", snap.SwapCount).Msg("probe: step recorded")
}

// IncCompareAndSwap records one move-predicate evaluation, regardless of
// its outcome (spec.md §4.7).
func (p *Probe) IncCompareAndSwap() { p.compareAndSwapCount.Add(1) }

// IncFrozenSwapAttempt records one swap rejected due to frozen state.
func (p *Probe) IncFrozenSwapAttempt() { p.frozenSwapAttempts.Add(1) }

// Counters returns (swapCount, compareAndSwapCount, frozenSwapAttempts).
func (p *Probe) Counters() (swap, compareAndSwap, frozenAttempts int64) {
	return p.swapCount.Load(), p.compareAndSwapCount.Load(), p.frozenSwapAttempts.Load()
}

// Snapshots returns a read-only copy of the recorded snapshot sequence.
func (p *Probe) Snapshots() []StepSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StepSnapshot, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// AlgotypeDistribution returns the count of each algotype present in the
// snapshot at the given step index (not step number — the index into the
// recorded sequence), or nil if out of range.
func (p *Probe) AlgotypeDistribution(snapshotIndex int) map[Algotype]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snapshotIndex < 0 || snapshotIndex >= len(p.snapshots) {
		return nil
	}
	dist := make(map[Algotype]int)
	for _, t := range p.snapshots[snapshotIndex].Types {
		dist[t.Algotype]++
	}
	return dist
}

// Clear resets history and counters.
func (p *Probe) Clear() {
	p.mu.Lock()
	p.snapshots = nil
	p.mu.Unlock()
	p.swapCount.Store(0)
	p.compareAndSwapCount.Store(0)
	p.frozenSwapAttempts.Store(0)
}

// SnapshotFromCells builds a StepSnapshot from the current array state.
// frozenAt reports whether index i is currently frozen (any non-NONE kind).
func SnapshotFromCells(step int, cells []*Cell, frozenAt func(i int) bool, swapCount int64) StepSnapshot {
	values := make([]any, len(cells))
	types := make([]CellTypeRecord, len(cells))
	for i, c := range cells {
		values[i] = c.Value
		frozen := frozenAt != nil && frozenAt(i)
		types[i] = CellTypeRecord{
			GroupID:  c.GroupID,
			Algotype: c.Algotype,
			Value:    c.Value,
			Frozen:   frozen,
		}
	}
	return StepSnapshot{Step: step, Values: values, Types: types, SwapCount: swapCount}
}
