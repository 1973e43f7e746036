package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GroupStatus is a CellGroup's lifecycle state (spec.md §4.6).
type GroupStatus int

const (
	GroupActive GroupStatus = iota
	GroupMerging
	GroupSleep
	GroupMerged
)

func (s GroupStatus) String() string {
	switch s {
	case GroupMerging:
		return "MERGING"
	case GroupSleep:
		return "SLEEP"
	case GroupMerged:
		return "MERGED"
	default:
		return "ACTIVE"
	}
}

// CellGroup is a per-group worker over a contiguous index range [Left,
// Right]. It coordinates with peer groups through a single shared global
// lock, per spec.md §4.6/§5.
//
// Grounded on the teacher's splitRows row segmentation (step_par.go),
// generalized from a one-shot static split into a long-lived worker with
// its own sleep/wake cadence and merge lifecycle.
type CellGroup struct {
	ID          string
	Left, Right int
	Status      GroupStatus
	Algotype    Algotype
	Direction   Direction
	PhasePeriod time.Duration
	Cells       []*Cell

	cmp        Comparator
	globalLock *sync.Mutex
	log        zerolog.Logger
}

// NewCellGroup builds a CellGroup. globalLock is the single process-wide
// mutex shared by every group and the ExecutionEngine in LOCK_PROTECTED
// mode (spec.md §9: "a single process-wide mutex is adequate and
// intentional").
func NewCellGroup(groupID string, cells []*Cell, left, right int, algotype Algotype, direction Direction, phasePeriod time.Duration, globalLock *sync.Mutex, cmp Comparator, log zerolog.Logger) *CellGroup {
	if groupID == "" {
		groupID = uuid.NewString()
	}
	for _, c := range cells {
		c.GroupID = groupID
		c.LeftBoundary = left
		c.RightBoundary = right
	}
	return &CellGroup{
		ID:          groupID,
		Left:        left,
		Right:       right,
		Status:      GroupActive,
		Algotype:    algotype,
		Direction:   direction,
		PhasePeriod: phasePeriod,
		Cells:       cells,
		cmp:         cmp,
		globalLock:  globalLock,
		log:         log,
	}
}

// allMembersInactive reports whether every member cell has reached
// StatusInactive.
func (g *CellGroup) allMembersInactive() bool {
	for _, c := range g.Cells {
		if c.Status != StatusInactive {
			return false
		}
	}
	return true
}

// IsGroupSorted walks members in group order, skipping SLEEP/MOVING
// (not authoritative), and reports whether all compared adjacent pairs are
// in order under the group's direction (spec.md §4.6).
func (g *CellGroup) IsGroupSorted() bool {
	var prev *Cell
	for _, c := range g.Cells {
		if c.Status == StatusSleep || c.Status == StatusMoving {
			continue
		}
		if prev != nil {
			if outOfOrder(g.cmp(prev.Value, c.Value), g.Direction) {
				return false
			}
		}
		prev = c
	}
	return true
}

// FindNextGroup returns the group in groups whose Left equals this group's
// Right+1, or nil if none exists. Merges are right-biased per spec.md §4.6.
func (g *CellGroup) FindNextGroup(groups []*CellGroup) *CellGroup {
	for _, other := range groups {
		if other == g {
			continue
		}
		if other.Left == g.Right+1 {
			return other
		}
	}
	return nil
}

// MergeWithGroup absorbs next into g. The caller must already hold
// globalLock (spec.md §4.6: "Atomically (under the global lock)"). Merging
// a group whose status is not ACTIVE/SLEEP is a silent no-op.
func (g *CellGroup) MergeWithGroup(next *CellGroup) error {
	if next.Status != GroupActive && next.Status != GroupSleep {
		return nil
	}
	if next.Left != g.Right+1 {
		return fmt.Errorf("merge target %s is not adjacent to %s (left=%d, want %d): %w", next.ID, g.ID, next.Left, g.Right+1, ErrInvariantViolated)
	}

	g.Status = GroupMerging
	next.Status = GroupMerging

	mergedLeft, mergedRight := g.Left, next.Right
	for _, c := range next.Cells {
		c.GroupID = g.ID
		c.UpdateForGroupMerge(mergedLeft, mergedRight)
	}
	for _, c := range g.Cells {
		c.LeftBoundary, c.RightBoundary = mergedLeft, mergedRight
	}

	g.Right = next.Right
	g.Cells = append(g.Cells, next.Cells...)
	next.Status = GroupMerged
	g.Status = GroupActive

	g.log.Info().Str("absorbing", g.ID).Str("absorbed", next.ID).Int("left", g.Left).Int("right", g.Right).Msg("group: merge complete")
	return nil
}

// ChangeStatus toggles ACTIVE<->SLEEP collectively by swapping every member
// cell's Status with its PreviousStatus, under the global lock (spec.md
// §4.6).
func (g *CellGroup) ChangeStatus() {
	g.globalLock.Lock()
	defer g.globalLock.Unlock()
	for _, c := range g.Cells {
		c.Status, c.PreviousStatus = c.PreviousStatus, c.Status
	}
}

// Run executes the worker loop described in spec.md §4.6 until the group
// terminates (MERGED or all members INACTIVE) or ctx is cancelled.
func (g *CellGroup) Run(ctx context.Context, groups []*CellGroup) error {
	for {
		if ctx.Err() != nil {
			return fmt.Errorf("group %s: %w", g.ID, ErrInterrupted)
		}
		if g.Status == GroupMerged || g.allMembersInactive() {
			return nil
		}

		if err := g.tick(groups); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("group %s: %w", g.ID, ErrInterrupted)
		case <-time.After(g.PhasePeriod):
		}
		if g.Status == GroupMerged || g.allMembersInactive() {
			return nil
		}
		g.ChangeStatus()
	}
}

// tick performs steps 2-4 of the worker loop: acquire the global lock,
// merge into the next group if sorted and adjacent, release the lock.
func (g *CellGroup) tick(groups []*CellGroup) error {
	g.globalLock.Lock()
	defer g.globalLock.Unlock()

	if !g.IsGroupSorted() {
		return nil
	}
	next := g.FindNextGroup(groups)
	if next == nil {
		return nil
	}
	if next.Status != GroupActive && next.Status != GroupSleep {
		return nil
	}
	return g.MergeWithGroup(next)
}
