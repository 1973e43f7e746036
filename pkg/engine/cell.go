package engine

import "fmt"

// Algotype is the move rule a cell follows. The set is closed: Bubble,
// Insertion, Selection.
type Algotype int

const (
	Bubble Algotype = iota
	Insertion
	Selection
)

func (a Algotype) String() string {
	switch a {
	case Bubble:
		return "BUBBLE"
	case Insertion:
		return "INSERTION"
	case Selection:
		return "SELECTION"
	default:
		return fmt.Sprintf("Algotype(%d)", int(a))
	}
}

// Direction is a cell's sort direction. Immutable per cell once assigned,
// so chimeric (cross-purpose) populations can mix directions freely.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESCENDING"
	}
	return "ASCENDING"
}

// CellStatus is a cell's participation state.
type CellStatus int

const (
	StatusActive CellStatus = iota
	StatusSleep
	StatusMerge
	StatusMoving
	StatusInactive
	StatusError
	StatusFreeze
)

func (s CellStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusSleep:
		return "SLEEP"
	case StatusMerge:
		return "MERGE"
	case StatusMoving:
		return "MOVING"
	case StatusInactive:
		return "INACTIVE"
	case StatusError:
		return "ERROR"
	case StatusFreeze:
		return "FREEZE"
	default:
		return fmt.Sprintf("CellStatus(%d)", int(s))
	}
}

// Comparator returns the sign of (a - b) under a total order supplied by the
// caller. The core never interprets Value itself; it only asks the
// comparator for an ordering sign.
type Comparator func(a, b any) int

// Cell is an autonomous array element: an opaque value plus whichever
// capability facets its algotype and role require. All facets beyond Value,
// Algotype, and Direction are optional to the core — they are populated by
// the domain factory (ChimericPopulation or a collaborator) and validated
// lazily, the first time an operation needs them missing.
type Cell struct {
	Value     any
	Algotype  Algotype
	Direction Direction

	Status         CellStatus
	PreviousStatus CellStatus

	// Group membership. GroupID is the empty string when the cell has no
	// group. LeftBoundary/RightBoundary mirror the owning group's range.
	GroupID      string
	LeftBoundary int
	RightBoundary int

	// Selection-only: the index this cell currently targets.
	IdealPos    int
	hasIdealPos bool

	// Insertion-only: whether the cell may still initiate a move. Merging
	// can latch this to false; the core never re-enables it automatically
	// (see DESIGN.md Open Question 2).
	EnableToMove    bool
	hasEnableToMove bool

	// Frozen is a caller-maintained FrozenKind label. The core neither sets
	// nor reads it: the SwapEngine consults FrozenState (indexed by array
	// position), and snapshots take their frozen flags from FrozenState too.
	Frozen FrozenKind
}

// NewCell builds a cell with the given value, algotype, and direction. Role
// facets (IdealPos, EnableToMove) are populated afterward via
// WithIdealPos/WithEnableToMove as the algotype requires.
func NewCell(value any, algotype Algotype, direction Direction) *Cell {
	c := &Cell{
		Value:        value,
		Algotype:     algotype,
		Direction:    direction,
		Status:       StatusActive,
		PreviousStatus: StatusSleep,
	}
	if algotype == Insertion {
		c.EnableToMove = true
		c.hasEnableToMove = true
	}
	return c
}

// WithIdealPos sets the Selection-only idealPos facet and returns the cell
// for chaining.
func (c *Cell) WithIdealPos(pos int) *Cell {
	c.IdealPos = pos
	c.hasIdealPos = true
	return c
}

// WithEnableToMove sets the Insertion-only enableToMove facet and returns
// the cell for chaining.
func (c *Cell) WithEnableToMove(v bool) *Cell {
	c.EnableToMove = v
	c.hasEnableToMove = true
	return c
}

// RequireIdealPos returns the cell's idealPos facet or ErrCapabilityMissing
// if it was never set (i.e. the cell isn't really being used as SELECTION).
func (c *Cell) RequireIdealPos() (int, error) {
	if !c.hasIdealPos {
		return 0, fmt.Errorf("cell algotype %s missing idealPos facet: %w", c.Algotype, ErrCapabilityMissing)
	}
	return c.IdealPos, nil
}

// RequireEnableToMove returns the cell's enableToMove facet or
// ErrCapabilityMissing if it was never set.
func (c *Cell) RequireEnableToMove() (bool, error) {
	if !c.hasEnableToMove {
		return false, fmt.Errorf("cell algotype %s missing enableToMove facet: %w", c.Algotype, ErrCapabilityMissing)
	}
	return c.EnableToMove, nil
}

// UpdateForBoundary reinitializes idealPos for the new group boundaries, per
// direction: left boundary for ASCENDING, right boundary for DESCENDING.
// Used both by Engine.Reset and by group boundary changes.
func (c *Cell) UpdateForBoundary(left, right int) {
	c.LeftBoundary = left
	c.RightBoundary = right
	if c.Algotype != Selection {
		return
	}
	if c.Direction == Ascending {
		c.WithIdealPos(left)
	} else {
		c.WithIdealPos(right)
	}
}

// UpdateForGroupMerge applies the per-algotype merge hook described in
// spec.md §4.6: SELECTION resets idealPos to the merged boundary; INSERTION
// latches enableToMove false; BUBBLE is a no-op.
func (c *Cell) UpdateForGroupMerge(mergedLeft, mergedRight int) {
	switch c.Algotype {
	case Selection:
		c.UpdateForBoundary(mergedLeft, mergedRight)
	case Insertion:
		c.LeftBoundary, c.RightBoundary = mergedLeft, mergedRight
		c.WithEnableToMove(false)
	case Bubble:
		c.LeftBoundary, c.RightBoundary = mergedLeft, mergedRight
	}
}
