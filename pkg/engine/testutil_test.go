package engine

import (
	"io"

	"github.com/rs/zerolog"
)

func silentLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func intCmp(a, b any) int {
	av, bv := a.(int), b.(int)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func valuesOf(cells []*Cell) []int {
	out := make([]int, len(cells))
	for i, c := range cells {
		out[i] = c.Value.(int)
	}
	return out
}

func cellsOf(values []int, algotype Algotype, direction Direction) []*Cell {
	cells := make([]*Cell, len(values))
	for i, v := range values {
		c := NewCell(v, algotype, direction)
		c.UpdateForBoundary(0, len(values)-1)
		cells[i] = c
	}
	return cells
}

func newBasicEngine(cells []*Cell, shuffle bool) *ExecutionEngine {
	topo := NewLinearTopology(shuffle, 1)
	swapEng := NewSwapEngine(NewFrozenState())
	probe := NewProbe(true, silentLogger())
	detector := NewNoSwapForK(3)
	return NewExecutionEngine(cells, topo, swapEng, probe, detector, intCmp, silentLogger())
}
