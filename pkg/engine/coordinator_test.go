package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func intComparatorForTest(a, b any) int {
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

func testCoordinator(mode ExecutionMode, reps int) *ExperimentCoordinator {
	cfg := DefaultConfig()
	cfg.ArraySize = 20
	cfg.Mode = mode
	cfg.NumRepetitions = reps
	cfg.Seed = 5
	cfg.RecordTrajectory = false
	cfg.AlgotypeMix = map[Algotype]float64{Bubble: 1.0}

	return &ExperimentCoordinator{
		Config:     cfg,
		Comparator: intComparatorForTest,
		Topology: func(seed int64) Topology {
			return NewLinearTopology(mode != Sequential, seed)
		},
		Population: func(seed int64) ([]*Cell, error) {
			return ChimericPopulation{
				Values:            intValues(cfg.ArraySize),
				AlgotypeMix:       cfg.AlgotypeMix,
				DirectionStrategy: cfg.DirectionStrategy,
				Seed:              seed,
			}.Build()
		},
		Metrics: map[string]MetricFunc{
			"sortedness": func(cells []*Cell) float64 {
				return Sortedness(cells, intComparatorForTest, Ascending)
			},
		},
		Log: silentLogger(),
	}
}

func TestCoordinator_SequentialRunConverges(t *testing.T) {
	c := testCoordinator(Sequential, 3)
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Trials, 3)
	require.Equal(t, 1.0, result.ConvergenceRate)
	require.Equal(t, 100.0, result.MetricMeans["sortedness"])
}

func TestCoordinator_ParallelTrialsRunConverges(t *testing.T) {
	c := testCoordinator(ParallelTrials, 4)
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Trials, 4)
	require.Equal(t, 1.0, result.ConvergenceRate)
	for i, trial := range result.Trials {
		require.Equal(t, i, trial.TrialIndex)
	}
}

func TestCoordinator_LockProtectedRunConverges(t *testing.T) {
	c := testCoordinator(LockProtected, 2)
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Trials, 2)
	require.Equal(t, 1.0, result.ConvergenceRate)
}

func TestCoordinator_SequentialIsDeterministicAcrossRuns(t *testing.T) {
	run := func() []string {
		c := testCoordinator(Sequential, 2)
		result, err := c.Run(context.Background())
		require.NoError(t, err)
		out := make([]string, len(result.Trials))
		for i, trial := range result.Trials {
			out[i] = fmt.Sprint(valuesOf(trial.FinalCells))
		}
		return out
	}
	require.Equal(t, run(), run())
}

func TestCoordinator_ContextCancellationStopsSequential(t *testing.T) {
	c := testCoordinator(Sequential, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
}

func TestCoordinator_GroupFactoryWiredInLockProtected(t *testing.T) {
	c := testCoordinator(LockProtected, 1)
	var built bool
	c.Groups = func(cells []*Cell, lock *sync.Mutex, seed int64, log zerolog.Logger) ([]*CellGroup, error) {
		built = true
		return nil, nil
	}
	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.True(t, built)
}
