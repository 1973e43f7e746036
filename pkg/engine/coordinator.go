package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// TrialResult is one trial's outcome: final cells, final step, whether it
// converged, an optional trajectory, and per-metric values computed from
// the final state (spec.md §4.10).
type TrialResult struct {
	RunID      string
	TrialIndex int
	FinalCells []*Cell
	FinalStep  int
	Converged  bool
	Trajectory []StepSnapshot
	Metrics    map[string]float64
}

// AggregateResult summarizes a coordinator run across all trials.
type AggregateResult struct {
	Trials           []TrialResult
	MeanSteps        float64
	StdSteps         float64
	ConvergenceRate  float64
	MetricMeans      map[string]float64
	MetricStds       map[string]float64
}

// PopulationFactory builds the cell array for one trial from its
// seed. Grounded on spec.md §1: population construction is a domain
// collaborator's responsibility, so the coordinator only holds a function
// value rather than embedding ChimericPopulation directly.
type PopulationFactory func(seed int64) ([]*Cell, error)

// TopologyFactory builds the Topology for one trial from its seed.
type TopologyFactory func(seed int64) Topology

// GroupFactory builds the CellGroups for one trial, wired to the shared
// global lock, for LOCK_PROTECTED mode. May be nil if the experiment runs
// without groups.
type GroupFactory func(cells []*Cell, lock *sync.Mutex, seed int64, log zerolog.Logger) ([]*CellGroup, error)

// MetricFunc computes one named scalar metric from a trial's final cells.
type MetricFunc func(cells []*Cell) float64

// ExperimentCoordinator runs numRepetitions trials under a chosen
// ExecutionMode, seeding each trial from the root seed and the trial
// index so runs are bit-identical under SEQUENTIAL (spec.md §9 "RNG").
//
// Grounded on the teacher's main.go terminal-mode loop (SEQUENTIAL) and on
// mbflow's bounded-parallel executor shape
// (internal/application/executor/engine.go EngineConfig) for
// PARALLEL_TRIALS/LOCK_PROTECTED.
type ExperimentCoordinator struct {
	Config     Config
	Comparator Comparator
	Topology   TopologyFactory
	Population PopulationFactory
	Groups     GroupFactory
	Metrics    map[string]MetricFunc
	Log        zerolog.Logger
}

// deriveSeed derives a per-trial seed from the root seed and trial index
// (spec.md §9: "a seed derived from the root seed and the trial index").
func deriveSeed(root int64, trialIndex int) int64 {
	return root*1_000_003 + int64(trialIndex)
}

// Run executes all trials under c.Config.Mode and returns the aggregate.
func (c *ExperimentCoordinator) Run(ctx context.Context) (*AggregateResult, error) {
	switch c.Config.Mode {
	case ParallelTrials:
		return c.runParallelTrials(ctx)
	case LockProtected:
		return c.runLockProtected(ctx)
	default:
		return c.runSequential(ctx)
	}
}

func (c *ExperimentCoordinator) runSequential(ctx context.Context) (*AggregateResult, error) {
	results := make([]TrialResult, c.Config.NumRepetitions)
	for i := 0; i < c.Config.NumRepetitions; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("coordinator: %w", ErrInterrupted)
		}
		res, err := c.runTrial(i)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, ErrExecutionFailed)
		}
		results[i] = res
	}
	return aggregate(results), nil
}

// runParallelTrials fans trials out across an errgroup bounded by a
// semaphore, with fail-fast semantics: the first error cancels outstanding
// work (spec.md §4.10, §5).
func (c *ExperimentCoordinator) runParallelTrials(ctx context.Context) (*AggregateResult, error) {
	results := make([]TrialResult, c.Config.NumRepetitions)
	sem := semaphore.NewWeighted(int64(c.Config.MaxParallelWorkers))
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < c.Config.NumRepetitions; i++ {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if gctx.Err() != nil {
				return fmt.Errorf("trial %d: %w", i, ErrInterrupted)
			}
			res, err := c.runTrial(i)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, ErrExecutionFailed)
			}
			results[i] = res
			return nil
		})
	}

	waitErr := c.waitWithGrace(g)
	if waitErr != nil {
		return nil, waitErr
	}
	return aggregate(results), nil
}

// waitWithGrace applies the worker-pool shutdown discipline from spec.md
// §5: request orderly completion, wait up to the configured grace window,
// then report a force-stop timeout. Go goroutines cannot be preempted, so
// "force-stop" here means the coordinator stops waiting and surfaces the
// timeout. It does not cancel any context: goroutines still running at that
// point are left running, and they exit only when their own work finishes
// or when the caller cancels the context they observe.
func (c *ExperimentCoordinator) waitWithGrace(g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	grace := c.Config.ShutdownGrace
	if grace <= 0 {
		grace = 2 * time.Second
	}
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		c.Log.Error().Dur("grace", grace).Msg("coordinator: shutdown grace exceeded, forcing stop")
		return fmt.Errorf("coordinator: shutdown exceeded grace window: %w", ErrExecutionFailed)
	}
}

// runLockProtected runs c.Config.NumRepetitions trials one at a time; each
// trial internally runs one ExecutionEngine goroutine plus one CellGroup
// goroutine per group, all sharing a single global lock (spec.md §4.10,
// §5).
func (c *ExperimentCoordinator) runLockProtected(ctx context.Context) (*AggregateResult, error) {
	results := make([]TrialResult, c.Config.NumRepetitions)
	for i := 0; i < c.Config.NumRepetitions; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("coordinator: %w", ErrInterrupted)
		}
		res, err := c.runTrialLockProtected(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, ErrExecutionFailed)
		}
		results[i] = res
	}
	return aggregate(results), nil
}

func (c *ExperimentCoordinator) runTrialLockProtected(ctx context.Context, trialIndex int) (TrialResult, error) {
	seed := deriveSeed(c.Config.Seed, trialIndex)
	cells, err := c.Population(seed)
	if err != nil {
		return TrialResult{}, err
	}
	topology := c.Topology(seed)
	lock := &sync.Mutex{}
	swapEng := NewSwapEngine(NewFrozenState()).WithLock(lock)
	probe := NewProbe(c.Config.RecordTrajectory, c.Log)
	detector := NewNoSwapForK(c.Config.RequiredStableSteps)
	eng := NewExecutionEngine(cells, topology, swapEng, probe, detector, c.Comparator, c.Log).
		WithCountShortCircuits(c.Config.CountShortCircuits)

	var groups []*CellGroup
	if c.Groups != nil {
		groups, err = c.Groups(cells, lock, seed, c.Log)
		if err != nil {
			return TrialResult{}, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	var steps int
	g.Go(func() error {
		var runErr error
		steps, runErr = eng.RunUntilConvergence(c.Config.MaxSteps)
		return runErr
	})
	for _, grp := range groups {
		grp := grp
		g.Go(func() error { return grp.Run(gctx, groups) })
	}
	if err := c.waitWithGrace(g); err != nil {
		return TrialResult{}, err
	}

	return c.finalizeTrial(trialIndex, cells, steps, eng.HasConverged(), probe), nil
}

func (c *ExperimentCoordinator) runTrial(trialIndex int) (TrialResult, error) {
	seed := deriveSeed(c.Config.Seed, trialIndex)
	cells, err := c.Population(seed)
	if err != nil {
		return TrialResult{}, err
	}
	topology := c.Topology(seed)
	swapEng := NewSwapEngine(NewFrozenState())
	probe := NewProbe(c.Config.RecordTrajectory, c.Log)
	detector := NewNoSwapForK(c.Config.RequiredStableSteps)
	eng := NewExecutionEngine(cells, topology, swapEng, probe, detector, c.Comparator, c.Log).
		WithCountShortCircuits(c.Config.CountShortCircuits)

	steps, err := eng.RunUntilConvergence(c.Config.MaxSteps)
	if err != nil {
		return TrialResult{}, err
	}
	return c.finalizeTrial(trialIndex, cells, steps, eng.HasConverged(), probe), nil
}

func (c *ExperimentCoordinator) finalizeTrial(trialIndex int, cells []*Cell, steps int, converged bool, probe *Probe) TrialResult {
	metrics := make(map[string]float64, len(c.Metrics))
	for name, fn := range c.Metrics {
		metrics[name] = fn(cells)
	}
	var trajectory []StepSnapshot
	if c.Config.RecordTrajectory {
		trajectory = probe.Snapshots()
	}
	return TrialResult{
		RunID:      uuid.NewString(),
		TrialIndex: trialIndex,
		FinalCells: cells,
		FinalStep:  steps,
		Converged:  converged,
		Trajectory: trajectory,
		Metrics:    metrics,
	}
}

func aggregate(results []TrialResult) *AggregateResult {
	n := len(results)
	out := &AggregateResult{
		Trials:      results,
		MetricMeans: map[string]float64{},
		MetricStds:  map[string]float64{},
	}
	if n == 0 {
		return out
	}

	steps := make([]float64, n)
	converged := 0
	for i, r := range results {
		steps[i] = float64(r.FinalStep)
		if r.Converged {
			converged++
		}
	}
	out.MeanSteps, out.StdSteps = meanStd(steps)
	out.ConvergenceRate = float64(converged) / float64(n)

	metricValues := map[string][]float64{}
	for _, r := range results {
		for name, v := range r.Metrics {
			metricValues[name] = append(metricValues[name], v)
		}
	}
	for name, values := range metricValues {
		out.MetricMeans[name], out.MetricStds[name] = meanStd(values)
	}
	return out
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	sqDiff := 0.0
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	std = math.Sqrt(sqDiff / float64(len(values)))
	return mean, std
}
