// Command edesim is a minimal demonstration binary for the Emergent Doom
// Engine core. It is a collaborator, not core: flag parsing, value
// generation, and result printing all live here, the way spec.md §1 scopes
// CLI front-ends out of the core library.
//
// Grounded on the teacher's main.go: flag definitions and a terminal-mode
// step loop, generalized from Fish/Shark counts to algotype-mix fractions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/zfifteen/emergent-doom-engine/internal/obslog"
	"github.com/zfifteen/emergent-doom-engine/pkg/engine"
)

func main() {
	size := flag.Int("size", 100, "array size")
	steps := flag.Int("steps", 5000, "max steps per trial")
	reps := flag.Int("reps", 1, "number of trial repetitions")
	mode := flag.String("mode", "seq", "seq, lock, or par (execution mode)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "root random seed")
	bubbleFrac := flag.Float64("bubble", 1.0, "fraction of BUBBLE cells")
	insertionFrac := flag.Float64("insertion", 0.0, "fraction of INSERTION cells")
	selectionFrac := flag.Float64("selection", 0.0, "fraction of SELECTION cells")
	direction := flag.String("direction", "asc", "asc, desc, alternating, or random")
	quiet := flag.Bool("quiet", false, "suppress per-trial printing")

	flag.Parse()

	dirStrategy := parseDirectionStrategy(*direction)
	mode2 := parseExecutionMode(*mode)

	cfg := engine.DefaultConfig()
	cfg.ArraySize = *size
	cfg.MaxSteps = *steps
	cfg.NumRepetitions = *reps
	cfg.Mode = mode2
	cfg.Seed = *seed
	cfg.AlgotypeMix = map[engine.Algotype]float64{
		engine.Bubble:    *bubbleFrac,
		engine.Insertion: *insertionFrac,
		engine.Selection: *selectionFrac,
	}
	cfg.DirectionStrategy = dirStrategy

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := obslog.New("edesim")
	if *quiet {
		logger = obslog.Silent()
	}

	coordinator := &engine.ExperimentCoordinator{
		Config:     cfg,
		Comparator: intComparator,
		Topology: func(seed int64) engine.Topology {
			return engine.NewLinearTopology(cfg.Mode != engine.Sequential, seed)
		},
		Population: func(seed int64) ([]*engine.Cell, error) {
			return engine.ChimericPopulation{
				Values:            shuffledInts(cfg.ArraySize, seed),
				AlgotypeMix:       cfg.AlgotypeMix,
				DirectionStrategy: cfg.DirectionStrategy,
				Seed:              seed,
			}.Build()
		},
		Metrics: map[string]engine.MetricFunc{
			"sortedness": func(cells []*engine.Cell) float64 {
				return engine.Sortedness(cells, intComparator, engine.Ascending)
			},
			"monotonicityError": func(cells []*engine.Cell) float64 {
				return float64(engine.MonotonicityError(cells, intComparator, engine.Ascending))
			},
			"algotypeAggregation": func(cells []*engine.Cell) float64 {
				return engine.AlgotypeAggregationIndex(cells)
			},
		},
		Log: logger,
	}

	start := time.Now()
	result, err := coordinator.Run(context.Background())
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("mode=%s reps=%d size=%d meanSteps=%.2f convergenceRate=%.2f sortedness=%.2f monotonicityError=%.2f algotypeAggregation=%.2f time=%v\n",
		cfg.Mode, cfg.NumRepetitions, cfg.ArraySize, result.MeanSteps, result.ConvergenceRate,
		result.MetricMeans["sortedness"], result.MetricMeans["monotonicityError"],
		result.MetricMeans["algotypeAggregation"], elapsed)
}

func intComparator(a, b any) int {
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

func shuffledInts(n int, seed int64) []any {
	values := make([]any, n)
	for i := range values {
		values[i] = i
	}
	rand.New(rand.NewSource(seed)).Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })
	return values
}

func parseDirectionStrategy(s string) engine.DirectionStrategy {
	switch s {
	case "desc":
		return engine.AllDescending
	case "alternating":
		return engine.Alternating
	case "random":
		return engine.RandomDirection
	default:
		return engine.AllAscending
	}
}

func parseExecutionMode(s string) engine.ExecutionMode {
	switch s {
	case "lock":
		return engine.LockProtected
	case "par":
		return engine.ParallelTrials
	default:
		return engine.Sequential
	}
}
