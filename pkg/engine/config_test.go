package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfig_RejectsNonPositiveArraySize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArraySize = 0
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_RejectsNonPositiveMaxSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = -1
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_RejectsNonPositiveRequiredStableSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequiredStableSteps = 0
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_RejectsNonPositiveNumRepetitions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumRepetitions = 0
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_RejectsNonPositiveMaxParallelWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxParallelWorkers = 0
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_RejectsEmptyAlgotypeMix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlgotypeMix = nil
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_RejectsNegativeAlgotypeFraction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlgotypeMix = map[Algotype]float64{Bubble: -0.1, Insertion: 1.1}
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_RejectsMixNotSummingToOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlgotypeMix = map[Algotype]float64{Bubble: 0.5, Insertion: 0.3}
	require.ErrorIs(t, cfg.Validate(), ErrConfigInvalid)
}

func TestConfig_AcceptsMixWithinTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlgotypeMix = map[Algotype]float64{Bubble: 0.3, Insertion: 0.3, Selection: 0.4000000001}
	require.NoError(t, cfg.Validate())
}

func TestExecutionMode_StringsMatchSpecNames(t *testing.T) {
	require.Equal(t, "SEQUENTIAL", Sequential.String())
	require.Equal(t, "LOCK_PROTECTED", LockProtected.String())
	require.Equal(t, "PARALLEL_TRIALS", ParallelTrials.String())
}
