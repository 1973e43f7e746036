package engine

import "errors"

// Error kinds, matched with errors.Is. These are semantic categories, not
// per-call messages; call sites wrap them with fmt.Errorf("...: %w", Err...)
// to add context.
var (
	// ErrCapabilityMissing means a cell lacked a facet required by its
	// algotype or role. Fatal; bubbles to the caller.
	ErrCapabilityMissing = errors.New("engine: capability missing")

	// ErrInvariantViolated indicates a broken structural invariant, e.g.
	// non-contiguous group boundaries after a merge. A bug indicator.
	ErrInvariantViolated = errors.New("engine: invariant violated")

	// ErrInterrupted marks cooperative cancellation. Recovered locally by
	// workers; surfaced by the coordinator once cleanup completes.
	ErrInterrupted = errors.New("engine: interrupted")

	// ErrExecutionFailed means a trial raised an exceptional condition.
	ErrExecutionFailed = errors.New("engine: execution failed")

	// ErrConfigInvalid is returned at configuration build time, never at
	// run time.
	ErrConfigInvalid = errors.New("engine: config invalid")
)
