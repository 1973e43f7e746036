// Package obslog provides the engine's conventionally-configured
// zerolog.Logger construction, grounded on the adapter shape of
// joeycumines-go-utilpkg/logiface-zerolog — a thin constructor around a
// zerolog.Logger — simplified since EDE does not need logiface's
// structured-facade abstraction, just a consistently-configured logger.
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger tagged with component, writing to os.Stderr
// in console-friendly form.
func New(component string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Silent returns a logger that discards everything, for tests and
// memory-constrained batch runs that don't want console output.
func Silent() zerolog.Logger {
	return zerolog.New(io.Discard)
}
