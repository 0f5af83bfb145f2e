package monitor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTooManyParseErrors ends a run whose result file could not be read for
// more consecutive cycles than allowed.
var ErrTooManyParseErrors = errors.New("monitor: too many consecutive result file read errors")

// ErrSolverKilled marks a solver that died from a signal the supervisor did
// not send.
var ErrSolverKilled = errors.New("monitor: solver killed by an external signal")

// SolverError is a solver-reported internal error (positive exit code).
type SolverError struct {
	ExitCode int
	// Tail holds the last lines of the solver log.
	Tail []string
	// Err is set when the log tail itself could not be read.
	Err error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver exited with code %d", e.ExitCode)
}

func (e *SolverError) Unwrap() error { return e.Err }

// Log renders the tail as one block.
func (e *SolverError) Log() string {
	return strings.Join(e.Tail, "\n")
}
