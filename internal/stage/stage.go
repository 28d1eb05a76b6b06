// Package stage declares the multi-step operational scenarios the harness
// drives against both tool builds, and the step streams they produce.
package stage

import (
	"context"
	"errors"

	"github.com/signalnine/crucible/internal/cluster"
)

// Info identifies one named test a stage can emit.
type Info struct {
	TestID   string
	Title    string
	ReportOn bool
}

// Attempt is one named scenario exercised identically against both tool
// builds.
type Attempt interface {
	// TestInfo declares, in order, every test id the attempt's steps may
	// carry. It has no side effects.
	TestInfo() []Info
	// Steps returns a fresh step sequence driving client. Sequences are
	// finite and not restartable; remote operations happen between yields.
	Steps(ctx context.Context, client cluster.Client) *Stream
}

// FatalError aborts the whole suite run instead of counting as a stage
// failure. It propagates through every layer unchanged.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so the run aborts rather than recording a failure.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// IsFatal reports whether err (anywhere in its chain) aborts the run.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// ErrCannotUpgrade means the requested upgrade scenario has no prior
// release to start from. Always fatal: it is a usage problem, not a test
// failure.
var ErrCannotUpgrade = errors.New("no prior release available to upgrade from")
