package runner

import (
	"context"
	"fmt"

	"github.com/signalnine/crucible/internal/cluster"
	"github.com/signalnine/crucible/internal/logging"
	"github.com/signalnine/crucible/internal/stage"
)

// Comparison pairs one test id's verdicts from the old and new builds.
type Comparison struct {
	TestID    string
	OldPassed bool
	NewPassed bool
}

// compareAttempt drives att against both clients and emits one Comparison
// per test id. Each side's step stream runs in its own goroutine, so a slow
// operation on one side overlaps the matching operation on the other even
// though this loop pulls sequentially. Stops when either side is exhausted;
// mismatched test ids between the sides are a protocol violation.
//
// Both sources are closed on every exit path; each close has its own defer
// so the new side is released even if releasing the old side misbehaves.
func compareAttempt(ctx context.Context, att stage.Attempt, oldClient, newClient cluster.Client,
	log logging.Logger, emit func(Comparison)) error {

	fallback := ""
	if infos := att.TestInfo(); len(infos) > 0 {
		fallback = infos[0].TestID
	}
	oldSide := newOutcomes(att.Steps(ctx, oldClient), fallback, log)
	newSide := newOutcomes(att.Steps(ctx, newClient), fallback, log)
	defer newSide.Close()
	defer oldSide.Close()

	for {
		oldOut, ok, err := oldSide.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		newOut, ok, err := newSide.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if oldOut.TestID != newOut.TestID {
			return &ViolationError{Reason: fmt.Sprintf(
				"mismatched test ids from paired streams: old %q, new %q",
				oldOut.TestID, newOut.TestID)}
		}
		log.Printf("%s: old client %s", oldOut.TestID, logging.Verdict(oldOut.Passed))
		log.Printf("%s: new client %s", newOut.TestID, logging.Verdict(newOut.Passed))
		emit(Comparison{
			TestID:    oldOut.TestID,
			OldPassed: oldOut.Passed,
			NewPassed: newOut.Passed,
		})
	}
}
