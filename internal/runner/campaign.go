package runner

import (
	"context"
	"fmt"

	"github.com/signalnine/crucible/internal/cluster"
	"github.com/signalnine/crucible/internal/logging"
	"github.com/signalnine/crucible/internal/result"
	"github.com/signalnine/crucible/internal/stage"
)

// ClientFactory builds a fresh client handle for the binary at path. Called
// twice per trial, once per build.
type ClientFactory func(path string) cluster.Client

// Campaign repeats trials until the last declared test has accumulated
// AttemptCount attempts or MaxAttempts trials have run, and aggregates the
// per-test counters.
type Campaign struct {
	Attempts     []stage.Attempt
	OldPath      string
	NewPath      string
	NewClient    ClientFactory
	AttemptCount int
	MaxAttempts  int
	Log          logging.Logger
}

// MakeResults builds one zeroed row per declared test id, in declaration
// order.
func (c *Campaign) MakeResults() *result.Set {
	set := &result.Set{}
	for _, att := range c.Attempts {
		for _, info := range att.TestInfo() {
			set.Results = append(set.Results, &result.Row{
				Title:    info.Title,
				TestID:   info.TestID,
				ReportOn: info.ReportOn,
			})
		}
	}
	return set
}

// RunTests drives trials until the target is met or the budget runs out.
// Every trial gets brand-new client handles. The returned set always holds
// one row per declared test id, even for tests never reached.
func (c *Campaign) RunTests(ctx context.Context) (*result.Set, error) {
	set := c.MakeResults()
	if len(set.Results) == 0 {
		return set, nil
	}
	last := set.Results[len(set.Results)-1]
	for i := 0; i < c.MaxAttempts && last.Attempts < c.AttemptCount; i++ {
		trial := &Trial{
			Old:      c.NewClient(c.OldPath),
			New:      c.NewClient(c.NewPath),
			Attempts: c.Attempts,
			Log:      c.Log,
		}
		comps, err := trial.Run(ctx)
		if err != nil {
			return set, err
		}
		if err := UpdateResults(comps, set, c.AttemptCount); err != nil {
			return set, err
		}
	}
	return set, nil
}

// UpdateResults folds one trial's comparisons into the aggregate rows.
//
// Pairing is positional in declaration order: a trial that fail-fasted
// produced no comparisons for later rows, which stay untouched this round.
// Rows already at the attempt target are skipped without disturbing the
// pairing, so earlier-declared tests can end up with fewer increments than
// later ones across a run. That asymmetry is a deliberate property of the
// aggregation, not a bug.
func UpdateResults(comps []Comparison, set *result.Set, attemptCount int) error {
	n := len(set.Results)
	if len(comps) < n {
		n = len(comps)
	}
	for i := 0; i < n; i++ {
		row, comp := set.Results[i], comps[i]
		if row.TestID != comp.TestID {
			return &ViolationError{Reason: fmt.Sprintf(
				"comparison %q does not match result row %q", comp.TestID, row.TestID)}
		}
		if row.Attempts >= attemptCount {
			continue
		}
		row.Attempts++
		if !comp.OldPassed {
			row.OldFailures++
		}
		if !comp.NewPassed {
			row.NewFailures++
		}
	}
	return nil
}
