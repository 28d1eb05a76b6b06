package runner

import (
	"context"

	"github.com/signalnine/crucible/internal/cluster"
	"github.com/signalnine/crucible/internal/logging"
	"github.com/signalnine/crucible/internal/stage"
)

// Trial runs one ordered list of attempts against a fresh pair of client
// handles. The handles are owned exclusively by the trial and discarded
// with it.
type Trial struct {
	Old      cluster.Client
	New      cluster.Client
	Attempts []stage.Attempt
	Log      logging.Logger
}

// Run executes every stage in order and collects the comparisons.
//
// Fail-fast: once a stage's last comparison carries a failure on either
// side, remaining stages never run for this trial: the environment may be
// corrupted, so downstream results would be meaningless. The trial still
// returns cleanly; the campaign simply starts a fresh one. Fatal errors and
// protocol violations propagate to the caller instead.
func (t *Trial) Run(ctx context.Context) ([]Comparison, error) {
	log := t.Log
	if log == nil {
		log = logging.Null()
	}
	var comps []Comparison
	for _, att := range t.Attempts {
		before := len(comps)
		err := compareAttempt(ctx, att, t.Old, t.New, log, func(c Comparison) {
			comps = append(comps, c)
		})
		if err != nil {
			return nil, err
		}
		if len(comps) > before {
			last := comps[len(comps)-1]
			if !last.OldPassed || !last.NewPassed {
				log.Printf("%s: stage failed, abandoning remaining stages", last.TestID)
				break
			}
		}
	}
	return comps, nil
}
