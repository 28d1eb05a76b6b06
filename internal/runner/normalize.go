package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalnine/crucible/internal/logging"
	"github.com/signalnine/crucible/internal/stage"
)

// Outcome is one terminal pass/fail verdict for a test id on one client.
type Outcome struct {
	TestID string
	Passed bool
}

// outcomes folds a raw step stream into exactly one terminal outcome per
// test id. Progress records are consumed, not surfaced. A recoverable error
// from the stream becomes a failed outcome for the in-flight test id (or
// fallbackID when the stream died before its first step); fatal errors and
// protocol violations propagate unchanged.
type outcomes struct {
	src         *stage.Stream
	fallbackID  string
	log         logging.Logger
	lastID      string
	hasProgress bool
	done        bool
}

func newOutcomes(src *stage.Stream, fallbackID string, log logging.Logger) *outcomes {
	if log == nil {
		log = logging.Null()
	}
	return &outcomes{src: src, fallbackID: fallbackID, log: log}
}

func (o *outcomes) Next(ctx context.Context) (Outcome, bool, error) {
	if o.done {
		return Outcome{}, false, nil
	}
	for {
		st, ok, err := o.src.Next(ctx)
		if err != nil {
			o.done = true
			if stage.IsFatal(err) || IsViolation(err) ||
				errors.Is(err, stage.ErrStreamClosed) || ctx.Err() != nil {
				return Outcome{}, false, err
			}
			id := o.lastID
			if id == "" {
				id = o.fallbackID
			}
			o.log.Printf("%s: stage error: %v", id, err)
			return Outcome{TestID: id, Passed: false}, true, nil
		}
		if !ok {
			o.done = true
			return Outcome{}, false, nil
		}
		if st.TestID != o.lastID {
			o.lastID = st.TestID
			o.hasProgress = false
		}
		if st.Result == nil {
			o.hasProgress = true
			continue
		}
		if !o.hasProgress {
			o.done = true
			return Outcome{}, false, &ViolationError{
				Reason: fmt.Sprintf("result for %q before any progress record", st.TestID),
			}
		}
		o.hasProgress = false
		return Outcome{TestID: st.TestID, Passed: *st.Result}, true, nil
	}
}

// Close releases the underlying step stream. Required on every exit path.
func (o *outcomes) Close() {
	o.src.Close()
}
