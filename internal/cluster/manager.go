package cluster

import (
	"context"
	"fmt"
	"os"

	"github.com/signalnine/crucible/internal/logging"
)

// Manager owns the environment lifecycle around a suite run: log directory
// setup on the way in, fallback teardown on the way out.
type Manager struct {
	LogDir string
	Log    logging.Logger
}

func NewManager(logDir string, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Null()
	}
	return &Manager{LogDir: logDir, Log: log}
}

// BootedContext runs fn inside the environment lifecycle scope.
//
// The fallback teardown (kill-controller) runs only when fn returns an
// error. A clean return, including one where stages reported failures,
// means the suite's own destroy-environment stage was authoritative and
// the fallback stays suppressed.
func (m *Manager) BootedContext(ctx context.Context, client Client, fn func(context.Context) error) (err error) {
	if m.LogDir != "" {
		if mkErr := os.MkdirAll(m.LogDir, 0o755); mkErr != nil {
			return fmt.Errorf("creating log dir: %w", mkErr)
		}
	}
	defer func() {
		if err == nil {
			return
		}
		m.Log.Printf("suite aborted, tearing down environment: %v", err)
		// The original context may already be canceled; teardown still
		// has to be attempted.
		if kerr := client.KillController(context.Background()); kerr != nil {
			m.Log.Printf("fallback kill-controller: %v", kerr)
		}
	}()
	return fn(ctx)
}
