package runner

import (
	"context"
	"sync"

	"github.com/signalnine/crucible/internal/cluster"
	"github.com/signalnine/crucible/internal/stage"
)

// stubClient is an inert cluster.Client whose only meaningful property is
// its binary path, which scriptedAttempt uses to pick a script.
type stubClient struct {
	path string
}

func (c *stubClient) BinaryPath() string { return c.path }

func (c *stubClient) WithBinary(path string) cluster.Client {
	return &stubClient{path: path}
}

func (c *stubClient) Bootstrap(context.Context) error      { return nil }
func (c *stubClient) WaitForStarted(context.Context) error { return nil }

func (c *stubClient) Run(context.Context, ...string) ([]byte, error) { return nil, nil }

func (c *stubClient) Status(context.Context) (*cluster.Status, error) {
	return &cluster.Status{}, nil
}

func (c *stubClient) UpgradeController(context.Context) error      { return nil }
func (c *stubClient) WaitForVersion(context.Context, string) error { return nil }
func (c *stubClient) EnableHA(context.Context, int) error          { return nil }
func (c *stubClient) WaitForHA(context.Context, int) error         { return nil }
func (c *stubClient) Backup(context.Context) (string, error)       { return "", nil }
func (c *stubClient) Restore(context.Context, string) error        { return nil }
func (c *stubClient) Deploy(context.Context, string, string) error { return nil }
func (c *stubClient) AddMachine(context.Context) (string, error)   { return "0", nil }
func (c *stubClient) RemoveMachine(context.Context, string) error  { return nil }
func (c *stubClient) ToolVersion(context.Context) (string, error)  { return "1.0.0", nil }
func (c *stubClient) DestroyController(context.Context) error      { return nil }
func (c *stubClient) KillController(context.Context) error         { return nil }

func prog(id string) stage.Step { return stage.Step{TestID: id} }

func term(id string, passed bool) stage.Step {
	return stage.Step{TestID: id, Result: &passed}
}

// script is one side's raw step sequence, optionally ending in an error.
type script struct {
	steps []stage.Step
	err   error
}

// scriptedAttempt replays a fixed script per client binary path and counts,
// per path, how many times a produced stream's cleanup actually ran. The
// combiner must release every stream it opens, so the counts double as a
// leak check.
type scriptedAttempt struct {
	infos   []stage.Info
	scripts map[string]script

	mu       sync.Mutex
	started  map[string]int
	cleanups map[string]int
}

func newScriptedAttempt(infos []stage.Info, scripts map[string]script) *scriptedAttempt {
	return &scriptedAttempt{
		infos:    infos,
		scripts:  scripts,
		started:  map[string]int{},
		cleanups: map[string]int{},
	}
}

func (a *scriptedAttempt) TestInfo() []stage.Info { return a.infos }

func (a *scriptedAttempt) Steps(ctx context.Context, client cluster.Client) *stage.Stream {
	path := client.BinaryPath()
	a.mu.Lock()
	a.started[path]++
	a.mu.Unlock()
	sc := a.scripts[path]
	return stage.NewStream(func(em *stage.Emitter) error {
		defer func() {
			a.mu.Lock()
			a.cleanups[path]++
			a.mu.Unlock()
		}()
		for _, st := range sc.steps {
			if err := em.Emit(st); err != nil {
				return err
			}
		}
		return sc.err
	})
}

func (a *scriptedAttempt) startedFor(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started[path]
}

func (a *scriptedAttempt) cleanupsFor(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cleanups[path]
}

// passingScript yields progress plus a passing terminal for each id.
func passingScript(ids ...string) script {
	var steps []stage.Step
	for _, id := range ids {
		steps = append(steps, prog(id), term(id, true))
	}
	return script{steps: steps}
}

func makeStream(steps []stage.Step, finalErr error) *stage.Stream {
	return stage.NewStream(func(em *stage.Emitter) error {
		for _, st := range steps {
			if err := em.Emit(st); err != nil {
				return err
			}
		}
		return finalErr
	})
}
