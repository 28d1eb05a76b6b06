package stage_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/signalnine/crucible/internal/cluster"
)

// fakeClient is a scripted cluster.Client: operations named in errs fail,
// everything else succeeds, and every call is recorded in order. Clients
// derived with WithBinary share the same script and call log.
type fakeClient struct {
	bin   string
	errs  map[string]error
	mu    *sync.Mutex
	calls *[]string
	next  *int
}

func newFakeClient(errs map[string]error) *fakeClient {
	if errs == nil {
		errs = map[string]error{}
	}
	return &fakeClient{
		bin:   "/bin/tool",
		errs:  errs,
		mu:    &sync.Mutex{},
		calls: &[]string{},
		next:  new(int),
	}
}

func (c *fakeClient) record(op string) error {
	c.mu.Lock()
	*c.calls = append(*c.calls, op)
	c.mu.Unlock()
	return c.errs[op]
}

func (c *fakeClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), *c.calls...)
}

func (c *fakeClient) BinaryPath() string { return c.bin }

func (c *fakeClient) WithBinary(path string) cluster.Client {
	c.record("with-binary " + path)
	derived := *c
	derived.bin = path
	return &derived
}

func (c *fakeClient) Bootstrap(context.Context) error      { return c.record("bootstrap") }
func (c *fakeClient) WaitForStarted(context.Context) error { return c.record("wait-started") }

func (c *fakeClient) Run(_ context.Context, args ...string) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command")
	}
	return nil, c.record("run " + args[0])
}

func (c *fakeClient) Status(context.Context) (*cluster.Status, error) {
	return &cluster.Status{}, c.record("status")
}

func (c *fakeClient) UpgradeController(context.Context) error { return c.record("upgrade-controller") }

func (c *fakeClient) WaitForVersion(_ context.Context, version string) error {
	return c.record("wait-version " + version)
}

func (c *fakeClient) EnableHA(_ context.Context, n int) error {
	return c.record("enable-ha " + strconv.Itoa(n))
}

func (c *fakeClient) WaitForHA(_ context.Context, n int) error {
	return c.record("wait-ha " + strconv.Itoa(n))
}

func (c *fakeClient) Backup(context.Context) (string, error) {
	return "/tmp/backup.tar.gz", c.record("backup")
}

func (c *fakeClient) Restore(_ context.Context, archive string) error {
	return c.record("restore " + archive)
}

func (c *fakeClient) Deploy(_ context.Context, workload, name string) error {
	return c.record("deploy " + workload + " " + name)
}

func (c *fakeClient) AddMachine(context.Context) (string, error) {
	err := c.record("add-machine")
	c.mu.Lock()
	id := strconv.Itoa(*c.next)
	*c.next++
	c.mu.Unlock()
	return id, err
}

func (c *fakeClient) RemoveMachine(_ context.Context, id string) error {
	return c.record("remove-machine " + id)
}

func (c *fakeClient) ToolVersion(context.Context) (string, error) {
	return "9.9.9", c.record("version")
}

func (c *fakeClient) DestroyController(context.Context) error {
	return c.record("destroy-controller")
}

func (c *fakeClient) KillController(context.Context) error {
	return c.record("kill-controller")
}

// fakeSubstrate scripts the leak check.
type fakeSubstrate struct {
	leaked  []string
	removed [][]string
}

func (s *fakeSubstrate) Leaked(context.Context, string) ([]string, error) {
	return s.leaked, nil
}

func (s *fakeSubstrate) Remove(_ context.Context, ids []string) error {
	s.removed = append(s.removed, ids)
	return nil
}

// fakeLifecycle counts fallback teardowns: one per errored suite body.
type fakeLifecycle struct {
	entered   int
	tearDowns int
}

func (l *fakeLifecycle) BootedContext(ctx context.Context, _ cluster.Client, fn func(context.Context) error) error {
	l.entered++
	err := fn(ctx)
	if err != nil {
		l.tearDowns++
	}
	return err
}
