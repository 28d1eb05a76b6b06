package cluster

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/alessio/shellescape"

	"github.com/signalnine/crucible/internal/logging"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultStartedTimeout = 20 * time.Minute
	defaultVersionTimeout = 10 * time.Minute
	defaultHATimeout      = 15 * time.Minute
)

// ExecClient drives the tool binary with os/exec. All waiters poll
// `status --format yaml` until the condition holds or the deadline passes.
type ExecClient struct {
	binPath    string
	controller string
	log        logging.Logger

	PollInterval   time.Duration
	StartedTimeout time.Duration
	VersionTimeout time.Duration
	HATimeout      time.Duration
}

// NewExecClient returns a client for the binary at binPath operating on the
// named controller environment.
func NewExecClient(binPath, controller string, log logging.Logger) *ExecClient {
	if log == nil {
		log = logging.Null()
	}
	return &ExecClient{
		binPath:        binPath,
		controller:     controller,
		log:            log,
		PollInterval:   defaultPollInterval,
		StartedTimeout: defaultStartedTimeout,
		VersionTimeout: defaultVersionTimeout,
		HATimeout:      defaultHATimeout,
	}
}

func (c *ExecClient) BinaryPath() string { return c.binPath }

func (c *ExecClient) WithBinary(path string) Client {
	copied := *c
	copied.binPath = path
	return &copied
}

func (c *ExecClient) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binPath, args...)
	c.log.Printf("run: %s", shellescape.QuoteCommand(append([]string{c.binPath}, args...)))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %s: %w",
			c.binPath, strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

func (c *ExecClient) Bootstrap(ctx context.Context) error {
	_, err := c.Run(ctx, "bootstrap", c.controller)
	return err
}

func (c *ExecClient) Status(ctx context.Context) (*Status, error) {
	out, err := c.Run(ctx, "status", "--controller", c.controller, "--format", "yaml")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out)
}

func (c *ExecClient) WaitForStarted(ctx context.Context) error {
	return c.poll(ctx, c.StartedTimeout, "agents started", func(st *Status) bool {
		return st.AllStarted()
	})
}

func (c *ExecClient) UpgradeController(ctx context.Context) error {
	_, err := c.Run(ctx, "upgrade-controller", "--controller", c.controller)
	return err
}

func (c *ExecClient) WaitForVersion(ctx context.Context, version string) error {
	return c.poll(ctx, c.VersionTimeout, "version "+version, func(st *Status) bool {
		return st.Controller.Version == version
	})
}

func (c *ExecClient) EnableHA(ctx context.Context, n int) error {
	_, err := c.Run(ctx, "enable-ha", "-n", strconv.Itoa(n), "--controller", c.controller)
	return err
}

func (c *ExecClient) WaitForHA(ctx context.Context, n int) error {
	return c.poll(ctx, c.HATimeout, fmt.Sprintf("%d controller members", n), func(st *Status) bool {
		return st.ControllerMembers() >= n
	})
}

// Backup creates a controller backup and returns the archive path, which the
// tool prints as the last line of output.
func (c *ExecClient) Backup(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "create-backup", "--controller", c.controller)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	archive := strings.TrimSpace(lines[len(lines)-1])
	if archive == "" {
		return "", fmt.Errorf("create-backup reported no archive path")
	}
	return archive, nil
}

func (c *ExecClient) Restore(ctx context.Context, archive string) error {
	_, err := c.Run(ctx, "restore-backup", "--controller", c.controller, "--file", archive)
	return err
}

func (c *ExecClient) Deploy(ctx context.Context, workload, name string) error {
	_, err := c.Run(ctx, "deploy", workload, name, "--controller", c.controller)
	return err
}

// AddMachine provisions a machine and returns its id, which the tool prints
// as the last field of its output ("created machine 4").
func (c *ExecClient) AddMachine(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "add-machine", "--controller", c.controller)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) == 0 {
		return "", fmt.Errorf("add-machine reported no machine id")
	}
	return fields[len(fields)-1], nil
}

func (c *ExecClient) ToolVersion(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *ExecClient) RemoveMachine(ctx context.Context, id string) error {
	_, err := c.Run(ctx, "remove-machine", id, "--force", "--controller", c.controller)
	return err
}

func (c *ExecClient) DestroyController(ctx context.Context) error {
	_, err := c.Run(ctx, "destroy-controller", c.controller, "--destroy-all-models", "-y")
	return err
}

func (c *ExecClient) KillController(ctx context.Context) error {
	_, err := c.Run(ctx, "kill-controller", c.controller, "-y")
	return err
}

func (c *ExecClient) poll(ctx context.Context, timeout time.Duration, what string, ok func(*Status) bool) error {
	deadline := time.Now().Add(timeout)
	for {
		st, err := c.Status(ctx)
		if err == nil && ok(st) {
			return nil
		}
		if err != nil {
			c.log.Printf("status poll: %v", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for %s", timeout, what)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}
}
