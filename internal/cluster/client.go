// Package cluster wraps the cluster-management CLI under test. Each Client
// drives one binary (old or new build) against a live environment; the
// harness core only sees this interface.
package cluster

import "context"

// Client is the capability surface of one tool build. Two instances exist
// per trial (old build, new build); a trial owns both exclusively and
// discards them at trial end.
type Client interface {
	// BinaryPath reports the tool binary this client drives.
	BinaryPath() string
	// WithBinary returns a client for the same environment driving a
	// different binary. Used to bootstrap with a prior release before an
	// upgrade stage.
	WithBinary(path string) Client

	Bootstrap(ctx context.Context) error
	WaitForStarted(ctx context.Context) error

	// Run executes an arbitrary tool command against the live environment.
	Run(ctx context.Context, args ...string) ([]byte, error)
	Status(ctx context.Context) (*Status, error)

	UpgradeController(ctx context.Context) error
	WaitForVersion(ctx context.Context, version string) error

	EnableHA(ctx context.Context, n int) error
	WaitForHA(ctx context.Context, n int) error

	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, archive string) error

	Deploy(ctx context.Context, workload, name string) error
	AddMachine(ctx context.Context) (string, error)
	RemoveMachine(ctx context.Context, id string) error

	// ToolVersion reports the version of the binary itself; it needs no
	// live environment.
	ToolVersion(ctx context.Context) (string, error)

	DestroyController(ctx context.Context) error
	KillController(ctx context.Context) error
}
