package stage

import (
	"context"
	"fmt"

	"github.com/signalnine/crucible/internal/cluster"
)

var (
	bootstrapInfo       = Info{TestID: "bootstrap", Title: "bootstrap", ReportOn: true}
	prepareSuiteInfo    = Info{TestID: "prepare-suite", Title: "prepare suite", ReportOn: false}
	ensureHAInfo        = Info{TestID: "ensure-availability", Title: "ensure availability", ReportOn: true}
	deployManyInfo      = Info{TestID: "deploy-many", Title: "deploy many workloads", ReportOn: true}
	removeMachineInfo   = Info{TestID: "remove-machine", Title: "remove machines", ReportOn: true}
	backupInfo          = Info{TestID: "back-up-restore", Title: "back up and restore", ReportOn: true}
	upgradeInfo         = Info{TestID: "upgrade", Title: "upgrade controller", ReportOn: true}
	upgradeWorkloadInfo = Info{TestID: "upgrade-workload", Title: "upgrade workload", ReportOn: true}
	prepareUpgradeInfo  = Info{TestID: "prepare-upgrade", Title: "bootstrap prior release", ReportOn: true}
	destroyEnvInfo      = Info{TestID: "destroy-env", Title: "destroy environment", ReportOn: true}
	substrateCleanInfo  = Info{TestID: "substrate-clean", Title: "check substrate clean", ReportOn: true}
)

// BootstrapAttempt stands up a fresh controller and waits for every agent
// to report started.
type BootstrapAttempt struct{}

func (BootstrapAttempt) TestInfo() []Info { return []Info{bootstrapInfo} }

func (BootstrapAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	return NewStream(func(em *Emitter) error {
		if err := em.Progress(bootstrapInfo.TestID); err != nil {
			return err
		}
		if err := client.Bootstrap(ctx); err != nil {
			return err
		}
		if err := em.Progress(bootstrapInfo.TestID); err != nil {
			return err
		}
		if err := client.WaitForStarted(ctx); err != nil {
			return err
		}
		return em.Finish(bootstrapInfo.TestID, true)
	})
}

// EnsureAvailabilityAttempt grows the control plane to N members and waits
// for them to join.
type EnsureAvailabilityAttempt struct {
	N int
}

func (EnsureAvailabilityAttempt) TestInfo() []Info { return []Info{ensureHAInfo} }

func (a EnsureAvailabilityAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	n := a.N
	if n == 0 {
		n = 3
	}
	return NewStream(func(em *Emitter) error {
		if err := em.Progress(ensureHAInfo.TestID); err != nil {
			return err
		}
		if err := client.EnableHA(ctx, n); err != nil {
			return err
		}
		if err := em.Progress(ensureHAInfo.TestID); err != nil {
			return err
		}
		if err := client.WaitForHA(ctx, n); err != nil {
			return err
		}
		return em.Finish(ensureHAInfo.TestID, true)
	})
}

// DeployManyAttempt adds machines, deploys one workload per machine, then
// removes the machines again. It carries two test ids.
type DeployManyAttempt struct {
	Machines int
	Workload string
}

func (DeployManyAttempt) TestInfo() []Info {
	return []Info{deployManyInfo, removeMachineInfo}
}

func (a DeployManyAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	machines := a.Machines
	if machines == 0 {
		machines = 5
	}
	workload := a.Workload
	if workload == "" {
		workload = "dummy-workload"
	}
	return NewStream(func(em *Emitter) error {
		if err := em.Progress(deployManyInfo.TestID); err != nil {
			return err
		}
		ids := make([]string, 0, machines)
		for i := 0; i < machines; i++ {
			id, err := client.AddMachine(ctx)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if err := em.Progress(deployManyInfo.TestID); err != nil {
			return err
		}
		for i := 0; i < machines; i++ {
			name := fmt.Sprintf("%s-%d", workload, i)
			if err := client.Deploy(ctx, workload, name); err != nil {
				return err
			}
		}
		if err := client.WaitForStarted(ctx); err != nil {
			return err
		}
		if err := em.Finish(deployManyInfo.TestID, true); err != nil {
			return err
		}

		if err := em.Progress(removeMachineInfo.TestID); err != nil {
			return err
		}
		for _, id := range ids {
			if err := client.RemoveMachine(ctx, id); err != nil {
				return err
			}
		}
		if err := client.WaitForStarted(ctx); err != nil {
			return err
		}
		return em.Finish(removeMachineInfo.TestID, true)
	})
}

// BackupRestoreAttempt takes a controller backup and restores from it.
type BackupRestoreAttempt struct{}

func (BackupRestoreAttempt) TestInfo() []Info { return []Info{backupInfo} }

func (BackupRestoreAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	return NewStream(func(em *Emitter) error {
		if err := em.Progress(backupInfo.TestID); err != nil {
			return err
		}
		archive, err := client.Backup(ctx)
		if err != nil {
			return err
		}
		if err := em.Progress(backupInfo.TestID); err != nil {
			return err
		}
		if err := client.Restore(ctx, archive); err != nil {
			return err
		}
		if err := client.WaitForStarted(ctx); err != nil {
			return err
		}
		return em.Finish(backupInfo.TestID, true)
	})
}

// UpgradeAttempt upgrades the controller to the driving client's own build
// and waits for the version to settle. Each side upgrades to its own
// version, so the stage compares the two builds' upgrade paths.
type UpgradeAttempt struct{}

func (UpgradeAttempt) TestInfo() []Info { return []Info{upgradeInfo} }

func (UpgradeAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	return NewStream(func(em *Emitter) error {
		if err := em.Progress(upgradeInfo.TestID); err != nil {
			return err
		}
		target, err := client.ToolVersion(ctx)
		if err != nil {
			return err
		}
		if err := client.UpgradeController(ctx); err != nil {
			return err
		}
		if err := em.Progress(upgradeInfo.TestID); err != nil {
			return err
		}
		if err := client.WaitForVersion(ctx, target); err != nil {
			return err
		}
		return em.Finish(upgradeInfo.TestID, true)
	})
}

// UpgradeWorkloadAttempt deploys a workload and refreshes it to its next
// revision through the tool's opaque command surface.
type UpgradeWorkloadAttempt struct {
	Workload string
}

func (UpgradeWorkloadAttempt) TestInfo() []Info { return []Info{upgradeWorkloadInfo} }

func (a UpgradeWorkloadAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	workload := a.Workload
	if workload == "" {
		workload = "dummy-workload"
	}
	name := workload + "-refresh"
	return NewStream(func(em *Emitter) error {
		if err := em.Progress(upgradeWorkloadInfo.TestID); err != nil {
			return err
		}
		if err := client.Deploy(ctx, workload, name); err != nil {
			return err
		}
		if err := client.WaitForStarted(ctx); err != nil {
			return err
		}
		if err := em.Progress(upgradeWorkloadInfo.TestID); err != nil {
			return err
		}
		if _, err := client.Run(ctx, "refresh", name); err != nil {
			return err
		}
		if err := client.WaitForStarted(ctx); err != nil {
			return err
		}
		return em.Finish(upgradeWorkloadInfo.TestID, true)
	})
}

// PrepareUpgradeAttempt re-tags an inner attempt (usually bootstrap) run
// with a prior release binary, so a later upgrade stage starts from an old
// controller. With no prior release configured the whole run aborts.
type PrepareUpgradeAttempt struct {
	Inner       Attempt
	PriorBinary string
}

func (PrepareUpgradeAttempt) TestInfo() []Info { return []Info{prepareUpgradeInfo} }

func (a PrepareUpgradeAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	return NewStream(func(em *Emitter) error {
		if a.PriorBinary == "" {
			return Fatal(fmt.Errorf("preparing upgrade: %w", ErrCannotUpgrade))
		}
		prior := client.WithBinary(a.PriorBinary)
		inner := a.Inner.Steps(ctx, prior)
		defer inner.Close()
		for {
			st, ok, err := inner.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			st.TestID = prepareUpgradeInfo.TestID
			if err := em.Emit(st); err != nil {
				return err
			}
		}
	})
}

// SubstrateChecker detects and cleans up resources an environment leaked
// on its substrate after teardown.
type SubstrateChecker interface {
	Leaked(ctx context.Context, env string) ([]string, error)
	Remove(ctx context.Context, ids []string) error
}

// DestroyEnvironmentAttempt tears the environment down and verifies the
// substrate holds no orphaned resources. Two test ids: the teardown itself
// and the leak check.
type DestroyEnvironmentAttempt struct {
	Env       string
	Substrate SubstrateChecker
}

func (DestroyEnvironmentAttempt) TestInfo() []Info {
	return []Info{destroyEnvInfo, substrateCleanInfo}
}

func (a DestroyEnvironmentAttempt) Steps(ctx context.Context, client cluster.Client) *Stream {
	return NewStream(func(em *Emitter) error {
		if err := em.Progress(destroyEnvInfo.TestID); err != nil {
			return err
		}
		if err := client.DestroyController(ctx); err != nil {
			return err
		}
		if err := em.Finish(destroyEnvInfo.TestID, true); err != nil {
			return err
		}

		if err := em.Progress(substrateCleanInfo.TestID); err != nil {
			return err
		}
		if a.Substrate == nil {
			return em.Finish(substrateCleanInfo.TestID, true)
		}
		leaked, err := a.Substrate.Leaked(ctx, a.Env)
		if err != nil {
			return err
		}
		if len(leaked) > 0 {
			// Clean up so the next trial starts fresh, but the check
			// still fails: teardown left resources behind.
			if err := a.Substrate.Remove(ctx, leaked); err != nil {
				return err
			}
			return em.Finish(substrateCleanInfo.TestID, false)
		}
		return em.Finish(substrateCleanInfo.TestID, true)
	})
}
