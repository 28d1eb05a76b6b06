package stage

import (
	"context"
	"errors"

	"github.com/signalnine/crucible/internal/cluster"
)

// Lifecycle scopes a suite run inside environment acquisition and
// guaranteed teardown.
type Lifecycle interface {
	BootedContext(ctx context.Context, client cluster.Client, fn func(context.Context) error) error
}

// Suite composes a bootstrap attempt, an ordered list of mid-suite
// attempts, and an implicit destroy-environment attempt into one Attempt.
//
// Bootstrap failure ends the suite immediately. Mid-suite attempts run in
// order with fail-fast, but the destroy attempt always runs once bootstrap
// has succeeded: teardown must be attempted regardless of test outcome.
// Attempts skipped by fail-fast still emit failed terminals for their
// declared ids, keeping this side's id sequence identical to the other
// build's.
type Suite struct {
	Bootstrap Attempt
	Middle    []Attempt
	Destroy   Attempt
	Manager   Lifecycle
}

func (s *Suite) TestInfo() []Info {
	infos := append([]Info(nil), s.Bootstrap.TestInfo()...)
	infos = append(infos, prepareSuiteInfo)
	for _, att := range s.Middle {
		infos = append(infos, att.TestInfo()...)
	}
	infos = append(infos, s.Destroy.TestInfo()...)
	return infos
}

func (s *Suite) Steps(ctx context.Context, client cluster.Client) *Stream {
	return NewStream(func(em *Emitter) error {
		return s.Manager.BootedContext(ctx, client, func(ctx context.Context) error {
			booted, err := relaySteps(ctx, s.Bootstrap, client, em)
			if err != nil || !booted {
				return err
			}
			if err := em.Progress(prepareSuiteInfo.TestID); err != nil {
				return err
			}
			if err := em.Finish(prepareSuiteInfo.TestID, true); err != nil {
				return err
			}
			failed := false
			for _, att := range s.Middle {
				if failed {
					// Fail-fast stops running the attempt, but its declared
					// ids still get failed terminals: the paired stream on
					// the other build may be past this point, and both sides
					// must emit the same id sequence.
					if err := failDeclared(att.TestInfo(), nil, em); err != nil {
						return err
					}
					continue
				}
				ok, err := relaySteps(ctx, att, client, em)
				if err != nil {
					return err
				}
				if !ok {
					failed = true
				}
			}
			_, err = relaySteps(ctx, s.Destroy, client, em)
			return err
		})
	})
}

// relaySteps re-yields att's steps through em and reports whether the
// attempt's last terminal result passed. A recoverable error from the
// attempt becomes failed terminals for every declared id that has none yet,
// so the suite can continue to teardown without the paired stream on the
// other build ever seeing a shorter or reordered id sequence. Fatal errors
// and consumer close propagate.
func relaySteps(ctx context.Context, att Attempt, client cluster.Client, em *Emitter) (passed bool, err error) {
	src := att.Steps(ctx, client)
	defer src.Close()
	finished := make(map[string]bool, len(att.TestInfo()))
	passed = true
	for {
		st, ok, err := src.Next(ctx)
		if err != nil {
			if IsFatal(err) || errors.Is(err, ErrStreamClosed) || ctx.Err() != nil {
				return false, err
			}
			if emitErr := failDeclared(att.TestInfo(), finished, em); emitErr != nil {
				return false, emitErr
			}
			return false, nil
		}
		if !ok {
			return passed, nil
		}
		if st.Result != nil {
			finished[st.TestID] = true
			passed = *st.Result
		}
		if err := em.Emit(st); err != nil {
			return false, err
		}
	}
}

// failDeclared emits a failed terminal for each declared id not already
// finished. Ids that carried a terminal before the attempt broke keep their
// real result; emitting a second terminal for them would itself violate the
// stage protocol.
func failDeclared(infos []Info, finished map[string]bool, em *Emitter) error {
	for _, info := range infos {
		if finished[info.TestID] {
			continue
		}
		if err := em.Progress(info.TestID); err != nil {
			return err
		}
		if err := em.Finish(info.TestID, false); err != nil {
			return err
		}
	}
	return nil
}

// Params carries the knobs suite factories need.
type Params struct {
	Env            string
	PriorBinaries  []string // prior release binaries, oldest first
	HAUnits        int
	DeployMachines int
	Workload       string
	Substrate      SubstrateChecker
	Lifecycle      Lifecycle
}

// SuiteSpec is a named suite composition selectable from config or the
// command line.
type SuiteSpec struct {
	Name    string
	Summary string
	build   func(Params) *Suite
}

// Build binds the spec to concrete parameters.
func (s SuiteSpec) Build(p Params) *Suite { return s.build(p) }

func baseSuite(p Params, middle ...Attempt) *Suite {
	return &Suite{
		Bootstrap: BootstrapAttempt{},
		Middle:    middle,
		Destroy:   DestroyEnvironmentAttempt{Env: p.Env, Substrate: p.Substrate},
		Manager:   p.Lifecycle,
	}
}

func priorBinary(p Params) string {
	if len(p.PriorBinaries) == 0 {
		return ""
	}
	return p.PriorBinaries[0]
}

var suiteSpecs = []SuiteSpec{
	{
		Name:    "quick",
		Summary: "bootstrap and tear down only",
		build: func(p Params) *Suite {
			return baseSuite(p)
		},
	},
	{
		Name:    "ha",
		Summary: "grow the control plane to N members",
		build: func(p Params) *Suite {
			return baseSuite(p, EnsureAvailabilityAttempt{N: p.HAUnits})
		},
	},
	{
		Name:    "density",
		Summary: "deploy many workloads, then remove their machines",
		build: func(p Params) *Suite {
			return baseSuite(p, DeployManyAttempt{Machines: p.DeployMachines, Workload: p.Workload})
		},
	},
	{
		Name:    "backup",
		Summary: "back up the controller and restore from the archive",
		build: func(p Params) *Suite {
			return baseSuite(p, BackupRestoreAttempt{})
		},
	},
	{
		Name:    "upgrade",
		Summary: "bootstrap a prior release, then upgrade to each build",
		build: func(p Params) *Suite {
			s := baseSuite(p, UpgradeAttempt{})
			s.Bootstrap = PrepareUpgradeAttempt{
				Inner:       BootstrapAttempt{},
				PriorBinary: priorBinary(p),
			}
			return s
		},
	},
	{
		Name:    "full",
		Summary: "availability, density, backup/restore, workload upgrade",
		build: func(p Params) *Suite {
			return baseSuite(p,
				EnsureAvailabilityAttempt{N: p.HAUnits},
				DeployManyAttempt{Machines: p.DeployMachines, Workload: p.Workload},
				BackupRestoreAttempt{},
				UpgradeWorkloadAttempt{Workload: p.Workload},
			)
		},
	},
}

// Suites lists the available suite compositions in a stable order.
func Suites() []SuiteSpec {
	return append([]SuiteSpec(nil), suiteSpecs...)
}

// LookupSuite finds a suite spec by name.
func LookupSuite(name string) (SuiteSpec, bool) {
	for _, s := range suiteSpecs {
		if s.Name == name {
			return s, true
		}
	}
	return SuiteSpec{}, false
}
