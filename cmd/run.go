package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/signalnine/crucible/internal/cluster"
	"github.com/signalnine/crucible/internal/config"
	"github.com/signalnine/crucible/internal/logging"
	"github.com/signalnine/crucible/internal/report"
	"github.com/signalnine/crucible/internal/result"
	"github.com/signalnine/crucible/internal/runner"
	"github.com/signalnine/crucible/internal/stage"
	"github.com/signalnine/crucible/internal/substrate"
)

var (
	flagSuite       string
	flagAttempts    int
	flagMaxAttempts int
	flagOldBinary   string
	flagNewBinary   string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a compatibility suite against both builds",
		RunE:  runSuite,
	}
	cmd.Flags().StringVar(&flagSuite, "suite", "", "override configured suite")
	cmd.Flags().IntVar(&flagAttempts, "attempts", 0, "override target attempt count")
	cmd.Flags().IntVar(&flagMaxAttempts, "max-attempts", 0, "override trial budget")
	cmd.Flags().StringVar(&flagOldBinary, "old", "", "override old build binary path")
	cmd.Flags().StringVar(&flagNewBinary, "new", "", "override new build binary path")
	return cmd
}

func runSuite(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyOverrides(cfg)

	spec, ok := stage.LookupSuite(cfg.Suite)
	if !ok {
		return fmt.Errorf("unknown suite %q (see `crucible list`)", cfg.Suite)
	}

	log := logging.NewConsole(os.Stderr)

	var checker stage.SubstrateChecker
	if cfg.Substrate.Docker {
		provider, err := substrate.New()
		if err != nil {
			return fmt.Errorf("connecting substrate: %w", err)
		}
		defer provider.Close()
		checker = provider
	}

	suite := spec.Build(stage.Params{
		Env:            cfg.Env,
		PriorBinaries:  cfg.PriorBinaries(),
		HAUnits:        cfg.HAUnits,
		DeployMachines: cfg.DeployMachines,
		Workload:       cfg.Workload,
		Substrate:      checker,
		Lifecycle:      cluster.NewManager(cfg.LogDir, log),
	})

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	campaign := &runner.Campaign{
		Attempts: []stage.Attempt{suite},
		OldPath:  cfg.OldBinary,
		NewPath:  cfg.NewBinary,
		NewClient: func(path string) cluster.Client {
			return cluster.NewExecClient(path, cfg.Env, log)
		},
		AttemptCount: cfg.AttemptCount,
		MaxAttempts:  cfg.MaxAttempts,
		Log:          log,
	}

	set, err := campaign.RunTests(context.Background())
	if err != nil {
		if stage.IsFatal(err) {
			// A usage problem, not a test failure: for example the upgrade
			// suite was requested without an upgrade_sequence.
			return fmt.Errorf("suite %q cannot run: %w", cfg.Suite, err)
		}
		return err
	}

	if err := result.WriteSet(runDir, set); err != nil {
		return err
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(set, "table", os.Stdout)
}

func applyOverrides(cfg *config.Config) {
	if flagSuite != "" {
		cfg.Suite = flagSuite
	}
	if flagAttempts > 0 {
		cfg.AttemptCount = flagAttempts
		if cfg.MaxAttempts < cfg.AttemptCount {
			cfg.MaxAttempts = cfg.AttemptCount * 3
		}
	}
	if flagMaxAttempts > 0 {
		cfg.MaxAttempts = flagMaxAttempts
	}
	if flagOldBinary != "" {
		cfg.OldBinary = flagOldBinary
	}
	if flagNewBinary != "" {
		cfg.NewBinary = flagNewBinary
	}
	if !filepath.IsAbs(cfg.LogDir) {
		if abs, err := filepath.Abs(cfg.LogDir); err == nil {
			cfg.LogDir = abs
		}
	}
}
