package config

import (
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

type Config struct {
	OldBinary       string    `yaml:"old_binary"`
	NewBinary       string    `yaml:"new_binary"`
	Suite           string    `yaml:"suite"`
	AttemptCount    int       `yaml:"attempt_count"`
	MaxAttempts     int       `yaml:"max_attempts"`
	Env             string    `yaml:"env"`
	UpgradeSequence []Release `yaml:"upgrade_sequence"`
	HAUnits         int       `yaml:"ha_units"`
	DeployMachines  int       `yaml:"deploy_machines"`
	Workload        string    `yaml:"workload"`
	LogDir          string    `yaml:"log_dir"`
	Substrate       Substrate `yaml:"substrate"`
	Results         Results   `yaml:"results"`
}

// Release names a prior build of the tool, oldest first in the upgrade
// sequence. The upgrade suite bootstraps from the first entry.
type Release struct {
	Version string `yaml:"version"`
	Binary  string `yaml:"binary"`
}

type Substrate struct {
	// Docker enables the leak check against the local Docker daemon after
	// environment teardown.
	Docker bool `yaml:"docker"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.OldBinary == "" {
		return fmt.Errorf("old_binary is required")
	}
	if cfg.NewBinary == "" {
		return fmt.Errorf("new_binary is required")
	}
	if cfg.AttemptCount < 1 {
		return fmt.Errorf("attempt_count must be at least 1")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = cfg.AttemptCount * 3
	}
	if cfg.MaxAttempts < cfg.AttemptCount {
		return fmt.Errorf("max_attempts must be at least attempt_count")
	}
	if cfg.Suite == "" {
		cfg.Suite = "quick"
	}
	if cfg.Env == "" {
		cfg.Env = "crucible"
	}
	if cfg.HAUnits == 0 {
		cfg.HAUnits = 3
	}
	if cfg.DeployMachines == 0 {
		cfg.DeployMachines = 5
	}
	if cfg.Workload == "" {
		cfg.Workload = "dummy-workload"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	return validateSequence(cfg.UpgradeSequence)
}

// validateSequence requires well-formed, strictly ascending versions so the
// upgrade suite steps through releases in order.
func validateSequence(seq []Release) error {
	prev := ""
	for i, rel := range seq {
		if rel.Binary == "" {
			return fmt.Errorf("upgrade_sequence[%d]: binary is required", i)
		}
		v := "v" + rel.Version
		if !semver.IsValid(v) {
			return fmt.Errorf("upgrade_sequence[%d]: invalid version %q", i, rel.Version)
		}
		if prev != "" && semver.Compare(prev, v) >= 0 {
			return fmt.Errorf("upgrade_sequence[%d]: version %q does not ascend", i, rel.Version)
		}
		prev = v
	}
	return nil
}

// PriorBinaries returns the upgrade-sequence binaries, oldest first.
func (c *Config) PriorBinaries() []string {
	bins := make([]string, 0, len(c.UpgradeSequence))
	for _, rel := range c.UpgradeSequence {
		bins = append(bins, rel.Binary)
	}
	return bins
}
