package cluster

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Status is the subset of `status --format yaml` output the harness reads.
type Status struct {
	Controller   ControllerStatus       `yaml:"controller"`
	Machines     map[string]Machine     `yaml:"machines"`
	Applications map[string]Application `yaml:"applications"`
}

type ControllerStatus struct {
	Version string `yaml:"version"`
}

type Machine struct {
	State            string `yaml:"state"`
	ControllerMember bool   `yaml:"controller-member"`
}

type Application struct {
	Units map[string]Unit `yaml:"units"`
}

type Unit struct {
	State   string `yaml:"state"`
	Machine string `yaml:"machine"`
}

// ParseStatus decodes raw `status --format yaml` output.
func ParseStatus(data []byte) (*Status, error) {
	var st Status
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing status output: %w", err)
	}
	return &st, nil
}

// AllStarted reports whether every machine and unit has reached "started".
func (s *Status) AllStarted() bool {
	if len(s.Machines) == 0 {
		return false
	}
	for _, m := range s.Machines {
		if m.State != "started" {
			return false
		}
	}
	for _, app := range s.Applications {
		for _, u := range app.Units {
			if u.State != "started" {
				return false
			}
		}
	}
	return true
}

// ControllerMembers counts started machines participating in the control
// plane.
func (s *Status) ControllerMembers() int {
	n := 0
	for _, m := range s.Machines {
		if m.ControllerMember && m.State == "started" {
			n++
		}
	}
	return n
}

// MachineIDs returns the ids of all known machines.
func (s *Status) MachineIDs() []string {
	ids := make([]string, 0, len(s.Machines))
	for id := range s.Machines {
		ids = append(ids, id)
	}
	return ids
}
