// Package state keeps a small per-cluster record of what the last commands
// left behind, most importantly a balancer left disabled by an aborted
// rolling update.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Outcomes
const (
	OutcomeComplete = "complete"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

// State is the persisted record of one cluster.
type State struct {
	Cluster     string    `yaml:"cluster"`
	LastUpdated time.Time `yaml:"last_updated"`

	LastCommand   string    `yaml:"last_command,omitempty"`
	LastCommandAt time.Time `yaml:"last_command_at,omitempty"`
	LastOutcome   string    `yaml:"last_outcome,omitempty"`
	LastError     string    `yaml:"last_error,omitempty"`

	Rolling *RollingRecord `yaml:"rolling_update,omitempty"`

	BalancerDisabled      bool      `yaml:"balancer_disabled,omitempty"`
	BalancerDisabledSince time.Time `yaml:"balancer_disabled_since,omitempty"`
}

// RollingRecord describes the last rolling update.
type RollingRecord struct {
	Job         string    `yaml:"job"`
	Drained     bool      `yaml:"drained,omitempty"`
	StartedAt   time.Time `yaml:"started_at"`
	FinishedAt  time.Time `yaml:"finished_at"`
	Outcome     string    `yaml:"outcome"`
	Completed   []string  `yaml:"completed,omitempty"`
	FailedTask  string    `yaml:"failed_task,omitempty"`
	FailedState string    `yaml:"failed_state,omitempty"`
}

// Path is the state file of one cluster under dir.
func Path(dir, clusterName string) string {
	return filepath.Join(dir, clusterName+".yaml")
}

// Load reads the cluster state from disk. A missing file is a fresh state.
func Load(path, clusterName string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(clusterName), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	s := &State{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if s.Cluster == "" {
		s.Cluster = clusterName
	}
	return s, nil
}

// Save writes the cluster state to disk.
func (s *State) Save(path string) error {
	s.LastUpdated = time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// New creates a fresh cluster state.
func New(clusterName string) *State {
	return &State{
		Cluster:     clusterName,
		LastUpdated: time.Now(),
	}
}

// RecordCommand notes the outcome of a command.
func (s *State) RecordCommand(command string, err error) {
	s.LastCommand = command
	s.LastCommandAt = time.Now()
	s.LastOutcome = OutcomeComplete
	s.LastError = ""
	if err != nil {
		s.LastOutcome = OutcomeFailed
		s.LastError = err.Error()
	}
}

// RecordRolling stores a rolling update record and tracks the balancer.
// balancerDisabled is whether the run ended with the balancer off; a run
// that did not drain leaves the previous balancer flag alone.
func (s *State) RecordRolling(rec RollingRecord, balancerDisabled bool) {
	s.Rolling = &rec
	if !rec.Drained {
		return
	}
	if balancerDisabled && !s.BalancerDisabled {
		s.BalancerDisabledSince = rec.FinishedAt
	}
	s.BalancerDisabled = balancerDisabled
	if !balancerDisabled {
		s.BalancerDisabledSince = time.Time{}
	}
}
