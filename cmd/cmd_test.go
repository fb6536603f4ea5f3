package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/config"
	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/engine"
	"github.com/hbctl/hbctl/internal/lifecycle"
	"github.com/hbctl/hbctl/internal/state"
	"github.com/hbctl/hbctl/internal/supervisor"
	"github.com/hbctl/hbctl/internal/testutil"
)

func TestDescribe(t *testing.T) {
	defer func() { jobs, tasks = nil, nil }()

	if got := describe(); got != "all jobs" {
		t.Errorf("describe() = %q", got)
	}
	jobs, tasks = []string{"regionserver"}, []int{0, 2}
	if got := describe(); got != "jobs regionserver, tasks 0,2" {
		t.Errorf("describe() = %q", got)
	}
}

func TestBalancerWarning(t *testing.T) {
	st := state.New("hbase-test")
	if w := balancerWarning(st); w != "" {
		t.Errorf("unexpected warning %q", w)
	}

	st.BalancerDisabled = true
	st.BalancerDisabledSince = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st.Rolling = &state.RollingRecord{FailedTask: "regionserver/1@10.0.0.2", FailedState: "wait-stopped"}
	w := balancerWarning(st)
	for _, want := range []string{"2026-01-02T03:04:05Z", "regionserver/1@10.0.0.2", "wait-stopped", "balance_switch true"} {
		if !strings.Contains(w, want) {
			t.Errorf("warning %q missing %q", w, want)
		}
	}
}

func TestStatusTable(t *testing.T) {
	out := statusTable([]lifecycle.TaskStatus{
		{Task: cluster.Task{Role: "regionserver", ID: 0, Host: "10.0.0.1"}, State: supervisor.Running},
		{Task: cluster.Task{Role: "master", ID: 0, Host: "10.0.0.10"}, Err: errors.New("connection refused")},
	})
	for _, want := range []string{"JOB", "regionserver", "10.0.0.1", "RUNNING", "master", "connection refused"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"install", "bootstrap", "start", "stop", "restart", "rolling-update", "show", "cleanup"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("command %s not registered", name)
		}
	}
	if rollingUpdateCmd.Flags().Lookup("vacate-rs") == nil {
		t.Error("rolling-update should have --vacate-rs")
	}
}

func TestConfirmSelectionValidatesFirst(t *testing.T) {
	defer func() { jobs, tasks, assumeYes = nil, nil, false }()

	eng := engine.New(config.Default(), nil)
	eng.Cluster = testutil.Cluster(t)
	dialer := supervisor.NewMockDialer()
	ctl := lifecycle.New(eng.Cluster, lifecycle.Options{Dialer: dialer})

	tests := []struct {
		name  string
		jobs  []string
		tasks []int
	}{
		{"unknown job", []string{"zookeeper"}, nil},
		{"unknown task", []string{"master"}, []int{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, tasks, assumeYes = tt.jobs, tt.tasks, false
			_, err := confirmSelection(context.Background(), eng, ctl, confirm.ActionStop)
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if errors.Is(err, apperrors.ErrConfirmationDeclined) {
				t.Error("selection must be rejected before the prompt")
			}
		})
	}
	if len(dialer.Calls) != 0 {
		t.Errorf("no host should be contacted, got %v", dialer.Calls)
	}

	jobs, tasks, assumeYes = []string{"master"}, nil, true
	tok, err := confirmSelection(context.Background(), eng, ctl, confirm.ActionStop)
	if err != nil || !tok.For(confirm.ActionStop, "hbase-test") {
		t.Errorf("valid selection with --yes: token %+v, err %v", tok, err)
	}
}
