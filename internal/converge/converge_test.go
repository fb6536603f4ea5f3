package converge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/supervisor"
)

var task = cluster.Task{Role: "regionserver", ID: 1, Host: "h2"}

func TestWaitStoppedPollsWhileStopping(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.StatusFunc = func(_, _ string, n int) supervisor.RunState {
		if n < 3 {
			return supervisor.Stopping
		}
		return supervisor.Stopped
	}
	p := Poller{Interval: time.Millisecond, Attempts: 5}
	if err := p.WaitStopped(context.Background(), d.For("h2", "regionserver"), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(d.Ops("status")); n != 3 {
		t.Errorf("status calls = %d, want 3", n)
	}
}

func TestWaitStoppedRejectsUnknown(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.StatusFunc = func(_, _ string, _ int) supervisor.RunState { return supervisor.Unknown }

	p := Poller{Interval: time.Millisecond, Attempts: 3}
	err := p.WaitStopped(context.Background(), d.For("h2", "regionserver"), task)
	if !errors.Is(err, apperrors.ErrConvergenceTimeout) {
		t.Fatalf("expected convergence timeout, got %v", err)
	}
}

func TestWaitDownAcceptsStopping(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.StatusFunc = func(_, _ string, n int) supervisor.RunState {
		if n < 2 {
			return supervisor.Running
		}
		return supervisor.Stopping
	}
	p := Poller{Interval: time.Millisecond, Attempts: 5}
	if err := p.WaitDown(context.Background(), d.For("h2", "regionserver"), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(d.Ops("status")); n != 2 {
		t.Errorf("status calls = %d, want 2", n)
	}
}

func TestWaitStoppedPollsWhileRunning(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.StatusFunc = func(_, _ string, n int) supervisor.RunState {
		if n < 4 {
			return supervisor.Running
		}
		return supervisor.Stopped
	}
	p := Poller{Interval: time.Millisecond, Attempts: 10}
	if err := p.WaitStopped(context.Background(), d.For("h2", "regionserver"), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(d.Ops("status")); n != 4 {
		t.Errorf("status calls = %d, want 4", n)
	}
}

func TestWaitRunningExhaustsAttempts(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.StatusFunc = func(_, _ string, _ int) supervisor.RunState { return supervisor.Starting }

	p := Poller{Interval: time.Millisecond, Attempts: 3}
	err := p.WaitRunning(context.Background(), d.For("h2", "regionserver"), task)
	if !errors.Is(err, apperrors.ErrConvergenceTimeout) {
		t.Fatalf("expected convergence timeout, got %v", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected *apperrors.Error")
	}
	if appErr.LastState != "STARTING" || appErr.Host != "h2" {
		t.Errorf("unexpected error context: %+v", appErr)
	}
	if n := len(d.Ops("status")); n != 3 {
		t.Errorf("status calls = %d, want 3", n)
	}
}

func TestWaitRunningTimeout(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.StatusFunc = func(_, _ string, _ int) supervisor.RunState { return supervisor.Stopped }

	p := Poller{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}
	err := p.WaitRunning(context.Background(), d.For("h2", "regionserver"), task)
	if !errors.Is(err, apperrors.ErrConvergenceTimeout) {
		t.Fatalf("expected convergence timeout, got %v", err)
	}
}

func TestWaitInterruptedByCaller(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.StatusFunc = func(_, _ string, _ int) supervisor.RunState { return supervisor.Running }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	p := Poller{Interval: 5 * time.Millisecond}
	err := p.WaitStopped(ctx, d.For("h2", "regionserver"), task)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, apperrors.ErrConvergenceTimeout) {
		t.Error("a cancelled wait is not a convergence timeout")
	}
}

func TestStatusFailureIsNotRetried(t *testing.T) {
	d := supervisor.NewMockDialer()
	d.Errors = map[string]error{"status@h2": errors.New("connection refused")}

	p := Poller{Interval: time.Millisecond, Attempts: 10}
	err := p.WaitRunning(context.Background(), d.For("h2", "regionserver"), task)
	if !errors.Is(err, apperrors.ErrRemoteOperation) {
		t.Fatalf("expected remote operation error, got %v", err)
	}
	if n := len(d.Ops("status")); n != 1 {
		t.Errorf("status calls = %d, want 1", n)
	}
}
