// Package converge polls the supervisor until a task reaches a wanted state.
package converge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/supervisor"
)

// DefaultInterval is the pause between two status queries.
const DefaultInterval = 2 * time.Second

// Poller waits for run state transitions.
type Poller struct {
	Interval time.Duration
	// Attempts bounds the number of status queries; 0 polls until the
	// context is cancelled or Timeout elapses.
	Attempts int
	// Timeout bounds the wall clock time of one wait; 0 means no bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// WaitStopped returns once the task reports Stopped.
func (p Poller) WaitStopped(ctx context.Context, c supervisor.Client, task cluster.Task) error {
	return p.wait(ctx, "wait-stopped", c, task, func(s supervisor.RunState) bool {
		return s == supervisor.Stopped
	})
}

// WaitDown returns once the task is neither Starting nor Running. Stopping and
// Unknown satisfy it.
func (p Poller) WaitDown(ctx context.Context, c supervisor.Client, task cluster.Task) error {
	return p.wait(ctx, "wait-down", c, task, func(s supervisor.RunState) bool {
		return !s.Active()
	})
}

// WaitRunning returns once the task reports Running.
func (p Poller) WaitRunning(ctx context.Context, c supervisor.Client, task cluster.Task) error {
	return p.wait(ctx, "wait-running", c, task, func(s supervisor.RunState) bool {
		return s == supervisor.Running
	})
}

var errNotYet = errors.New("state not reached")

func (p Poller) wait(ctx context.Context, op string, c supervisor.Client, task cluster.Task, done func(supervisor.RunState) bool) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	parent := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Interval)
	if p.Attempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.Attempts-1))
	}
	b = backoff.WithContext(b, ctx)

	last := supervisor.Unknown
	poll := func() error {
		state, err := c.Status(ctx)
		if err != nil {
			return backoff.Permanent(apperrors.Remote("status", task.Role, task.ID, task.Host, err))
		}
		last = state
		if done(state) {
			return nil
		}
		return errNotYet
	}
	notify := func(_ error, next time.Duration) {
		logger.Debug("waiting for task", "op", op, "task", task.String(), "state", last.String(), "next", next)
	}

	err := backoff.RetryNotify(poll, b, notify)
	switch {
	case err == nil:
		logger.Info("task converged", "op", op, "task", task.String(), "state", last.String())
		return nil
	case errors.Is(err, errNotYet):
		return apperrors.Timeout(op, task.Role, task.ID, task.Host, last.String())
	case ctx.Err() != nil && parent.Err() == nil:
		return apperrors.Timeout(op, task.Role, task.ID, task.Host, last.String())
	case parent.Err() != nil:
		return fmt.Errorf("%s %s interrupted in state %s: %w", op, task, last, parent.Err())
	default:
		return err
	}
}
