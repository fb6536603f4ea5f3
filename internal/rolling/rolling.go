// Package rolling restarts the tasks of one job host by host, optionally
// moving regions off each region server first and keeping the balancer off
// for the duration of the run.
package rolling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/observability"
	"github.com/hbctl/hbctl/internal/role"
)

// Tasks is the per-task lifecycle the coordinator drives.
type Tasks interface {
	StopTask(ctx context.Context, task cluster.Task) error
	WaitDown(ctx context.Context, task cluster.Task) error
	StartTask(ctx context.Context, task cluster.Task) error
	WaitRunning(ctx context.Context, task cluster.Task) error
}

// Drainer moves regions off a host and back.
type Drainer interface {
	Unload(ctx context.Context, host string) error
	Load(ctx context.Context, host string) error
}

// HostConfirmer asks before each host is touched.
type HostConfirmer interface {
	ConfirmHost(ctx context.Context, task cluster.Task) error
}

// Options tune one rolling update.
type Options struct {
	// Drain unloads regions before stopping and reloads them after start.
	// Only honoured for region servers.
	Drain bool
	// Interval is the pause before every host except the first.
	Interval    time.Duration
	SkipConfirm bool
	// RestoreOnAbort turns the balancer back on when the run fails.
	RestoreOnAbort bool
}

// Callbacks provides hooks for progress reporting.
type Callbacks struct {
	OnTransition func(from, to State, task cluster.Task)
	OnHostDone   func(task cluster.Task)
}

// Report describes how a run ended.
type Report struct {
	Job       string
	Drained   bool
	Completed []cluster.Task
	// Failed is the task being processed when the run aborted.
	Failed      *cluster.Task
	FailedState State
	// BalancerLeftDisabled is set when the run ends with the balancer still off.
	BalancerLeftDisabled bool
}

// Coordinator runs rolling updates.
type Coordinator struct {
	Tasks     Tasks
	Balancer  Balancer
	Drainer   Drainer
	Confirmer HostConfirmer
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	Options   Options
	Callbacks Callbacks
	// Sleep waits between hosts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

type machine struct {
	c     *Coordinator
	job   string
	tasks []cluster.Task
	idx   int
	drain bool
	lease *Lease

	report *Report
	err    error
}

type transition func(m *machine, ctx context.Context) State

var transitions = map[State]transition{
	Idle:        (*machine).idle,
	BalancerOff: (*machine).balancerOff,
	Confirm:     (*machine).confirm,
	Drain:       (*machine).unload,
	Stop:        (*machine).stop,
	WaitStopped: (*machine).waitStopped,
	Start:       (*machine).start,
	WaitStarted: (*machine).waitStarted,
	Restore:     (*machine).load,
	BalancerOn:  (*machine).balancerOn,
}

// Run updates tasks of job in the given order. Any failure aborts the run
// and leaves the remaining hosts untouched.
func (c *Coordinator) Run(ctx context.Context, job string, tasks []cluster.Task) (*Report, error) {
	logger := c.logger()
	drain := c.Options.Drain && job == role.RegionServer
	if c.Options.Drain && !drain {
		logger.Warn("region draining only applies to region servers, ignoring", "job", job)
	}

	m := &machine{
		c:      c,
		job:    job,
		tasks:  tasks,
		drain:  drain,
		report: &Report{Job: job, Drained: drain},
	}
	if drain {
		m.lease = NewLease(c.Balancer, c.Metrics)
	}

	state := Idle
	for !state.Terminal() {
		next := transitions[state](m, ctx)
		logger.Debug("rolling update transition", "from", state.String(), "to", next.String())
		if c.Callbacks.OnTransition != nil {
			c.Callbacks.OnTransition(state, next, m.current())
		}
		state = next
	}

	if state == Aborted {
		m.abort(ctx)
	}
	return m.report, m.err
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (m *machine) current() cluster.Task {
	if m.idx < len(m.tasks) {
		return m.tasks[m.idx]
	}
	return cluster.Task{}
}

func (m *machine) fail(s State, err error) State {
	m.err = err
	m.report.FailedState = s
	if s.PerHost() {
		task := m.current()
		m.report.Failed = &task
		m.c.Metrics.RecordRollingHost(context.Background(), m.job, false)
	}
	return Aborted
}

func (m *machine) firstHost() State {
	if len(m.tasks) == 0 {
		return m.finish()
	}
	return Confirm
}

func (m *machine) finish() State {
	if m.drain {
		return BalancerOn
	}
	return Done
}

func (m *machine) idle(_ context.Context) State {
	if m.drain {
		return BalancerOff
	}
	return m.firstHost()
}

func (m *machine) balancerOff(ctx context.Context) State {
	if err := m.lease.Acquire(ctx); err != nil {
		return m.fail(BalancerOff, err)
	}
	m.c.logger().Info("balancer disabled for rolling update", "job", m.job)
	return m.firstHost()
}

func (m *machine) confirm(ctx context.Context) State {
	var wait time.Duration
	if m.idx > 0 {
		wait = m.c.Options.Interval
	}
	sleep := m.c.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if err := sleep(ctx, wait); err != nil {
		return m.fail(Confirm, err)
	}
	if !m.c.Options.SkipConfirm && m.c.Confirmer != nil {
		if err := m.c.Confirmer.ConfirmHost(ctx, m.current()); err != nil {
			return m.fail(Confirm, err)
		}
	}
	if m.drain {
		return Drain
	}
	return Stop
}

func (m *machine) unload(ctx context.Context) State {
	task := m.current()
	if err := m.c.Drainer.Unload(ctx, task.Host); err != nil {
		return m.fail(Drain, classify("unload", task, err))
	}
	return Stop
}

func (m *machine) stop(ctx context.Context) State {
	if err := m.c.Tasks.StopTask(ctx, m.current()); err != nil {
		return m.fail(Stop, err)
	}
	return WaitStopped
}

func (m *machine) waitStopped(ctx context.Context) State {
	if err := m.c.Tasks.WaitDown(ctx, m.current()); err != nil {
		return m.fail(WaitStopped, err)
	}
	return Start
}

func (m *machine) start(ctx context.Context) State {
	if err := m.c.Tasks.StartTask(ctx, m.current()); err != nil {
		return m.fail(Start, err)
	}
	return WaitStarted
}

func (m *machine) waitStarted(ctx context.Context) State {
	if err := m.c.Tasks.WaitRunning(ctx, m.current()); err != nil {
		return m.fail(WaitStarted, err)
	}
	if m.drain {
		return Restore
	}
	return m.nextHost(ctx)
}

func (m *machine) load(ctx context.Context) State {
	task := m.current()
	if err := m.c.Drainer.Load(ctx, task.Host); err != nil {
		return m.fail(Restore, classify("load", task, err))
	}
	return m.nextHost(ctx)
}

func (m *machine) nextHost(ctx context.Context) State {
	task := m.current()
	m.report.Completed = append(m.report.Completed, task)
	m.c.Metrics.RecordRollingHost(ctx, m.job, true)
	m.c.logger().Info("host updated", "task", task.String(), "done", len(m.report.Completed), "total", len(m.tasks))
	if m.c.Callbacks.OnHostDone != nil {
		m.c.Callbacks.OnHostDone(task)
	}
	m.idx++
	if m.idx < len(m.tasks) {
		return Confirm
	}
	return m.finish()
}

func (m *machine) balancerOn(ctx context.Context) State {
	if err := m.lease.Release(ctx); err != nil {
		return m.fail(BalancerOn, err)
	}
	m.c.logger().Info("balancer re-enabled", "job", m.job)
	return Done
}

// abort runs after a failure. The balancer stays off unless RestoreOnAbort is set.
func (m *machine) abort(ctx context.Context) {
	logger := m.c.logger()
	if m.lease != nil && m.lease.Held() {
		if m.c.Options.RestoreOnAbort {
			// the command context may be the reason we are aborting
			if err := m.lease.Release(context.WithoutCancel(ctx)); err != nil {
				m.err = errors.Join(m.err, err)
			}
		}
		if m.lease.Held() {
			logger.Warn("rolling update aborted with the balancer disabled; run balance_switch true once the cluster is healthy", "job", m.job)
		}
	}
	if m.lease != nil {
		m.report.BalancerLeftDisabled = m.lease.Held()
	}
	logger.Error("rolling update aborted", "job", m.job, "state", m.report.FailedState.String(), "completed", len(m.report.Completed), "error", m.err)
}

func classify(op string, task cluster.Task, err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return apperrors.Remote(op, task.Role, task.ID, task.Host, err)
	}
	if appErr.Role != "" {
		return err
	}
	// Errors raised before any task context existed, such as a failed
	// reverse lookup, get the task they were raised for.
	scoped := *appErr
	if scoped.Op == "" {
		scoped.Op = op
	}
	scoped.Role, scoped.TaskID, scoped.Host = task.Role, task.ID, task.Host
	return &scoped
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
