// Package lifecycle drives the tasks of a resolved cluster through install,
// bootstrap, start, stop, restart, show and cleanup. Roles are visited in
// dependency order (reverse order for shutdown) and the first failing task
// aborts the whole command.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/converge"
	"github.com/hbctl/hbctl/internal/journal"
	"github.com/hbctl/hbctl/internal/observability"
	"github.com/hbctl/hbctl/internal/render"
	"github.com/hbctl/hbctl/internal/resolve"
	"github.com/hbctl/hbctl/internal/role"
	"github.com/hbctl/hbctl/internal/supervisor"
)

// Selection narrows a command to some roles and task ids. Empty fields select everything.
type Selection struct {
	Roles []string
	Tasks []int
}

// Options wires a Controller.
type Options struct {
	Dialer   supervisor.Dialer
	Renderer *render.Renderer
	Poller   converge.Poller
	Journal  journal.Recorder
	Metrics  *observability.Metrics
	Logger   *slog.Logger
	// Command names the CLI command in journal entries.
	Command string
}

// Controller runs lifecycle operations against one cluster.
type Controller struct {
	cluster  *resolve.Cluster
	dialer   supervisor.Dialer
	renderer *render.Renderer
	poller   converge.Poller
	journal  journal.Recorder
	metrics  *observability.Metrics
	logger   *slog.Logger
	command  string

	consumed map[string]bool
}

// New creates a controller.
func New(c *resolve.Cluster, opts Options) *Controller {
	if opts.Renderer == nil {
		opts.Renderer = render.New(c, "")
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Poller.Logger == nil {
		opts.Poller.Logger = opts.Logger
	}
	return &Controller{
		cluster:  c,
		dialer:   opts.Dialer,
		renderer: opts.Renderer,
		poller:   opts.Poller,
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		command:  opts.Command,
		consumed: make(map[string]bool),
	}
}

// Cluster returns the resolved cluster.
func (c *Controller) Cluster() *resolve.Cluster {
	return c.cluster
}

type step struct {
	job   *resolve.Job
	tasks []cluster.Task
}

// plan validates the selection against every selected role before anything runs.
func (c *Controller) plan(sel Selection, shutdown bool) ([]step, error) {
	order := role.StartOrder
	if shutdown {
		order = role.StopOrder
	}
	roles, err := order(sel.Roles)
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(roles))
	for _, r := range roles {
		job, err := c.cluster.Job(r.Name())
		if err != nil {
			return nil, err
		}
		tasks, err := job.Select(sel.Tasks)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{job: job, tasks: tasks})
	}
	return steps, nil
}

// Validate checks the selection without touching any host, so callers can
// reject a bad --job or --task before asking for confirmation.
func (c *Controller) Validate(sel Selection) error {
	_, err := c.plan(sel, false)
	return err
}

func (c *Controller) authorize(tok confirm.Token, action confirm.Action, singleUse bool) error {
	if !tok.For(action, c.cluster.Name) {
		return apperrors.Declined(string(action), "no confirmation token for this cluster")
	}
	if singleUse {
		if c.consumed[tok.Value] {
			return apperrors.Declined(string(action), "confirmation token was already used")
		}
		c.consumed[tok.Value] = true
	}
	return nil
}

// run performs one per-task operation with logging, metrics and a journal entry.
func (c *Controller) run(ctx context.Context, op string, task cluster.Task, fn func(supervisor.Client) error) error {
	start := time.Now()
	err := fn(c.dialer.For(task.Host, task.Role))
	elapsed := time.Since(start)

	c.metrics.RecordTaskOp(ctx, op, task.Role, err == nil, elapsed.Seconds())
	entry := journal.Entry{
		Time:     start.UTC(),
		Command:  c.command,
		Cluster:  c.cluster.Name,
		Op:       op,
		Role:     task.Role,
		TaskID:   task.ID,
		Host:     task.Host,
		Outcome:  journal.OK,
		Duration: elapsed,
	}
	if err != nil {
		entry.Outcome = journal.Failed
		entry.Error = err.Error()
	}
	if jerr := c.journal.Record(ctx, entry); jerr != nil {
		c.logger.Warn("journal write failed", "op", op, "task", task.String(), "error", jerr)
	}

	if err != nil {
		c.logger.Error("task operation failed", "op", op, "task", task.String(), "elapsed", elapsed, "error", err)
		return classify(op, task, err)
	}
	c.logger.Info("task operation done", "op", op, "task", task.String(), "elapsed", elapsed)
	return nil
}

func classify(op string, task cluster.Task, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", op, task, err)
	}
	return apperrors.Remote(op, task.Role, task.ID, task.Host, err)
}

// Install asks every host touched by the selection to fetch pkg, once per host.
func (c *Controller) Install(ctx context.Context, sel Selection, pkg supervisor.Package) error {
	steps, err := c.plan(sel, false)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, s := range steps {
		for _, task := range s.tasks {
			if seen[task.Host] {
				continue
			}
			seen[task.Host] = true
			err := c.run(ctx, "install", task, func(cl supervisor.Client) error {
				return cl.Install(ctx, pkg)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Bootstrap initialises and starts every selected task. The token is single use.
func (c *Controller) Bootstrap(ctx context.Context, sel Selection, tok confirm.Token) error {
	steps, err := c.plan(sel, false)
	if err != nil {
		return err
	}
	if err := c.authorize(tok, confirm.ActionBootstrap, true); err != nil {
		return err
	}
	for _, s := range steps {
		for _, task := range s.tasks {
			err := c.run(ctx, "bootstrap", task, func(cl supervisor.Client) error {
				return cl.Bootstrap(ctx, c.renderer.Artifact(), tok.Value)
			})
			if err != nil {
				return err
			}
			if err := c.StartTask(ctx, task); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start renders and launches every selected task in start order.
func (c *Controller) Start(ctx context.Context, sel Selection) error {
	steps, err := c.plan(sel, false)
	if err != nil {
		return err
	}
	for _, s := range steps {
		for _, task := range s.tasks {
			if err := c.StartTask(ctx, task); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stop stops every selected task in stop order.
func (c *Controller) Stop(ctx context.Context, sel Selection, tok confirm.Token) error {
	steps, err := c.plan(sel, true)
	if err != nil {
		return err
	}
	if err := c.authorize(tok, confirm.ActionStop, false); err != nil {
		return err
	}
	return c.stopAll(ctx, steps)
}

func (c *Controller) stopAll(ctx context.Context, steps []step) error {
	for _, s := range steps {
		for _, task := range s.tasks {
			if err := c.StopTask(ctx, task); err != nil {
				return err
			}
		}
	}
	return nil
}

// Restart stops everything selected, then in start order waits for each task
// to be down and starts it again.
func (c *Controller) Restart(ctx context.Context, sel Selection, tok confirm.Token) error {
	stopSteps, err := c.plan(sel, true)
	if err != nil {
		return err
	}
	startSteps, err := c.plan(sel, false)
	if err != nil {
		return err
	}
	if err := c.authorize(tok, confirm.ActionRestart, false); err != nil {
		return err
	}

	if err := c.stopAll(ctx, stopSteps); err != nil {
		return err
	}
	for _, s := range startSteps {
		for _, task := range s.tasks {
			if err := c.WaitStopped(ctx, task); err != nil {
				return err
			}
			if err := c.StartTask(ctx, task); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup removes every selected task's data. The token is single use.
func (c *Controller) Cleanup(ctx context.Context, sel Selection, tok confirm.Token) error {
	steps, err := c.plan(sel, false)
	if err != nil {
		return err
	}
	if err := c.authorize(tok, confirm.ActionCleanup, true); err != nil {
		return err
	}
	for _, s := range steps {
		for _, task := range s.tasks {
			err := c.run(ctx, "cleanup", task, func(cl supervisor.Client) error {
				return cl.Cleanup(ctx, tok.Value)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// TaskStatus is one row of Show.
type TaskStatus struct {
	Task  cluster.Task
	State supervisor.RunState
	Err   error
}

// Show queries the live state of every selected task. It visits every task
// even when some fail and returns the collected failures alongside the rows.
func (c *Controller) Show(ctx context.Context, sel Selection) ([]TaskStatus, error) {
	steps, err := c.plan(sel, false)
	if err != nil {
		return nil, err
	}
	var rows []TaskStatus
	var result *multierror.Error
	for _, s := range steps {
		for _, task := range s.tasks {
			row := TaskStatus{Task: task}
			row.Err = c.run(ctx, "status", task, func(cl supervisor.Client) error {
				state, err := cl.Status(ctx)
				row.State = state
				return err
			})
			if row.Err != nil {
				result = multierror.Append(result, row.Err)
			}
			rows = append(rows, row)
		}
	}
	return rows, result.ErrorOrNil()
}

// StartTask renders the config files and launch script of a task on its host
// and asks the supervisor to start it.
func (c *Controller) StartTask(ctx context.Context, task cluster.Task) error {
	job, err := c.cluster.Job(task.Role)
	if err != nil {
		return err
	}
	return c.run(ctx, "start", task, func(cl supervisor.Client) error {
		host, err := hostContext(ctx, cl, task.Host)
		if err != nil {
			return err
		}
		files, err := c.renderer.ConfigFiles(task.Role, host)
		if err != nil {
			return err
		}
		script, err := c.renderer.StartScript(task.Role, host)
		if err != nil {
			return err
		}
		configs := make(map[string]string, len(files))
		for _, f := range files {
			configs[f.Name] = f.Content
		}
		return cl.Start(ctx, supervisor.LaunchRequest{
			Artifact:    c.renderer.Artifact(),
			Script:      script,
			ConfigFiles: configs,
			HTTPURL:     job.InfoURL(task.Host),
		})
	})
}

// StopTask asks the supervisor to stop a task.
func (c *Controller) StopTask(ctx context.Context, task cluster.Task) error {
	return c.run(ctx, "stop", task, func(cl supervisor.Client) error {
		return cl.Stop(ctx)
	})
}

// WaitStopped blocks until the task reports Stopped.
func (c *Controller) WaitStopped(ctx context.Context, task cluster.Task) error {
	return c.wait(ctx, "wait-stopped", task, c.poller.WaitStopped)
}

// WaitDown blocks until the task is no longer Starting or Running.
func (c *Controller) WaitDown(ctx context.Context, task cluster.Task) error {
	return c.wait(ctx, "wait-down", task, c.poller.WaitDown)
}

// WaitRunning blocks until the task is Running.
func (c *Controller) WaitRunning(ctx context.Context, task cluster.Task) error {
	return c.wait(ctx, "wait-running", task, c.poller.WaitRunning)
}

type waitFunc func(context.Context, supervisor.Client, cluster.Task) error

func (c *Controller) wait(ctx context.Context, op string, task cluster.Task, fn waitFunc) error {
	start := time.Now()
	err := c.run(ctx, op, task, func(cl supervisor.Client) error {
		return fn(ctx, cl, task)
	})
	c.metrics.RecordWait(ctx, op, task.Role, time.Since(start).Seconds())
	return err
}

func hostContext(ctx context.Context, cl supervisor.Client, host string) (render.HostContext, error) {
	dirs, err := cl.AvailableDataDirs(ctx)
	if err != nil {
		return render.HostContext{}, fmt.Errorf("getting data dirs: %w", err)
	}
	logDir, err := cl.LogDir(ctx)
	if err != nil {
		return render.HostContext{}, fmt.Errorf("getting log dir: %w", err)
	}
	runDir, err := cl.RunDir(ctx)
	if err != nil {
		return render.HostContext{}, fmt.Errorf("getting run dir: %w", err)
	}
	return render.HostContext{Host: host, DataDirs: dirs, LogDir: logDir, RunDir: runDir}, nil
}
