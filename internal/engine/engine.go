// Package engine wires config, cluster resolution, transports and
// bookkeeping into the session every hbctl command runs in.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
	"github.com/hbctl/hbctl/internal/config"
	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/converge"
	"github.com/hbctl/hbctl/internal/dependency"
	"github.com/hbctl/hbctl/internal/hbshell"
	"github.com/hbctl/hbctl/internal/journal"
	"github.com/hbctl/hbctl/internal/lifecycle"
	"github.com/hbctl/hbctl/internal/lock"
	"github.com/hbctl/hbctl/internal/observability"
	"github.com/hbctl/hbctl/internal/pkgstore"
	"github.com/hbctl/hbctl/internal/render"
	"github.com/hbctl/hbctl/internal/resolve"
	"github.com/hbctl/hbctl/internal/rolling"
	"github.com/hbctl/hbctl/internal/state"
	"github.com/hbctl/hbctl/internal/supervisor"
)

// Engine is the per-invocation session shared by all commands. Fields left
// nil before Open are built from the config; tests set them to doubles.
type Engine struct {
	Config *config.Config
	Logger *slog.Logger

	Lookup   dependency.Lookup
	Dialer   supervisor.Dialer
	Journal  journal.Recorder
	Metrics  *observability.Metrics
	Packages pkgstore.Client
	Balancer rolling.Balancer
	Drainer  rolling.Drainer

	Cluster  *resolve.Cluster
	Renderer *render.Renderer
	State    *state.State

	statePath string
	lockPath  string
	locked    bool
	started   time.Time
	closers   []func(context.Context) error
}

// New creates a new Engine with the given config and logger.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Config: cfg, Logger: logger}
}

// Open loads and resolves a cluster and prepares every collaborator.
func (e *Engine) Open(ctx context.Context, clusterName string) error {
	e.started = time.Now()

	spec, err := cluster.Load(e.Config.ConfigRoot, resolve.Service, clusterName)
	if err != nil {
		return err
	}

	if e.Lookup == nil {
		if e.Lookup, err = e.openLookup(ctx); err != nil {
			return err
		}
	}

	e.Cluster, err = resolve.Resolve(ctx, spec, e.Lookup, resolve.Options{RemoteUser: e.Config.RemoteUser})
	if err != nil {
		return err
	}
	e.Logger.Info("cluster resolved", "cluster", e.Cluster.Name, "version", e.Cluster.Version,
		"zk", e.Cluster.Quorum.HostList(), "hdfs", e.Cluster.Filesystem.Name)

	var krb5 string
	if e.Cluster.Security.Enabled {
		data, err := os.ReadFile(e.Config.Krb5Path())
		if err != nil {
			return apperrors.Dependency("krb5 config", fmt.Sprintf("security is enabled but %s cannot be read: %v", e.Config.Krb5Path(), err))
		}
		krb5 = string(data)
	}
	e.Renderer = render.New(e.Cluster, krb5)

	if e.Journal == nil {
		if e.Journal, err = e.openJournal(ctx); err != nil {
			return err
		}
	}
	if e.Metrics == nil {
		if e.Metrics, err = observability.NewMetrics(); err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
		e.closers = append(e.closers, e.Metrics.Shutdown)
	}
	if e.Dialer == nil {
		e.Dialer = supervisor.NewHTTPDialer(supervisor.DialerConfig{
			Service:  resolve.Service,
			Cluster:  e.Cluster.Name,
			Port:     e.Config.Supervisor.Port,
			Username: e.Config.Supervisor.Username,
			Password: e.Config.Supervisor.Password,
		})
	}

	e.statePath = state.Path(e.Config.StateDir, e.Cluster.Name)
	e.lockPath = lock.Path(e.Config.StateDir, e.Cluster.Name)
	if e.State, err = state.Load(e.statePath, e.Cluster.Name); err != nil {
		return err
	}
	return nil
}

func (e *Engine) openLookup(ctx context.Context) (dependency.Lookup, error) {
	if e.Config.Inventory.DSN == "" {
		return dependency.NewFileLookup(e.Config.ConfigRoot), nil
	}
	pg := dependency.NewPostgresLookup(e.Config.Inventory.DSN)
	if err := pg.Connect(ctx); err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func(context.Context) error {
		pg.Close()
		return nil
	})
	return pg, nil
}

func (e *Engine) openJournal(ctx context.Context) (journal.Recorder, error) {
	if e.Config.Journal.URI == "" {
		return journal.Nop{}, nil
	}
	rec, err := journal.NewMongoRecorder(ctx, e.Config.Journal.URI, e.Config.Journal.Database)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, rec.Close)
	return rec, nil
}

// Lock takes the per-cluster lock; destructive commands call it after Open.
func (e *Engine) Lock() error {
	if err := lock.Acquire(e.lockPath); err != nil {
		return err
	}
	e.locked = true
	return nil
}

// Gate returns the confirmation gate of this cluster.
func (e *Engine) Gate(assumeYes bool) *confirm.Gate {
	return confirm.NewGate(e.Cluster.Name, assumeYes)
}

// RestartPoller bounds waits by the configured number of attempts.
func (e *Engine) RestartPoller() converge.Poller {
	return converge.Poller{
		Interval: e.Config.Polling.Interval,
		Attempts: e.Config.Polling.RestartAttempts,
		Logger:   e.Logger,
	}
}

// RollingPoller waits until cancelled, or at most timeout when it is set.
func (e *Engine) RollingPoller(timeout time.Duration) converge.Poller {
	return converge.Poller{
		Interval: e.Config.Polling.Interval,
		Timeout:  timeout,
		Logger:   e.Logger,
	}
}

// Controller creates the lifecycle controller for one command.
func (e *Engine) Controller(command string, poller converge.Poller) *lifecycle.Controller {
	return lifecycle.New(e.Cluster, lifecycle.Options{
		Dialer:   e.Dialer,
		Renderer: e.Renderer,
		Poller:   poller,
		Journal:  e.Journal,
		Metrics:  e.Metrics,
		Logger:   e.Logger,
		Command:  command,
	})
}

// Publish uploads the cluster version tarball if needed and returns the
// reference hosts install from.
func (e *Engine) Publish(ctx context.Context) (supervisor.Package, error) {
	if e.Config.Packages.S3Bucket == "" {
		return supervisor.Package{}, apperrors.Dependency("packages.s3_bucket", "install needs an artifact bucket in the hbctl config")
	}
	if e.Packages == nil {
		client, err := pkgstore.NewS3Client(ctx, e.Config.Packages.Profile, e.Config.Packages.Region)
		if err != nil {
			return supervisor.Package{}, err
		}
		e.Packages = client
	}
	store := pkgstore.New(e.Packages, e.Config.Packages.S3Bucket, e.Config.Packages.Prefix, e.Config.PackageRoot)
	pkg, res, err := store.Publish(ctx, resolve.Service, e.Cluster.Version)
	if err != nil {
		return supervisor.Package{}, err
	}
	e.Logger.Info("package published", "key", res.Key, "uploaded", res.Uploaded, "publisher", res.Publisher, "checksum", pkg.Checksum)
	return pkg, nil
}

func (e *Engine) shell() *hbshell.Shell {
	return hbshell.New(e.Renderer, e.Config.PackageRoot, e.Config.Krb5Path(), e.Logger)
}

// RollingOptions are the command line settings of a rolling update.
type RollingOptions struct {
	Job   string
	Tasks []int
	rolling.Options
	AssumeYes   bool
	WaitTimeout time.Duration
}

// RollingUpdate runs a rolling update of one job and records its outcome in
// the cluster state file.
func (e *Engine) RollingUpdate(ctx context.Context, opts RollingOptions) (*rolling.Report, error) {
	if opts.Job == "" {
		return nil, apperrors.Validation("job", "rolling update needs an explicit --job")
	}
	job, err := e.Cluster.Job(opts.Job)
	if err != nil {
		return nil, err
	}
	tasks, err := job.Select(opts.Tasks)
	if err != nil {
		return nil, err
	}

	gate := e.Gate(opts.AssumeYes || opts.SkipConfirm)
	if _, err := gate.Confirm(ctx, confirm.ActionRollingUpdate, fmt.Sprintf("job %s, %d tasks", opts.Job, len(tasks))); err != nil {
		return nil, err
	}

	if opts.Drain {
		sh := e.shell()
		if e.Balancer == nil {
			e.Balancer = sh
		}
		if e.Drainer == nil {
			e.Drainer = sh
		}
	}

	coord := &rolling.Coordinator{
		Tasks:     e.Controller("rolling-update", e.RollingPoller(opts.WaitTimeout)),
		Balancer:  e.Balancer,
		Drainer:   e.Drainer,
		Confirmer: gate,
		Metrics:   e.Metrics,
		Logger:    e.Logger,
		Options:   opts.Options,
	}

	started := time.Now()
	report, runErr := coord.Run(ctx, opts.Job, tasks)

	rec := state.RollingRecord{
		Job:        opts.Job,
		Drained:    report.Drained,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Outcome:    state.OutcomeComplete,
	}
	for _, t := range report.Completed {
		rec.Completed = append(rec.Completed, t.String())
	}
	if runErr != nil {
		rec.Outcome = state.OutcomeAborted
		rec.FailedState = report.FailedState.String()
		if report.Failed != nil {
			rec.FailedTask = report.Failed.String()
		}
	}
	e.State.RecordRolling(rec, report.BalancerLeftDisabled)
	return report, runErr
}

// History returns the latest journal entries of the cluster.
func (e *Engine) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	return e.Journal.Recent(ctx, e.Cluster.Name, limit)
}

// Close records the command outcome, pushes metrics and releases every
// resource. It is safe to call after a failed Open.
func (e *Engine) Close(ctx context.Context, command string, cmdErr error) error {
	var errs []error
	if e.Cluster != nil {
		e.Metrics.RecordCommand(ctx, command, cmdErr == nil, time.Since(e.started).Seconds())
		if err := e.Metrics.Push(ctx, e.Config.Metrics.Pushgateway, e.Cluster.Name); err != nil {
			e.Logger.Warn("metrics push failed", "error", err)
		}
	}
	if e.State != nil && e.locked {
		e.State.RecordCommand(command, cmdErr)
		if err := e.State.Save(e.statePath); err != nil {
			errs = append(errs, fmt.Errorf("saving state: %w", err))
		}
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	if e.locked {
		if err := lock.Release(e.lockPath); err != nil {
			errs = append(errs, fmt.Errorf("releasing lock: %w", err))
		}
		e.locked = false
	}
	return errors.Join(errs...)
}
