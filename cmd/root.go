package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/config"
	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/engine"
	"github.com/hbctl/hbctl/internal/lifecycle"
	"github.com/hbctl/hbctl/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	jobs      []string
	tasks     []int
	assumeYes bool
	version   = "dev"
	commit    = "none"
	date      = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "hbctl",
	Short: "HBase cluster deployment and lifecycle tool",
	Long: `hbctl deploys and operates HBase clusters whose hosts run a process
supervisor agent. It renders per-host configuration, installs packages and
starts, stops, restarts or rolling-updates masters and region servers.`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.hbctl/hbctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringSliceVar(&jobs, "job", nil, "roles to act on (regionserver, master); default all")
	rootCmd.PersistentFlags().IntSliceVar(&tasks, "task", nil, "task ids to act on; default all")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func selection() lifecycle.Selection {
	return lifecycle.Selection{Roles: jobs, Tasks: tasks}
}

// confirmSelection validates --job and --task, then asks for confirmation.
func confirmSelection(ctx context.Context, eng *engine.Engine, ctl *lifecycle.Controller, action confirm.Action) (confirm.Token, error) {
	if err := ctl.Validate(selection()); err != nil {
		return confirm.Token{}, err
	}
	return eng.Gate(assumeYes).Confirm(ctx, action, describe())
}

// loadConfig reads the tool config. A missing default file means defaults;
// a missing explicit --config file is an error.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, cfgFile)
	if err != nil && cfgFile == "" && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// session runs fn against an opened engine for one cluster. Destructive
// commands pass lock so two of them never touch the same cluster at once.
func session(command, clusterName string, lock bool, fn func(context.Context, *engine.Engine) error) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logging.Setup(level, cfg.Logging.Directory)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, logger)
	defer func() {
		if cerr := eng.Close(context.WithoutCancel(ctx), command, err); cerr != nil {
			logger.Warn("cleanup failed", "command", command, "error", cerr)
		}
	}()

	if err = eng.Open(ctx, clusterName); err != nil {
		logger.Error("command failed", "command", command, "cluster", clusterName, "error", err)
		return err
	}
	if lock {
		if err = eng.Lock(); err != nil {
			return err
		}
	}
	logger.Info("command started", "command", command, "cluster", clusterName, "jobs", jobs, "tasks", tasks)
	if err = fn(ctx, eng); err != nil {
		logger.Error("command failed", "command", command, "cluster", clusterName, "error", err)
		return fmt.Errorf("%s %s: %w", command, clusterName, err)
	}
	logger.Info("command finished", "command", command, "cluster", clusterName)
	return nil
}
