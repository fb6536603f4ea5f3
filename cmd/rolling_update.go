package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/engine"
	"github.com/hbctl/hbctl/internal/rolling"
)

var (
	vacateRS        bool
	timeInterval    time.Duration
	skipConfirm     bool
	restoreBalancer bool
	waitTimeout     time.Duration
)

var rollingUpdateCmd = &cobra.Command{
	Use:   "rolling-update <cluster> --job <role>",
	Short: "Restart one job host by host",
	Long: `Restarts the tasks of one job one at a time, waiting for each to stop and
come back before moving on. With --vacate-rs (region servers only) the balancer
is switched off for the run and each server's regions are moved away before it
stops and back after it starts.

Any failure aborts the run and leaves later hosts untouched. The balancer then
stays off unless --restore-balancer-on-abort is given; show warns about it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("rolling-update", args[0], true, func(ctx context.Context, eng *engine.Engine) error {
			var job string
			if len(jobs) > 0 {
				job = jobs[0]
			}
			if len(jobs) > 1 {
				eng.Logger.Warn("rolling update handles one job, ignoring the rest", "job", job, "ignored", jobs[1:])
			}

			report, err := eng.RollingUpdate(ctx, engine.RollingOptions{
				Job:   job,
				Tasks: tasks,
				Options: rolling.Options{
					Drain:          vacateRS,
					Interval:       timeInterval,
					SkipConfirm:    skipConfirm,
					RestoreOnAbort: restoreBalancer,
				},
				AssumeYes:   assumeYes,
				WaitTimeout: waitTimeout,
			})
			if report != nil {
				printRollingReport(report)
			}
			return err
		})
	},
}

func init() {
	rollingUpdateCmd.Flags().BoolVar(&vacateRS, "vacate-rs", false, "move regions off each region server before restarting it")
	rollingUpdateCmd.Flags().DurationVar(&timeInterval, "time-interval", 30*time.Second, "wait between hosts")
	rollingUpdateCmd.Flags().BoolVar(&skipConfirm, "skip-confirm", false, "do not confirm the run or each host")
	rollingUpdateCmd.Flags().BoolVar(&restoreBalancer, "restore-balancer-on-abort", false, "switch the balancer back on when the run aborts")
	rollingUpdateCmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "give up waiting for a task to stop or start after this long (0 waits forever)")
	rootCmd.AddCommand(rollingUpdateCmd)
}

func printRollingReport(r *rolling.Report) {
	fmt.Printf("Rolling update of %s: %d tasks restarted\n", r.Job, len(r.Completed))
	for _, t := range r.Completed {
		fmt.Printf("  ok      %s\n", t)
	}
	if r.Failed != nil {
		fmt.Printf("  failed  %s (%s)\n", r.Failed, r.FailedState)
	}
	if r.BalancerLeftDisabled {
		fmt.Println(warnStyle.Render("WARNING: the balancer is still disabled"))
	}
}
