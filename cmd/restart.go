package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/engine"
)

var restartCmd = &cobra.Command{
	Use:   "restart <cluster>",
	Short: "Stop every selected task, then start them again",
	Long: `Stops all selected tasks masters first, then for each task in start order
waits until it is stopped and starts it with freshly rendered configuration.
Each wait gives up after the configured number of polls.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("restart", args[0], true, func(ctx context.Context, eng *engine.Engine) error {
			ctl := eng.Controller("restart", eng.RestartPoller())
			tok, err := confirmSelection(ctx, eng, ctl, confirm.ActionRestart)
			if err != nil {
				return err
			}
			if err := ctl.Restart(ctx, selection(), tok); err != nil {
				return err
			}
			fmt.Printf("Restarted %s\n", eng.Cluster.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
