package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/engine"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <cluster>",
	Short: "Remove the data of the selected tasks",
	Long: `Asks each selected host's supervisor to remove the task's data and
directories. This cannot be undone; you must type the cluster name to confirm.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("cleanup", args[0], true, func(ctx context.Context, eng *engine.Engine) error {
			ctl := eng.Controller("cleanup", eng.RestartPoller())
			tok, err := confirmSelection(ctx, eng, ctl, confirm.ActionCleanup)
			if err != nil {
				return err
			}
			if err := ctl.Cleanup(ctx, selection(), tok); err != nil {
				return err
			}
			fmt.Printf("Cleaned up %s\n", eng.Cluster.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
