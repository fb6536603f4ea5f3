package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/engine"
)

var stopCmd = &cobra.Command{
	Use:   "stop <cluster>",
	Short: "Stop the selected tasks, masters first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("stop", args[0], true, func(ctx context.Context, eng *engine.Engine) error {
			ctl := eng.Controller("stop", eng.RestartPoller())
			tok, err := confirmSelection(ctx, eng, ctl, confirm.ActionStop)
			if err != nil {
				return err
			}
			if err := ctl.Stop(ctx, selection(), tok); err != nil {
				return err
			}
			fmt.Printf("Stopped %s\n", eng.Cluster.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
