package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/engine"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <cluster>",
	Short: "Initialise and start the selected tasks",
	Long: `Initialises every selected task's directories on its host and starts it.
You must type the cluster name to confirm.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("bootstrap", args[0], true, func(ctx context.Context, eng *engine.Engine) error {
			ctl := eng.Controller("bootstrap", eng.RestartPoller())
			tok, err := confirmSelection(ctx, eng, ctl, confirm.ActionBootstrap)
			if err != nil {
				return err
			}
			if err := ctl.Bootstrap(ctx, selection(), tok); err != nil {
				return err
			}
			fmt.Printf("Bootstrapped %s\n", eng.Cluster.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}
