package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/confirm"
	"github.com/hbctl/hbctl/internal/engine"
)

var startCmd = &cobra.Command{
	Use:   "start <cluster>",
	Short: "Render configuration and start the selected tasks",
	Long: `Regenerates each selected task's configuration files and launch script
and starts it, region servers before masters.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("start", args[0], true, func(ctx context.Context, eng *engine.Engine) error {
			ctl := eng.Controller("start", eng.RestartPoller())
			if _, err := confirmSelection(ctx, eng, ctl, confirm.ActionStart); err != nil {
				return err
			}
			if err := ctl.Start(ctx, selection()); err != nil {
				return err
			}
			fmt.Printf("Started %s\n", eng.Cluster.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

// describe summarises the --job and --task selection for prompts.
func describe() string {
	parts := []string{"all jobs"}
	if len(jobs) > 0 {
		parts[0] = "jobs " + strings.Join(jobs, ",")
	}
	if len(tasks) > 0 {
		ids := make([]string, len(tasks))
		for i, id := range tasks {
			ids[i] = fmt.Sprint(id)
		}
		parts = append(parts, "tasks "+strings.Join(ids, ","))
	}
	return strings.Join(parts, ", ")
}
