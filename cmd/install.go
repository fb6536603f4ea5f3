package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/engine"
)

var installCmd = &cobra.Command{
	Use:   "install <cluster>",
	Short: "Publish the HBase package and install it on every host",
	Long: `Uploads the tarball of the cluster's HBase version to the artifact bucket
when it is not there yet, then asks each selected host's supervisor to fetch
it. Hosts shared by several tasks install once.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("install", args[0], true, func(ctx context.Context, eng *engine.Engine) error {
			pkg, err := eng.Publish(ctx)
			if err != nil {
				return err
			}
			if err := eng.Controller("install", eng.RestartPoller()).Install(ctx, selection(), pkg); err != nil {
				return err
			}
			fmt.Printf("Installed %s on %s\n", pkg.Artifact, eng.Cluster.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
