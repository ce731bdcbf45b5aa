package container

import "github.com/spf13/cobra"

func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Discover and control script-managed containers",
	}
	cmd.AddCommand(detectCmd())
	cmd.AddCommand(cleanupCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(startCmd())
	cmd.AddCommand(stopCmd())
	cmd.AddCommand(destroyCmd())
	return cmd
}
