package script

import "github.com/spf13/cobra"

func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Inspect installed-script records",
	}
	cmd.AddCommand(listCmd())
	cmd.AddCommand(removeCmd())
	return cmd
}
