package host

import (
	"fmt"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"

	"github.com/spf13/cobra"
)

func removeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove <name|id>",
		Aliases: []string{"rm"},
		Short:   "Remove a hypervisor from the registry",
		Long: "Remove a hypervisor. Records bound to its containers stay in the\n" +
			"registry until the next cleanup pass deletes them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			h, err := cmdutil.ResolveHost(cmd.Context(), env.Store, args[0])
			if err != nil {
				return err
			}

			if !yes {
				ok, err := ui.Confirm(
					fmt.Sprintf("remove host %s?", ui.Accent(h.Name)),
					"use --yes to skip",
				)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println(ui.Muted("aborted"))
					return nil
				}
			}

			if err := env.Store.DeleteHost(cmd.Context(), h.ID); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("removed host %s", ui.Accent(h.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}
