package container

import (
	"fmt"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"

	"github.com/spf13/cobra"
)

func destroyCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "destroy <host> <container-id>",
		Short: "Destroy a container and delete its record",
		Long: "Destroy the container on its hypervisor and, only after the command\n" +
			"succeeds, delete the registry record. A failed destroy keeps the\n" +
			"record so the container is never orphaned silently.",
		Args: cobra.ExactArgs(2),
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
			rec, err := cmdutil.ResolveRecord(cmd.Context(), env.Store, h, args[1])
			if err != nil {
				return err
			}

			if !yes {
				ok, err := ui.Confirm(
					fmt.Sprintf("destroy container %s (%s) on %s?",
						ui.Accent(rec.ContainerID), rec.Name, ui.Accent(h.Name)),
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

			if err := env.Actuator().Destroy(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("destroyed container %s on %s", ui.Accent(rec.ContainerID), ui.Accent(h.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}
