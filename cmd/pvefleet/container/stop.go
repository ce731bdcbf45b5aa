package container

import (
	"fmt"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"

	"github.com/spf13/cobra"
)

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <host> <container-id>",
		Short: "Stop a registered container",
		Args:  cobra.ExactArgs(2),
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

			if err := env.Actuator().Stop(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("stopped container %s on %s", ui.Accent(rec.ContainerID), ui.Accent(h.Name)))
			return nil
		},
	}
}
