package container

import (
	"fmt"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"

	"github.com/spf13/cobra"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <host> <container-id>",
		Short: "Start a registered container",
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

			if err := env.Actuator().Start(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("started container %s on %s", ui.Accent(rec.ContainerID), ui.Accent(h.Name)))
			return nil
		},
	}
}
