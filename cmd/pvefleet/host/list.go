package host

import (
	"fmt"
	"strconv"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered hypervisors",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			hosts, err := env.Store.ListHosts(cmd.Context())
			if err != nil {
				return err
			}
			if len(hosts) == 0 {
				fmt.Println(ui.Muted("no hosts registered"))
				return nil
			}

			rows := make([][]string, len(hosts))
			for i, h := range hosts {
				address := h.Address
				if h.Local() {
					address = "local"
				}
				user := h.User
				if user == "" {
					user = "-"
				}
				port := "-"
				if h.Port > 0 {
					port = strconv.Itoa(h.Port)
				}
				rows[i] = []string{
					strconv.FormatInt(h.ID, 10),
					h.Name,
					address,
					user,
					port,
				}
			}

			fmt.Println(ui.Table(
				[]string{"ID", "Name", "Address", "User", "Port"},
				rows,
			))
			return nil
		},
	}
}
