package script

import (
	"fmt"
	"strconv"
	"strings"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var remoteOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed-script records",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			records, err := env.Store.ListRecords(cmd.Context())
			if err != nil {
				return err
			}
			if remoteOnly {
				records, err = env.Store.ListRemoteRecords(cmd.Context())
				if err != nil {
					return err
				}
			}
			if len(records) == 0 {
				fmt.Println(ui.Muted("no records"))
				return nil
			}

			hostNames := make(map[int64]string)
			rows := make([][]string, len(records))
			for i, rec := range records {
				hostName := "-"
				if rec.HostID != 0 {
					name, ok := hostNames[rec.HostID]
					if !ok {
						h, found, err := env.Store.GetHost(cmd.Context(), rec.HostID)
						if err != nil {
							return err
						}
						name = fmt.Sprintf("host %d (removed)", rec.HostID)
						if found {
							name = h.Name
						}
						hostNames[rec.HostID] = name
					}
					hostName = name
				}

				container := rec.ContainerID
				if container == "" {
					container = "-"
				}
				updated := strings.TrimSpace(rec.UpdatedAt)
				if updated == "" {
					updated = "-"
				}
				rows[i] = []string{
					strconv.FormatInt(rec.ID, 10),
					rec.Name,
					string(rec.ExecutionMode),
					string(rec.Status),
					container,
					hostName,
					updated,
				}
			}

			fmt.Println(ui.Table(
				[]string{"ID", "Name", "Mode", "Status", "Container", "Host", "Updated"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remoteOnly, "remote", false, "Show only container-bound remote records")
	return cmd
}
