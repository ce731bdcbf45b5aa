package container

import (
	"fmt"
	"sort"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"
	"pvefleet/internal/probe"
	"pvefleet/internal/registry"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [name|id]",
		Short: "Show live status of registered containers",
		Long: "Probe hosts for the live run state of every container-bound record.\n" +
			"Status is never persisted; each call asks the hypervisor again.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			records, err := env.Store.ListRemoteRecords(cmd.Context())
			if err != nil {
				return err
			}

			var only *registry.Host
			if len(args) == 1 {
				h, err := cmdutil.ResolveHost(cmd.Context(), env.Store, args[0])
				if err != nil {
					return err
				}
				only = &h
			}

			byHost := make(map[int64][]registry.ScriptRecord)
			for _, rec := range records {
				if !rec.Bound() {
					continue
				}
				if only != nil && rec.HostID != only.ID {
					continue
				}
				byHost[rec.HostID] = append(byHost[rec.HostID], rec)
			}
			if len(byHost) == 0 {
				fmt.Println(ui.Muted("no containers registered"))
				return nil
			}

			hostIDs := make([]int64, 0, len(byHost))
			for id := range byHost {
				hostIDs = append(hostIDs, id)
			}
			sort.Slice(hostIDs, func(i, j int) bool { return hostIDs[i] < hostIDs[j] })

			prober := env.Prober()
			var rows [][]string
			for _, hostID := range hostIDs {
				recs := byHost[hostID]

				host, ok, err := env.Store.GetHost(cmd.Context(), hostID)
				if err != nil {
					return err
				}
				hostName := fmt.Sprintf("host %d (removed)", hostID)
				if ok {
					hostName = host.Name
				}

				ids := make([]string, len(recs))
				for i, rec := range recs {
					ids[i] = rec.ContainerID
				}

				statuses := map[string]probe.Status{}
				if ok {
					statuses = prober.Status(cmd.Context(), host, ids)
				}

				for _, rec := range recs {
					status, found := statuses[rec.ContainerID]
					if !found {
						status = probe.StatusUnknown
					}
					rows = append(rows, []string{
						rec.ContainerID,
						rec.Name,
						hostName,
						renderStatus(status),
					})
				}
			}

			fmt.Println(ui.Table([]string{"Container", "Name", "Host", "Status"}, rows))
			return nil
		},
	}
}

func renderStatus(s probe.Status) string {
	switch s {
	case probe.StatusRunning:
		return ui.Success(string(s))
	case probe.StatusStopped:
		return ui.Warn(string(s))
	default:
		return ui.Muted(string(s))
	}
}
