package host

import (
	"fmt"
	"time"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"
	"pvefleet/internal/registry"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	var skewBudget time.Duration

	cmd := &cobra.Command{
		Use:   "doctor [name|id]",
		Short: "Check host reachability and clock skew",
		Long: "Check that hosts answer over SSH and that their clocks stay within\n" +
			"the skew budget of an NTP reference. Without an argument every\n" +
			"registered host is checked.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			var hosts []registry.Host
			if len(args) == 1 {
				h, err := cmdutil.ResolveHost(cmd.Context(), env.Store, args[0])
				if err != nil {
					return err
				}
				hosts = []registry.Host{h}
			} else {
				hosts, err = env.Store.ListHosts(cmd.Context())
				if err != nil {
					return err
				}
			}
			if len(hosts) == 0 {
				fmt.Println(ui.Muted("no hosts registered"))
				return nil
			}

			doc := env.Doctor()
			if skewBudget > 0 {
				doc.Budget = skewBudget
			}

			unhealthy := 0
			for _, report := range doc.CheckAll(cmd.Context(), hosts) {
				if report.Healthy {
					fmt.Println(ui.SuccessMsg("%s: %s", ui.Accent(report.HostName), report.Summary()))
					continue
				}
				unhealthy++
				fmt.Println(ui.WarnMsg("%s: %s", ui.Accent(report.HostName), report.Summary()))
			}

			if unhealthy > 0 {
				return fmt.Errorf("%d of %d hosts unhealthy", unhealthy, len(hosts))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&skewBudget, "skew-budget", 0, "Maximum tolerated clock skew (default 2s)")
	return cmd
}
