package container

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"
	"pvefleet/internal/reconcile"
	"pvefleet/internal/registry"
	"pvefleet/internal/telemetry"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [name|id]",
		Short: "Scan hosts and register discovered containers",
		Long: "Scan hypervisor config directories for marker-tagged containers and\n" +
			"register a record for each one that has none yet. Without an\n" +
			"argument every registered host is scanned.",
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

			output := ui.NewTelemetryOutput()
			defer output.Close()
			tracer := output.Tracer("pvefleet")

			steps := make([]telemetry.PlannedStep, 0, len(hosts)+1)
			steps = append(steps, telemetry.PlannedStep{ID: "detect", Title: "detecting containers"})
			for _, h := range hosts {
				steps = append(steps, telemetry.PlannedStep{
					ID:       "detect/" + h.Name,
					ParentID: "detect",
					Title:    h.Name,
				})
			}

			op, err := telemetry.EmitPlan(cmd.Context(), tracer, "container detect", telemetry.Plan{Steps: steps})
			if err != nil {
				return err
			}

			var results []reconcile.DetectResult
			var failedHosts []string
			err = op.RunStep(op.Context(), "detect", func(ctx context.Context) error {
				results, failedHosts = runDetect(ctx, op, env.Engine(), hosts)
				if len(failedHosts) > 0 {
					// Host names only; the transport-level causes stay
					// in the debug log.
					return fmt.Errorf("detection failed on %s", strings.Join(failedHosts, ", "))
				}
				return nil
			})
			op.End(err)
			output.Close()

			printDetectResults(results)
			return err
		},
	}
	return cmd
}

// runDetect fans DetectAndRegister out across hosts, one step span per host.
// No host's discovery waits on another host's extraction or registry writes.
// It returns the per-host results plus the names of hosts that failed.
func runDetect(ctx context.Context, op *telemetry.Operation, engine *reconcile.Engine, hosts []registry.Host) ([]reconcile.DetectResult, []string) {
	outcomes := make([]reconcile.DetectResult, len(hosts))
	errs := make([]error, len(hosts))

	var g errgroup.Group
	for i, h := range hosts {
		i, h := i, h
		g.Go(func() error {
			errs[i] = op.RunStep(ctx, "detect/"+h.Name, func(ctx context.Context) error {
				res, err := engine.DetectAndRegister(ctx, h)
				if err != nil {
					return err
				}
				outcomes[i] = res
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()

	results := make([]reconcile.DetectResult, 0, len(hosts))
	var failedHosts []string
	for i, h := range hosts {
		if errs[i] != nil {
			slog.Debug("host detection failed", "host", h.Name, "err", errs[i])
			failedHosts = append(failedHosts, h.Name)
			continue
		}
		results = append(results, outcomes[i])
	}
	return results, failedHosts
}

func printDetectResults(results []reconcile.DetectResult) {
	created := 0
	for _, res := range results {
		created += len(res.Created)
	}

	if created == 0 {
		fmt.Println(ui.Muted("no new containers found"))
	} else {
		rows := make([][]string, 0, created)
		for _, res := range results {
			for _, rec := range res.Created {
				rows = append(rows, []string{rec.ContainerID, rec.Name, res.HostName})
			}
		}
		fmt.Println(ui.SuccessMsg("registered %d containers", created))
		fmt.Println(ui.Table([]string{"Container", "Name", "Host"}, rows))
	}

	for _, res := range results {
		for _, id := range res.Dropped {
			fmt.Println(ui.WarnMsg("%s: container %s has no hostname, skipped", res.HostName, id))
		}
		for _, f := range res.Failures {
			fmt.Println(ui.WarnMsg("%s: container %s: %s", res.HostName, f.ContainerID, f.Reason))
		}
	}
}
