package container

import (
	"context"
	"fmt"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"
	"pvefleet/internal/reconcile"
	"pvefleet/internal/telemetry"

	"github.com/spf13/cobra"
)

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records whose container no longer exists",
		Long: "Walk every container-bound record and delete the ones whose backing\n" +
			"container is confirmed gone. Records on unreachable hosts are kept:\n" +
			"absence of confirmation is not proof of absence.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			output := ui.NewTelemetryOutput()
			defer output.Close()
			tracer := output.Tracer("pvefleet")

			op, err := telemetry.EmitPlan(cmd.Context(), tracer, "container cleanup", telemetry.Plan{
				Steps: []telemetry.PlannedStep{
					{ID: "cleanup", Title: "removing orphaned records"},
				},
			})
			if err != nil {
				return err
			}

			engine := env.Engine()
			var result reconcile.CleanupResult
			err = op.RunStep(op.Context(), "cleanup", func(ctx context.Context) error {
				var err error
				result, err = engine.CleanupOrphans(ctx)
				return err
			})
			op.End(err)
			output.Close()
			if err != nil {
				return err
			}

			if len(result.Deleted) == 0 {
				fmt.Println(ui.Muted("no orphaned records"))
			} else {
				fmt.Println(ui.SuccessMsg("deleted %d orphaned records", len(result.Deleted)))
				for _, name := range result.Deleted {
					fmt.Println("  " + ui.Muted(name))
				}
			}
			for _, id := range result.Skipped {
				fmt.Println(ui.WarnMsg("container %s skipped: host unreachable", id))
			}
			if result.Retained > 0 {
				fmt.Println(ui.InfoMsg("%d records still backed by live containers", result.Retained))
			}
			return nil
		},
	}
}
