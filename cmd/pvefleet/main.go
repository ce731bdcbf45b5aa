package main

import (
	"fmt"
	"os"

	containercmd "pvefleet/cmd/pvefleet/container"
	hostcmd "pvefleet/cmd/pvefleet/host"
	scriptcmd "pvefleet/cmd/pvefleet/script"
	"pvefleet/cmd/pvefleet/ui"
	"pvefleet/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	var (
		debug         bool
		noInteraction bool
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "pvefleet",
		Short:         "Reconcile script-managed containers across a hypervisor fleet",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.ConfigureInteraction(noInteraction)

			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Disable prompts and animated output")

	root.AddCommand(hostcmd.Cmd())
	root.AddCommand(containercmd.Cmd())
	root.AddCommand(scriptcmd.Cmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
