package host

import (
	"fmt"
	"strconv"
	"strings"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"
	"pvefleet/internal/registry"
	"pvefleet/internal/transport"

	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	var address string
	var user string
	var port int
	var keyPath string
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a hypervisor",
		Long: "Register a hypervisor in the fleet registry. Without --address the\n" +
			"host is treated as the local machine and commands run through the\n" +
			"local shell.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("name is required")
			}

			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			h := registry.Host{
				Name:    name,
				Address: strings.TrimSpace(address),
				User:    user,
				Port:    port,
				KeyPath: keyPath,
			}

			if !h.Local() && !skipCheck {
				if err := env.Transport.TestConnectivity(cmd.Context(), transport.TargetFor(h)); err != nil {
					return fmt.Errorf("host unreachable (use --skip-check to register anyway): %w", err)
				}
			}

			created, err := env.Store.CreateHost(cmd.Context(), h)
			if err != nil {
				return err
			}

			where := created.Address
			if created.Local() {
				where = "local"
			}
			fmt.Println(ui.SuccessMsg("registered host %s", ui.Accent(created.Name)))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("id", strconv.FormatInt(created.ID, 10)),
				ui.KV("address", where),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "SSH address (empty for the local machine)")
	cmd.Flags().StringVar(&user, "user", "", "SSH user (default root)")
	cmd.Flags().IntVar(&port, "port", 0, "SSH port (default 22)")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key path")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the connectivity check")
	return cmd
}
