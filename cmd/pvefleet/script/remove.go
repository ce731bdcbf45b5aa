package script

import (
	"errors"
	"fmt"
	"strconv"

	"pvefleet/cmd/pvefleet/cmdutil"
	"pvefleet/cmd/pvefleet/ui"
	"pvefleet/internal/registry"

	"github.com/spf13/cobra"
)

func removeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove <record-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a record without touching the container",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse record id: %w", err)
			}

			env, err := cmdutil.OpenEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			if !yes {
				ok, err := ui.Confirm(
					fmt.Sprintf("delete record %d?", id),
					"use --yes to skip",
				)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println(ui.Muted("aborted"))
					return nil
				}
			}

			if err := env.Store.DeleteRecord(cmd.Context(), id); err != nil {
				if errors.Is(err, registry.ErrNotFound) {
					fmt.Println(ui.Muted("record already gone"))
					return nil
				}
				return err
			}
			fmt.Println(ui.SuccessMsg("deleted record %d", id))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}
