package main

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/shotty/internal/inventory"
)

func newVolumesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "Commands for volumes",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List EC2 volumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, _ := cmd.Flags().GetString("instance")
			q := a.query(a.projectFlag(cmd), instance)
			return a.list(cmd, func(inv *inventory.Inventory) error {
				return inv.ListVolumes(cmd.Context(), q)
			})
		},
	}
	addSelectionFlags(list, defaultProjectHelp())
	addOutputFlag(list)

	cmd.AddCommand(list)
	return cmd
}
