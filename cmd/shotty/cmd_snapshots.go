package main

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/shotty/internal/inventory"
)

func newSnapshotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Commands for snapshots",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List EC2 volume snapshots",
		Long: `List the snapshots of every volume attached to the selected instances,
newest first. By default only snapshots up to the most recent completed
one are shown per volume.`,
		Example: `  shotty snapshots list                     # default project
  shotty snapshots list --all               # every snapshot
  shotty snapshots list --instance i-0abc   # one instance
  shotty snapshots list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, _ := cmd.Flags().GetString("instance")
			all, _ := cmd.Flags().GetBool("all")
			q := a.query(a.projectFlag(cmd), instance)
			return a.list(cmd, func(inv *inventory.Inventory) error {
				return inv.ListSnapshots(cmd.Context(), q, all)
			})
		},
	}
	addSelectionFlags(list, defaultProjectHelp())
	list.Flags().Bool("all", false, "List all snapshots for each volume, not just the most recent")
	addOutputFlag(list)

	cmd.AddCommand(list)
	return cmd
}
