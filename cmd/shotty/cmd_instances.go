package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/shotty/internal/executor"
	"github.com/yairfalse/shotty/internal/filter"
	"github.com/yairfalse/shotty/internal/inventory"
)

var errForceRequired = errors.New("must use --force switch if no project specified")

func newInstancesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Commands for instances",
	}

	cmd.AddCommand(
		newInstancesListCmd(a),
		newInstanceActionCmd(a, "stop", "Stop EC2 instances", func(ctx context.Context, e *executor.Executor, q filter.Query, _ *cobra.Command) (executor.Summary, error) {
			return e.Stop(ctx, q)
		}),
		newInstanceActionCmd(a, "start", "Start EC2 instances", func(ctx context.Context, e *executor.Executor, q filter.Query, _ *cobra.Command) (executor.Summary, error) {
			return e.Start(ctx, q)
		}),
		newRebootCmd(a),
		newInstanceActionCmd(a, "snapshot", "Create snapshots of all volumes", func(ctx context.Context, e *executor.Executor, q filter.Query, _ *cobra.Command) (executor.Summary, error) {
			return e.Snapshot(ctx, q)
		}),
	)
	return cmd
}

func newInstancesListCmd(a *app) *cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List EC2 instances",
		Long: `List EC2 instances. Listing every instance in the account requires
--force when no project is given.`,
		Example: `  shotty instances list --project acloud.guru
  shotty instances list --force
  shotty instances list --force --instance i-0abc -o table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, _ := cmd.Flags().GetString("project")
			instance, _ := cmd.Flags().GetString("instance")
			force, _ := cmd.Flags().GetBool("force")
			if project == "" && !force {
				return errForceRequired
			}

			q := a.query(project, instance)
			return a.list(cmd, func(inv *inventory.Inventory) error {
				return inv.ListInstances(cmd.Context(), q)
			})
		},
	}
	addSelectionFlags(list, "Only instances for project (tag Project:<name>)")
	list.Flags().Bool("force", false, "List all instances when no project is given")
	addOutputFlag(list)
	return list
}

type actionFunc func(ctx context.Context, e *executor.Executor, q filter.Query, cmd *cobra.Command) (executor.Summary, error)

func newInstanceActionCmd(a *app, use, short string, fn actionFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.act(cmd, fn)
		},
	}
	addSelectionFlags(cmd, defaultProjectHelp())
	return cmd
}

func newRebootCmd(a *app) *cobra.Command {
	cmd := newInstanceActionCmd(a, "reboot", "Reboot EC2 instances", func(ctx context.Context, e *executor.Executor, q filter.Query, cmd *cobra.Command) (executor.Summary, error) {
		soft, _ := cmd.Flags().GetBool("soft")
		return e.Reboot(ctx, q, soft)
	})
	cmd.Long = `Reboot EC2 instances by stopping them, waiting until they are stopped
and starting them again. --soft asks EC2 to reboot the guest in place.`
	cmd.Flags().Bool("soft", false, "Reboot in place instead of stop and start")
	return cmd
}

// act runs a mutating action against the selected instances.
func (a *app) act(cmd *cobra.Command, fn actionFunc) error {
	instance, _ := cmd.Flags().GetString("instance")
	q := a.query(a.projectFlag(cmd), instance)

	e := executor.New(a.compute, cmd.OutOrStdout(), executor.Options{
		TagKey:              a.cfg.Project.TagKey,
		SnapshotDescription: a.cfg.Snapshot.Description,
	})
	if a.guard != nil {
		e.WithGuard(a.guard)
	}
	if m, err := executor.NewMetrics(); err != nil {
		log.Warn().Err(err).Msg("executor metrics unavailable")
	} else {
		e.WithMetrics(m)
	}

	summary, err := fn(cmd.Context(), e, q, cmd)
	if err != nil {
		return err
	}

	log.Info().
		Str("action", string(summary.Action)).
		Str("query", q.String()).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("total", summary.Total()).
		Msg("action complete")
	return nil
}
