// Package executor runs the mutating instance commands: stop, start, reboot
// and snapshot.
package executor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/shotty/internal/filter"
	awsprovider "github.com/yairfalse/shotty/internal/provider/aws"
	"github.com/yairfalse/shotty/pkg/resource"
)

const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"

	restartTimeout = 20 * time.Minute
)

// Executor applies actions to every instance a query matches, one at a time.
// Per-instance failures are reported on out and never abort the loop.
type Executor struct {
	compute Compute
	out     io.Writer
	guard   Guard
	metrics *Metrics
	opts    Options
	tracer  trace.Tracer
}

// New creates an Executor writing progress lines to out.
func New(compute Compute, out io.Writer, opts Options) *Executor {
	if opts.TagKey == "" {
		opts.TagKey = filter.DefaultTagKey
	}
	return &Executor{
		compute: compute,
		out:     out,
		opts:    opts,
		tracer:  otel.Tracer("shotty.executor"),
	}
}

// WithGuard makes every per-instance action subject to g.
func (e *Executor) WithGuard(g Guard) *Executor {
	e.guard = g
	return e
}

// WithMetrics records per-instance outcomes on m.
func (e *Executor) WithMetrics(m *Metrics) *Executor {
	e.metrics = m
	return e
}

// Stop stops every matched instance.
func (e *Executor) Stop(ctx context.Context, q filter.Query) (Summary, error) {
	return e.each(ctx, ActionStop, q, func(ctx context.Context, inst resource.Instance) error {
		e.printf("Stopping instance %s...\n", inst.ID)
		if err := e.compute.StopInstance(ctx, inst.ID); err != nil {
			e.failure("stop", inst.ID, err)
			return err
		}
		return nil
	})
}

// Start starts every matched instance.
func (e *Executor) Start(ctx context.Context, q filter.Query) (Summary, error) {
	return e.each(ctx, ActionStart, q, func(ctx context.Context, inst resource.Instance) error {
		e.printf("Starting instance %s...\n", inst.ID)
		if err := e.compute.StartInstance(ctx, inst.ID); err != nil {
			e.failure("start", inst.ID, err)
			return err
		}
		return nil
	})
}

// Reboot restarts every matched instance. A cold reboot stops the instance,
// waits for it to stop and starts it again. A soft reboot asks EC2 to reboot
// the guest in place.
func (e *Executor) Reboot(ctx context.Context, q filter.Query, soft bool) (Summary, error) {
	return e.each(ctx, ActionReboot, q, func(ctx context.Context, inst resource.Instance) error {
		e.printf("Rebooting instance %s...\n", inst.ID)

		var err error
		if soft {
			err = e.compute.RebootInstance(ctx, inst.ID)
		} else {
			err = e.coldReboot(ctx, inst.ID)
		}
		if err != nil {
			e.failure("reboot", inst.ID, err)
			return err
		}
		return nil
	})
}

func (e *Executor) coldReboot(ctx context.Context, id string) error {
	if err := e.compute.StopInstance(ctx, id); err != nil {
		return err
	}
	if err := e.compute.WaitUntilStopped(ctx, id); err != nil {
		if ctx.Err() != nil {
			_ = e.restart(ctx, id, true, false)
		}
		return err
	}
	return e.restart(ctx, id, false, false)
}

// restart starts an instance this executor stopped. It runs on a context
// detached from cancellation so an interrupt cannot leave the instance
// stopped. settle waits for the stop to finish first.
func (e *Executor) restart(ctx context.Context, id string, settle, waitRunning bool) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restartTimeout)
	defer cancel()

	if settle {
		if err := e.compute.WaitUntilStopped(ctx, id); err != nil {
			return err
		}
	}
	if err := e.compute.StartInstance(ctx, id); err != nil {
		return err
	}
	if waitRunning {
		return e.compute.WaitUntilRunning(ctx, id)
	}
	return nil
}

// Snapshot snapshots every volume of every matched instance. Running
// instances are stopped first and started again afterwards. Volumes whose
// latest snapshot is still pending are skipped.
func (e *Executor) Snapshot(ctx context.Context, q filter.Query) (Summary, error) {
	summary, err := e.each(ctx, ActionSnapshot, q, func(ctx context.Context, inst resource.Instance) error {
		return e.snapshotInstance(ctx, q, inst)
	})
	if err != nil {
		return summary, err
	}
	e.printf("Done!\n")
	return summary, nil
}

func (e *Executor) snapshotInstance(ctx context.Context, q filter.Query, inst resource.Instance) error {
	wasRunning := inst.IsRunning()
	if wasRunning {
		e.printf("Stopping instance %s...\n", inst.ID)
		if err := e.compute.StopInstance(ctx, inst.ID); err != nil {
			e.failure("snapshot", inst.ID, err)
			return err
		}
	}
	if err := e.compute.WaitUntilStopped(ctx, inst.ID); err != nil {
		e.failure("snapshot", inst.ID, err)
		if wasRunning && ctx.Err() != nil {
			e.printf("Starting instance %s...\n", inst.ID)
			if rerr := e.restart(ctx, inst.ID, true, true); rerr != nil {
				e.failure("snapshot", inst.ID, rerr)
			}
		}
		return err
	}

	volErr := e.snapshotVolumes(ctx, q, inst)

	if wasRunning {
		e.printf("Starting instance %s...\n", inst.ID)
		if err := e.restart(ctx, inst.ID, false, true); err != nil {
			e.failure("snapshot", inst.ID, err)
			return err
		}
	}

	return volErr
}

// snapshotVolumes returns the last per-volume error, after trying every volume.
func (e *Executor) snapshotVolumes(ctx context.Context, q filter.Query, inst resource.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	volumes, err := e.compute.Volumes(ctx, inst.ID)
	if err != nil {
		e.failure("snapshot", inst.ID, err)
		return err
	}

	spec := awsprovider.SnapshotSpec{
		InstanceID:  inst.ID,
		Description: e.opts.SnapshotDescription,
		Tags:        e.snapshotTags(q, inst),
	}

	var lastErr error
	for _, v := range volumes {
		if err := ctx.Err(); err != nil {
			return err
		}
		snaps, err := e.compute.Snapshots(ctx, v)
		if err != nil {
			e.failure("snapshot", inst.ID, err)
			lastErr = err
			continue
		}
		if resource.HasPendingSnapshot(snaps) {
			e.printf("Skipping %s, snapshot already in progress\n", v.ID)
			log.Debug().Ctx(ctx).Str("volume_id", v.ID).Msg("snapshot already in progress")
			continue
		}

		e.printf("Creating snapshot of %s...\n", v.ID)
		snap, err := e.compute.CreateSnapshot(ctx, v.ID, spec)
		if err != nil {
			e.failure("snapshot", inst.ID, err)
			lastErr = err
			continue
		}
		e.metrics.RecordSnapshot(ctx)
		log.Debug().Ctx(ctx).
			Str("instance_id", inst.ID).
			Str("volume_id", v.ID).
			Str("snapshot_id", snap.ID).
			Msg("snapshot created")
	}
	return lastErr
}

// snapshotTags tags new snapshots with the queried project, falling back to
// the instance's own project tag.
func (e *Executor) snapshotTags(q filter.Query, inst resource.Instance) map[string]string {
	project := q.Project
	if project == "" {
		if p, ok := inst.Tags[e.opts.TagKey]; ok {
			project = p
		}
	}
	if project == "" {
		return nil
	}
	return map[string]string{e.opts.TagKey: project}
}

type instanceFunc func(ctx context.Context, inst resource.Instance) error

// each lists the matched instances and applies fn to them in order.
func (e *Executor) each(ctx context.Context, action Action, q filter.Query, fn instanceFunc) (Summary, error) {
	ctx, span := e.tracer.Start(ctx, "executor."+string(action),
		trace.WithAttributes(attribute.String("query", q.String())))
	defer span.End()

	summary := Summary{Action: action}

	instances, err := e.compute.Instances(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list instances")
		return summary, fmt.Errorf("list instances: %w", err)
	}

	for _, inst := range instances {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if skip, reason := e.denied(ctx, action, q, inst); skip {
			e.printf("Skipping instance %s: %s\n", inst.ID, reason)
			log.Info().Ctx(ctx).Str("action", string(action)).Str("instance_id", inst.ID).Str("reason", reason).Msg("action denied by policy")
			summary.Skipped++
			e.metrics.RecordAction(ctx, action, outcomeSkipped)
			continue
		}

		if err := fn(ctx, inst); err != nil {
			log.Warn().Ctx(ctx).Err(err).Str("action", string(action)).Str("instance_id", inst.ID).Msg("instance action failed")
			summary.Failed++
			e.metrics.RecordAction(ctx, action, outcomeFailed)
			continue
		}
		summary.Succeeded++
		e.metrics.RecordAction(ctx, action, outcomeSuccess)
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	span.SetAttributes(
		attribute.Int("succeeded", summary.Succeeded),
		attribute.Int("failed", summary.Failed),
		attribute.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// denied consults the guard. A guard that cannot evaluate denies the action.
func (e *Executor) denied(ctx context.Context, action Action, q filter.Query, inst resource.Instance) (bool, string) {
	if e.guard == nil {
		return false, ""
	}

	project := q.Project
	if project == "" {
		project = inst.Project(e.opts.TagKey)
	}

	decision, err := e.guard.Check(ctx, string(action), project, inst)
	if err != nil {
		return true, fmt.Sprintf("policy check failed: %v", err)
	}
	if decision.Allowed {
		return false, ""
	}
	if len(decision.Reasons) == 0 {
		return true, "denied by policy"
	}
	return true, strings.Join(decision.Reasons, "; ")
}

func (e *Executor) failure(verb, id string, err error) {
	e.printf("Can not %s instance %s\n%s\n", verb, id, awsprovider.APIErrorMessage(err))
}

func (e *Executor) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}
