// Package inventory implements the read-only listing commands.
package inventory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/shotty/internal/emitter"
	"github.com/yairfalse/shotty/internal/filter"
	"github.com/yairfalse/shotty/pkg/resource"
)

// Source is the read side of the EC2 provider.
type Source interface {
	Instances(ctx context.Context, q filter.Query) ([]resource.Instance, error)
	Volumes(ctx context.Context, instanceID string) ([]resource.Volume, error)
	Snapshots(ctx context.Context, volume resource.Volume) ([]resource.Snapshot, error)
}

// Inventory lists instances, volumes and snapshots to an emitter.
type Inventory struct {
	source Source
	out    emitter.Emitter
	tracer trace.Tracer
}

// New creates an Inventory. The caller owns out and must Close it.
func New(source Source, out emitter.Emitter) *Inventory {
	return &Inventory{
		source: source,
		out:    out,
		tracer: otel.Tracer("shotty.inventory"),
	}
}

// ListInstances emits every instance matching q.
func (i *Inventory) ListInstances(ctx context.Context, q filter.Query) error {
	ctx, span := i.tracer.Start(ctx, "inventory.instances",
		trace.WithAttributes(attribute.String("query", q.String())))
	defer span.End()

	instances, err := i.source.Instances(ctx, q)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}

	for _, inst := range instances {
		if err := i.out.Emit(inst); err != nil {
			return err
		}
	}

	log.Debug().Ctx(ctx).Str("query", q.String()).Int("count", len(instances)).Msg("listed instances")
	return nil
}

// ListVolumes emits the volumes attached to every instance matching q.
func (i *Inventory) ListVolumes(ctx context.Context, q filter.Query) error {
	ctx, span := i.tracer.Start(ctx, "inventory.volumes",
		trace.WithAttributes(attribute.String("query", q.String())))
	defer span.End()

	instances, err := i.source.Instances(ctx, q)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}

	count := 0
	for _, inst := range instances {
		volumes, err := i.source.Volumes(ctx, inst.ID)
		if err != nil {
			return fmt.Errorf("list volumes of %s: %w", inst.ID, err)
		}
		for _, v := range volumes {
			if err := i.out.Emit(v); err != nil {
				return err
			}
			count++
		}
	}

	log.Debug().Ctx(ctx).Str("query", q.String()).Int("count", count).Msg("listed volumes")
	return nil
}

// ListSnapshots emits the snapshots of every volume of every instance
// matching q, newest first. Unless all is set, listing a volume stops after
// its most recent completed snapshot.
func (i *Inventory) ListSnapshots(ctx context.Context, q filter.Query, all bool) error {
	ctx, span := i.tracer.Start(ctx, "inventory.snapshots",
		trace.WithAttributes(
			attribute.String("query", q.String()),
			attribute.Bool("all", all),
		))
	defer span.End()

	instances, err := i.source.Instances(ctx, q)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}

	count := 0
	for _, inst := range instances {
		volumes, err := i.source.Volumes(ctx, inst.ID)
		if err != nil {
			return fmt.Errorf("list volumes of %s: %w", inst.ID, err)
		}
		for _, v := range volumes {
			snaps, err := i.source.Snapshots(ctx, v)
			if err != nil {
				return fmt.Errorf("list snapshots of %s: %w", v.ID, err)
			}
			n, err := i.emitSnapshots(snaps, all)
			if err != nil {
				return err
			}
			count += n
		}
	}

	log.Debug().Ctx(ctx).Str("query", q.String()).Int("count", count).Msg("listed snapshots")
	return nil
}

func (i *Inventory) emitSnapshots(snaps []resource.Snapshot, all bool) (int, error) {
	n := 0
	for _, s := range snaps {
		if err := i.out.Emit(s); err != nil {
			return n, err
		}
		n++
		if s.State == resource.SnapshotCompleted && !all {
			break
		}
	}
	return n, nil
}
