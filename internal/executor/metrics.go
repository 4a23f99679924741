package executor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds executor counters.
type Metrics struct {
	actions   metric.Int64Counter
	snapshots metric.Int64Counter
}

// NewMetrics creates executor metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("shotty.executor")

	actions, err := meter.Int64Counter(
		"shotty.instance.actions",
		metric.WithDescription("Per-instance actions by outcome"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		return nil, err
	}

	snapshots, err := meter.Int64Counter(
		"shotty.snapshots.created",
		metric.WithDescription("Volume snapshots requested"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{actions: actions, snapshots: snapshots}, nil
}

// RecordAction counts one instance outcome.
func (m *Metrics) RecordAction(ctx context.Context, action Action, outcome string) {
	if m == nil {
		return
	}
	m.actions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", string(action)),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordSnapshot counts one created snapshot.
func (m *Metrics) RecordSnapshot(ctx context.Context) {
	if m == nil {
		return
	}
	m.snapshots.Add(ctx, 1)
}
