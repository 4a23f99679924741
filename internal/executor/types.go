package executor

import (
	"context"

	"github.com/yairfalse/shotty/internal/inventory"
	"github.com/yairfalse/shotty/internal/policy"
	awsprovider "github.com/yairfalse/shotty/internal/provider/aws"
	"github.com/yairfalse/shotty/pkg/resource"
)

// Action names a mutating instance command.
type Action string

const (
	ActionStop     Action = "stop"
	ActionStart    Action = "start"
	ActionReboot   Action = "reboot"
	ActionSnapshot Action = "snapshot"
)

// Compute is the EC2 surface the executor drives.
type Compute interface {
	inventory.Source
	StopInstance(ctx context.Context, id string) error
	StartInstance(ctx context.Context, id string) error
	RebootInstance(ctx context.Context, id string) error
	WaitUntilStopped(ctx context.Context, id string) error
	WaitUntilRunning(ctx context.Context, id string) error
	CreateSnapshot(ctx context.Context, volumeID string, spec awsprovider.SnapshotSpec) (resource.Snapshot, error)
}

// Guard decides whether an action may run against an instance.
// *policy.Engine satisfies it.
type Guard interface {
	Check(ctx context.Context, action, project string, inst resource.Instance) (policy.Decision, error)
}

// Options configures an Executor.
type Options struct {
	// TagKey is the tag that carries the project name.
	TagKey string
	// SnapshotDescription is set on every snapshot created.
	SnapshotDescription string
}

// Summary counts per-instance outcomes of one action.
type Summary struct {
	Action    Action `json:"action"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Total returns the number of instances the action visited.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

var _ Compute = (*awsprovider.Client)(nil)
