package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/shotty/pkg/resource"
)

// SnapshotSpec describes a snapshot to create.
type SnapshotSpec struct {
	InstanceID  string
	Description string
	Tags        map[string]string
}

// Snapshots returns the snapshots of a volume owned by this account, newest first.
func (c *Client) Snapshots(ctx context.Context, volume resource.Volume) ([]resource.Snapshot, error) {
	input := &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
		Filters: []ec2types.Filter{
			{Name: aws.String("volume-id"), Values: []string{volume.ID}},
		},
	}
	paginator := ec2.NewDescribeSnapshotsPaginator(c.ec2Client, input)

	var snapshots []resource.Snapshot
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe snapshots of %s: %w", volume.ID, err)
		}

		for _, s := range output.Snapshots {
			snapshots = append(snapshots, convertSnapshot(s, volume.InstanceID))
		}
	}

	resource.SortSnapshots(snapshots)
	return snapshots, nil
}

func convertSnapshot(s ec2types.Snapshot, instanceID string) resource.Snapshot {
	return resource.Snapshot{
		ID:         aws.ToString(s.SnapshotId),
		VolumeID:   aws.ToString(s.VolumeId),
		InstanceID: instanceID,
		State:      string(s.State),
		Progress:   aws.ToString(s.Progress),
		StartTime:  aws.ToTime(s.StartTime),
	}
}

// CreateSnapshot starts a snapshot of the volume. It does not wait for completion.
func (c *Client) CreateSnapshot(ctx context.Context, volumeID string, spec SnapshotSpec) (resource.Snapshot, error) {
	input := &ec2.CreateSnapshotInput{
		VolumeId:    aws.String(volumeID),
		Description: aws.String(spec.Description),
	}
	if len(spec.Tags) > 0 {
		input.TagSpecifications = []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeSnapshot, Tags: toEC2Tags(spec.Tags)},
		}
	}

	output, err := c.ec2Client.CreateSnapshot(ctx, input)
	if err != nil {
		return resource.Snapshot{}, fmt.Errorf("create snapshot of %s: %w", volumeID, err)
	}

	snap := resource.Snapshot{
		ID:         aws.ToString(output.SnapshotId),
		VolumeID:   volumeID,
		InstanceID: spec.InstanceID,
		State:      string(output.State),
		Progress:   aws.ToString(output.Progress),
		StartTime:  aws.ToTime(output.StartTime),
	}
	log.Debug().Str("volume_id", volumeID).Str("snapshot_id", snap.ID).Msg("snapshot started")
	return snap, nil
}
