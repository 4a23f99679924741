package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/shotty/pkg/resource"
)

// Volumes returns the EBS volumes attached to an instance.
func (c *Client) Volumes(ctx context.Context, instanceID string) ([]resource.Volume, error) {
	input := &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("attachment.instance-id"), Values: []string{instanceID}},
		},
	}
	paginator := ec2.NewDescribeVolumesPaginator(c.ec2Client, input)

	var volumes []resource.Volume
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe volumes of %s: %w", instanceID, err)
		}

		for _, v := range output.Volumes {
			volumes = append(volumes, resource.Volume{
				ID:         aws.ToString(v.VolumeId),
				InstanceID: instanceID,
				State:      string(v.State),
				SizeGiB:    aws.ToInt32(v.Size),
				Encrypted:  aws.ToBool(v.Encrypted),
			})
		}
	}

	return volumes, nil
}
