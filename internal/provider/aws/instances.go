package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/shotty/internal/filter"
	"github.com/yairfalse/shotty/pkg/resource"
)

// Instances returns the instances selected by q.
func (c *Client) Instances(ctx context.Context, q filter.Query) ([]resource.Instance, error) {
	input := &ec2.DescribeInstancesInput{Filters: q.EC2Filters()}
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2Client, input)

	var instances []resource.Instance
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, inst := range reservation.Instances {
				r := convertInstance(inst, q.Key())
				if !q.Matches(r) {
					continue
				}
				instances = append(instances, r)
			}
		}
	}

	log.Debug().Str("query", q.String()).Int("count", len(instances)).Msg("instances listed")
	return instances, nil
}

func convertInstance(inst ec2types.Instance, tagKey string) resource.Instance {
	r := resource.Instance{
		ID:            aws.ToString(inst.InstanceId),
		Type:          string(inst.InstanceType),
		PublicDNSName: aws.ToString(inst.PublicDnsName),
		Tags:          make(map[string]string, len(inst.Tags)),
		TagKey:        tagKey,
	}
	if inst.State != nil {
		r.State = string(inst.State.Name)
	}
	if inst.Placement != nil {
		r.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	for _, tag := range inst.Tags {
		r.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return r
}

// StopInstance stops one instance.
func (c *Client) StopInstance(ctx context.Context, id string) error {
	_, err := c.ec2Client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return fmt.Errorf("stop instance %s: %w", id, err)
	}
	return nil
}

// StartInstance starts one instance.
func (c *Client) StartInstance(ctx context.Context, id string) error {
	_, err := c.ec2Client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return fmt.Errorf("start instance %s: %w", id, err)
	}
	return nil
}

// RebootInstance asks EC2 to reboot one instance in place.
func (c *Client) RebootInstance(ctx context.Context, id string) error {
	_, err := c.ec2Client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return fmt.Errorf("reboot instance %s: %w", id, err)
	}
	return nil
}

// WaitUntilStopped blocks until the instance reaches the stopped state.
func (c *Client) WaitUntilStopped(ctx context.Context, id string) error {
	waiter := ec2.NewInstanceStoppedWaiter(c.ec2Client)
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}
	if err := waiter.Wait(ctx, input, c.waitTimeout); err != nil {
		return fmt.Errorf("wait for %s to stop: %w", id, err)
	}
	return nil
}

// WaitUntilRunning blocks until the instance reaches the running state.
func (c *Client) WaitUntilRunning(ctx context.Context, id string) error {
	waiter := ec2.NewInstanceRunningWaiter(c.ec2Client)
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{id}}
	if err := waiter.Wait(ctx, input, c.waitTimeout); err != nil {
		return fmt.Errorf("wait for %s to run: %w", id, err)
	}
	return nil
}
