package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/shotty/internal/filter"
)

func newTestInstance(id, state, project string) types.Instance {
	inst := types.Instance{
		InstanceId:    aws.String(id),
		InstanceType:  types.InstanceTypeT2Micro,
		State:         &types.InstanceState{Name: types.InstanceStateName(state)},
		Placement:     &types.Placement{AvailabilityZone: aws.String("us-east-1a")},
		PublicDnsName: aws.String("ec2-" + id + ".compute-1.amazonaws.com"),
		Tags: []types.Tag{
			{Key: aws.String("Name"), Value: aws.String("test-instance")},
		},
	}
	if project != "" {
		inst.Tags = append(inst.Tags, types.Tag{Key: aws.String("Project"), Value: aws.String(project)})
	}
	return inst
}

func TestInstances(t *testing.T) {
	var gotInput *ec2.DescribeInstancesInput
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			gotInput = params
			return &ec2.DescribeInstancesOutput{
				Reservations: []types.Reservation{
					{Instances: []types.Instance{newTestInstance("i-abc123", "running", "acloud.guru")}},
				},
			}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Second)
	instances, err := c.Instances(context.Background(), filter.New("", "acloud.guru", ""))

	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, filter.New("", "acloud.guru", "").EC2Filters(), gotInput.Filters)

	i := instances[0]
	assert.Equal(t, "i-abc123", i.ID)
	assert.Equal(t, "t2.micro", i.Type)
	assert.Equal(t, "us-east-1a", i.AvailabilityZone)
	assert.Equal(t, "running", i.State)
	assert.Equal(t, "ec2-i-abc123.compute-1.amazonaws.com", i.PublicDNSName)
	assert.Equal(t, "acloud.guru", i.Tags["Project"])
	assert.Equal(t, "test-instance", i.Tags["Name"])
}

func TestInstances_AllHasNoFilters(t *testing.T) {
	var gotInput *ec2.DescribeInstancesInput
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			gotInput = params
			return &ec2.DescribeInstancesOutput{
				Reservations: []types.Reservation{
					{Instances: []types.Instance{
						newTestInstance("i-1", "running", ""),
						newTestInstance("i-2", "stopped", "other"),
					}},
				},
			}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Second)
	instances, err := c.Instances(context.Background(), filter.Query{})

	require.NoError(t, err)
	assert.Nil(t, gotInput.Filters)
	assert.Len(t, instances, 2)
}

func TestInstances_DropsNonMatching(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return &ec2.DescribeInstancesOutput{
				Reservations: []types.Reservation{
					{Instances: []types.Instance{
						newTestInstance("i-1", "running", "acloud.guru"),
						newTestInstance("i-2", "running", "other"),
					}},
				},
			}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Second)
	instances, err := c.Instances(context.Background(), filter.New("", "acloud.guru", ""))

	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "i-1", instances[0].ID)
}

func TestInstances_Paginates(t *testing.T) {
	pages := 0
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			pages++
			if params.NextToken == nil {
				return &ec2.DescribeInstancesOutput{
					Reservations: []types.Reservation{{Instances: []types.Instance{newTestInstance("i-1", "running", "")}}},
					NextToken:    aws.String("page-2"),
				}, nil
			}
			return &ec2.DescribeInstancesOutput{
				Reservations: []types.Reservation{{Instances: []types.Instance{newTestInstance("i-2", "running", "")}}},
			}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Second)
	instances, err := c.Instances(context.Background(), filter.Query{})

	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, instances, 2)
	assert.Equal(t, "i-1", instances[0].ID)
	assert.Equal(t, "i-2", instances[1].ID)
}

func TestInstances_Error(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return nil, errors.New("boom")
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Second)
	_, err := c.Instances(context.Background(), filter.Query{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe instances")
}

func TestConvertInstance_MissingFields(t *testing.T) {
	r := convertInstance(types.Instance{InstanceId: aws.String("i-bare")}, "Project")

	assert.Equal(t, "i-bare", r.ID)
	assert.Equal(t, "", r.State)
	assert.Equal(t, "", r.AvailabilityZone)
	assert.NotNil(t, r.Tags)
	assert.Equal(t, "<none>", r.Project("Project"))
}

func TestStopStartReboot(t *testing.T) {
	var stopped, started, rebooted []string
	mock := &mockEC2Client{
		stopInstancesFunc: func(_ context.Context, params *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
			stopped = append(stopped, params.InstanceIds...)
			return &ec2.StopInstancesOutput{}, nil
		},
		startInstancesFunc: func(_ context.Context, params *ec2.StartInstancesInput, _ ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
			started = append(started, params.InstanceIds...)
			return &ec2.StartInstancesOutput{}, nil
		},
		rebootInstancesFunc: func(_ context.Context, params *ec2.RebootInstancesInput, _ ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error) {
			rebooted = append(rebooted, params.InstanceIds...)
			return &ec2.RebootInstancesOutput{}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Second)
	ctx := context.Background()

	require.NoError(t, c.StopInstance(ctx, "i-1"))
	require.NoError(t, c.StartInstance(ctx, "i-2"))
	require.NoError(t, c.RebootInstance(ctx, "i-3"))

	assert.Equal(t, []string{"i-1"}, stopped)
	assert.Equal(t, []string{"i-2"}, started)
	assert.Equal(t, []string{"i-3"}, rebooted)
	assert.Equal(t, []string{"StopInstances", "StartInstances", "RebootInstances"}, mock.calls)
}

func TestStopInstance_Error(t *testing.T) {
	mock := &mockEC2Client{
		stopInstancesFunc: func(_ context.Context, _ *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
			return nil, errors.New("denied")
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Second)
	err := c.StopInstance(context.Background(), "i-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop instance i-1")
}

func TestWaitUntilStopped_AlreadyStopped(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			require.Equal(t, []string{"i-1"}, params.InstanceIds)
			return &ec2.DescribeInstancesOutput{
				Reservations: []types.Reservation{{Instances: []types.Instance{newTestInstance("i-1", "stopped", "")}}},
			}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Minute)
	err := c.WaitUntilStopped(context.Background(), "i-1")

	require.NoError(t, err)
}

func TestWaitUntilRunning_AlreadyRunning(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return &ec2.DescribeInstancesOutput{
				Reservations: []types.Reservation{{Instances: []types.Instance{newTestInstance("i-1", "running", "")}}},
			}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Minute)
	err := c.WaitUntilRunning(context.Background(), "i-1")

	require.NoError(t, err)
}

func TestWaitUntilStopped_Terminated(t *testing.T) {
	mock := &mockEC2Client{
		describeInstancesFunc: func(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return &ec2.DescribeInstancesOutput{
				Reservations: []types.Reservation{{Instances: []types.Instance{newTestInstance("i-1", "terminated", "")}}},
			}, nil
		},
	}

	c := NewWithAPI(mock, "us-east-1", time.Minute)
	err := c.WaitUntilStopped(context.Background(), "i-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait for i-1 to stop")
}

func TestNewWithAPI_DefaultWaitTimeout(t *testing.T) {
	c := NewWithAPI(&mockEC2Client{}, "eu-west-1", 0)
	assert.Equal(t, defaultWaitTimeout, c.waitTimeout)
	assert.Equal(t, "eu-west-1", c.Region())
}
