// Package aws implements shotty's EC2 access on top of aws-sdk-go-v2.
package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog/log"
)

const defaultWaitTimeout = 15 * time.Minute

// Client lists and mutates EC2 instances, volumes and snapshots.
type Client struct {
	region      string
	ec2Client   EC2API
	waitTimeout time.Duration
}

// Config holds AWS session configuration.
type Config struct {
	Profile     string
	Region      string
	Endpoint    string
	WaitTimeout time.Duration
}

// New creates a Client from the shared AWS config of the named profile.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ec2Client := ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	log.Debug().
		Str("profile", cfg.Profile).
		Str("region", awsCfg.Region).
		Str("endpoint", cfg.Endpoint).
		Msg("aws session ready")

	return NewWithAPI(ec2Client, awsCfg.Region, cfg.WaitTimeout), nil
}

// NewWithAPI creates a Client around an existing EC2API implementation.
func NewWithAPI(api EC2API, region string, waitTimeout time.Duration) *Client {
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return &Client{
		region:      region,
		ec2Client:   api,
		waitTimeout: waitTimeout,
	}
}

// Region returns the region the client talks to.
func (c *Client) Region() string {
	return c.region
}
