package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/shotty/internal/config"
	"github.com/yairfalse/shotty/internal/executor"
	"github.com/yairfalse/shotty/internal/filter"
	"github.com/yairfalse/shotty/internal/policy"
	awsprovider "github.com/yairfalse/shotty/internal/provider/aws"
	"github.com/yairfalse/shotty/internal/telemetry"
)

var version = "0.1.0"

const shutdownTimeout = 5 * time.Second

type computeFactory func(ctx context.Context, cfg awsprovider.Config) (executor.Compute, error)

// app carries the state shared by every command of one invocation.
type app struct {
	configPath string
	profile    string
	region     string
	debug      bool

	cfg        *config.Config
	compute    executor.Compute
	guard      executor.Guard
	telemetry  *telemetry.Provider
	newCompute computeFactory

	command string
	started time.Time
	span    trace.Span
}

func newApp() *app {
	return &app{
		newCompute: func(ctx context.Context, cfg awsprovider.Config) (executor.Compute, error) {
			c, err := awsprovider.New(ctx, cfg)
			if err != nil {
				return nil, err
			}
			log.Debug().Str("profile", cfg.Profile).Str("region", c.Region()).Msg("ec2 client ready")
			return c, nil
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "shotty",
		Short: "Manage EC2 instances, volumes and snapshots by project",
		Long: `Shotty - EC2 snapshot helper

Shotty lists and manages EC2 instances, their EBS volumes and volume
snapshots. Instances are selected by their Project tag or by id.
EC2 is the only state: shotty keeps nothing locally.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetVersionTemplate(`Shotty {{.Version}} - EC2 snapshot helper
`)

	root.PersistentFlags().StringVar(&a.profile, "profile", "", fmt.Sprintf("AWS named profile (default from config, %q)", config.DefaultProfile))
	root.PersistentFlags().StringVar(&a.region, "region", "", "AWS region (default from profile)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/shotty/config.toml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newSnapshotsCmd(a),
		newVolumesCmd(a),
		newInstancesCmd(a),
	)
	return root
}

// setup loads configuration and builds the clients used by the command.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.started = time.Now()
	a.command = strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" ")

	path, explicit := a.configPath, a.configPath != ""
	if !explicit {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.profile != "" {
		cfg.AWS.Profile = a.profile
	}
	if a.region != "" {
		cfg.AWS.Region = a.region
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	if err := telemetry.ConfigureLogging(cmd.ErrOrStderr(), cfg.Log.Level, a.debug); err != nil {
		return err
	}

	ctx := cmd.Context()
	tp, err := telemetry.NewProvider(ctx, cfg.OTEL, cfg.Metrics)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.telemetry = tp

	ctx, a.span = tp.StartSpan(ctx, "shotty "+a.command)
	cmd.SetContext(ctx)

	if cfg.Policy.File != "" {
		engine := policy.NewEngine()
		if err := engine.LoadFile(ctx, cfg.Policy.File); err != nil {
			return err
		}
		a.guard = engine
		log.Debug().Ctx(ctx).Str("file", cfg.Policy.File).Int("policies", engine.Len()).Msg("policy loaded")
	}

	compute, err := a.newCompute(ctx, awsprovider.Config{
		Profile:     cfg.AWS.Profile,
		Region:      cfg.AWS.Region,
		Endpoint:    cfg.AWS.Endpoint,
		WaitTimeout: cfg.Snapshot.WaitTimeout,
	})
	if err != nil {
		return err
	}
	a.compute = compute

	log.Debug().
		Str("config", path).
		Str("profile", cfg.AWS.Profile).
		Str("command", a.command).
		Msg("shotty starting")
	return nil
}

// finish records the command outcome and flushes telemetry.
func (a *app) finish(err error) {
	if a.telemetry == nil {
		return
	}

	if a.span != nil {
		if err != nil {
			a.span.RecordError(err)
			a.span.SetStatus(codes.Error, err.Error())
		}
		a.span.End()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.telemetry.RecordCommand(ctx, a.command, time.Since(a.started), err)
	if err := a.telemetry.Push(ctx, a.command); err != nil {
		log.Warn().Err(err).Msg("failed to push metrics")
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to shut down telemetry")
	}
}

// projectFlag returns --project, or the configured default when the flag
// was not given.
func (a *app) projectFlag(cmd *cobra.Command) string {
	project, _ := cmd.Flags().GetString("project")
	if !cmd.Flags().Changed("project") {
		return a.cfg.Project.Default
	}
	return project
}

func (a *app) query(project, instance string) filter.Query {
	return filter.New(a.cfg.Project.TagKey, project, instance)
}

func addSelectionFlags(cmd *cobra.Command, projectHelp string) {
	cmd.Flags().String("project", "", projectHelp)
	cmd.Flags().String("instance", "", "Only the instance with this id")
}

func defaultProjectHelp() string {
	return fmt.Sprintf("Only instances for project (tag Project:<name>, default from config, %q)", config.DefaultProject)
}
