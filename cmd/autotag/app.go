package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/yairfalse/autotag/internal/account"
	"github.com/yairfalse/autotag/internal/config"
	"github.com/yairfalse/autotag/internal/credentials"
	"github.com/yairfalse/autotag/internal/discovery"
	awsplugin "github.com/yairfalse/autotag/internal/plugin/aws"
	"github.com/yairfalse/autotag/internal/policy"
	"github.com/yairfalse/autotag/internal/tagging"
	"github.com/yairfalse/autotag/internal/telemetry"
)

// app holds the collaborators every command shares.
type app struct {
	cfg       *config.Config
	store     account.Store
	telemetry *telemetry.Provider
	discovery *discovery.Service
	tagging   *tagging.Service
}

// logger writes component logs to stderr so command output on stdout stays parseable.
func logger(component string) *telemetry.Logger {
	return telemetry.NewLoggerTo(os.Stderr, component)
}

// baseConfig loads the service's own AWS identity.
func baseConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// openStore opens only the account store, for commands that need nothing else.
func openStore(ctx context.Context, cfg *config.Config) (account.Store, error) {
	var awsCfg aws.Config
	if cfg.Store.Driver == config.StoreDynamoDB {
		var err error
		if awsCfg, err = baseConfig(ctx, cfg.AWS); err != nil {
			return nil, err
		}
	}
	store, err := account.Open(cfg.Store, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	awsCfg, err := baseConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := account.Open(cfg.Store, awsCfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}

	broker := credentials.NewBroker(sts.NewFromConfig(awsCfg), cfg.AWS.SessionDuration, logger("credentials"))

	catalog := awsplugin.NewRegionCatalog(ec2.NewFromConfig(awsCfg))
	if len(cfg.AWS.Regions) > 0 {
		catalog = awsplugin.NewStaticRegionCatalog(cfg.AWS.Regions)
	}

	engineOpts := []tagging.Option{
		tagging.WithKey(cfg.Tagging.Key),
		tagging.WithTelemetry(tp),
		tagging.WithLogger(logger("tagging")),
	}
	if cfg.Tagging.Policy != "" {
		guard, err := policy.LoadGuard(ctx, cfg.Tagging.Policy, logger("policy"))
		if err != nil {
			_ = store.Close()
			_ = tp.Shutdown(ctx)
			return nil, err
		}
		engineOpts = append(engineOpts, tagging.WithGuard(guard))
	}

	factory := awsplugin.StrategyFactory(cfg.AWS.Region)

	return &app{
		cfg:       cfg,
		store:     store,
		telemetry: tp,
		discovery: discovery.NewService(store, broker, catalog, factory, tp, logger("discovery")),
		tagging: tagging.NewService(store, broker, factory, tagging.NewEngine(engineOpts...),
			account.NewRecorder(store, logger("account")), tp, logger("tagging")),
	}, nil
}

func (a *app) Close(ctx context.Context) {
	_ = a.store.Close()
	_ = a.telemetry.Shutdown(ctx)
}
