package discovery

import (
	"context"

	"github.com/yairfalse/autotag/internal/account"
	"github.com/yairfalse/autotag/internal/credentials"
	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/internal/telemetry"
	"github.com/yairfalse/autotag/pkg/resource"
)

// Broker exchanges a binding's trust role for scoped credentials.
type Broker interface {
	AssumeFor(ctx context.Context, accountID, roleARN, externalID string) (*credentials.Credentials, error)
}

// RegionLister enumerates the regions to fan out over.
type RegionLister interface {
	ListRegions(ctx context.Context) ([]string, error)
}

// StrategyFactory binds strategies to one operation's credentials.
type StrategyFactory func(creds credentials.Credentials) *plugin.Set

// Service resolves the caller's binding, assumes its role and runs discovery.
type Service struct {
	store      account.Store
	broker     Broker
	regions    RegionLister
	strategies StrategyFactory
	discoverer *Discoverer
	logger     *telemetry.Logger
}

// NewService wires a discovery service.
func NewService(store account.Store, broker Broker, regions RegionLister, strategies StrategyFactory, tp *telemetry.Provider, logger *telemetry.Logger) *Service {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Service{
		store:      store,
		broker:     broker,
		regions:    regions,
		strategies: strategies,
		discoverer: NewDiscoverer(tp, logger),
		logger:     logger,
	}
}

// Discover builds the inventory of accountID for principal.
func (s *Service) Discover(ctx context.Context, principal, accountID string) (resource.Inventory, error) {
	binding, err := account.Resolve(ctx, s.store, principal, accountID)
	if err != nil {
		return nil, err
	}
	return s.DiscoverBinding(ctx, *binding)
}

// DiscoverBinding builds the inventory for an already resolved binding.
func (s *Service) DiscoverBinding(ctx context.Context, binding account.Binding) (resource.Inventory, error) {
	creds, err := s.broker.AssumeFor(ctx, binding.AccountID, binding.RoleARN, binding.ExternalID)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("account_id", binding.AccountID).Msg("assume role failed")
		return nil, err
	}

	regions, err := s.regions.ListRegions(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("account_id", binding.AccountID).Msg("region discovery failed")
		return nil, err
	}

	inv, err := s.discoverer.Run(ctx, s.strategies(*creds), creds.AccountID, regions)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("account_id", binding.AccountID).Msg("discovery failed")
		return nil, err
	}
	return inv, nil
}
