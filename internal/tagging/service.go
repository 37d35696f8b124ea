package tagging

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

// CompletionRecorder persists that a tagging pass finished.
type CompletionRecorder interface {
	MarkTagged(ctx context.Context, b account.Binding) error
}

// StrategyFactory binds strategies to one operation's credentials.
type StrategyFactory func(creds credentials.Credentials) *plugin.Set

// Completion reports whether the completion flag was written.
type Completion struct {
	Recorded bool   `json:"recorded" yaml:"recorded"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the outcome of one tagging pass.
type Result struct {
	Outcomes   resource.Outcomes `json:"outcomes" yaml:"outcomes"`
	Completion Completion        `json:"completion" yaml:"completion"`
}

// Service resolves the binding, assumes its role, applies tags and records completion.
type Service struct {
	store      account.Store
	broker     Broker
	strategies StrategyFactory
	engine     *Engine
	recorder   CompletionRecorder
	telemetry  *telemetry.Provider
	logger     *telemetry.Logger
}

// NewService wires a tagging service.
func NewService(store account.Store, broker Broker, strategies StrategyFactory, engine *Engine, recorder CompletionRecorder, tp *telemetry.Provider, logger *telemetry.Logger) *Service {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Service{
		store:      store,
		broker:     broker,
		strategies: strategies,
		engine:     engine,
		recorder:   recorder,
		telemetry:  tp,
		logger:     logger,
	}
}

// Tag applies requests to accountID on behalf of principal.
func (s *Service) Tag(ctx context.Context, principal, accountID string, requests resource.TagRequests) (*Result, error) {
	binding, err := account.Resolve(ctx, s.store, principal, accountID)
	if err != nil {
		return nil, err
	}
	return s.TagBinding(ctx, *binding, requests)
}

// TagBinding applies requests to an already resolved binding. Only failures that
// happen before any write is issued are returned; the completion flag is
// recorded however many writes failed.
func (s *Service) TagBinding(ctx context.Context, binding account.Binding, requests resource.TagRequests) (*Result, error) {
	creds, err := s.broker.AssumeFor(ctx, binding.AccountID, binding.RoleARN, binding.ExternalID)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("account_id", binding.AccountID).Msg("assume role failed")
		return nil, err
	}

	outcomes := s.engine.Apply(ctx, s.strategies(*creds), creds.AccountID, requests)

	s.logger.WithContext(ctx).Info().
		Str("account_id", binding.AccountID).
		Int("requested", requests.Count()).
		Int("failed", outcomes.Failed()).
		Msg("tagging pass complete")

	result := &Result{Outcomes: outcomes}
	if err := s.recorder.MarkTagged(ctx, binding); err != nil {
		s.telemetry.RecordCompletionError(ctx)
		result.Completion = Completion{Error: err.Error()}
		return result, nil
	}
	result.Completion.Recorded = true
	return result, nil
}
