// Package policy evaluates an optional Rego rule that decides whether a tag write
// may go ahead.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/autotag/internal/telemetry"
)

// Query is the rule every guard policy must define.
const Query = "data.autotag.allow"

// Input is the document a tag-write decision is made on.
type Input struct {
	Category  string `json:"category"`
	Region    string `json:"region"`
	ID        string `json:"id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	AccountID string `json:"account_id"`
}

// Guard allows or denies tag writes.
type Guard struct {
	query  rego.PreparedEvalQuery
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewGuard compiles module. The module must define data.autotag.allow.
func NewGuard(ctx context.Context, name, module string, logger *telemetry.Logger) (*Guard, error) {
	if logger == nil {
		logger = telemetry.NopLogger()
	}

	prepared, err := rego.New(
		rego.Query(Query),
		rego.Module(name, module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	logger.WithContext(ctx).Info().Str("policy_name", name).Msg("policy loaded")

	return &Guard{
		query:  prepared,
		logger: logger,
		tracer: otel.Tracer("policy-guard"),
	}, nil
}

// LoadGuard reads and compiles the policy file at path.
func LoadGuard(ctx context.Context, path string, logger *telemetry.Logger) (*Guard, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator input
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return NewGuard(ctx, path, string(data), logger)
}

// Allow evaluates in. An undefined rule denies.
func (g *Guard) Allow(ctx context.Context, in Input) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "policy_guard.allow",
		trace.WithAttributes(
			attribute.String("resource.category", in.Category),
			attribute.String("resource.id", in.ID),
		))
	defer span.End()

	results, err := g.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}

	allowed := results.Allowed()
	if !allowed {
		g.logger.WithContext(ctx).Debug().
			Str("category", in.Category).
			Str("id", in.ID).
			Str("value", in.Value).
			Msg("tag write denied by policy")
	}
	return allowed, nil
}
