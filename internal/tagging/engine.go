// Package tagging applies a classification tag to every requested resource.
// Each write succeeds or fails on its own; a failure never stops its siblings.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/internal/policy"
	"github.com/yairfalse/autotag/internal/telemetry"
	"github.com/yairfalse/autotag/pkg/resource"
)

// DefaultKey is the tag key written when none is configured.
const DefaultKey = "environment"

var (
	errNoValue    = errors.New("no tag value requested")
	errNoRegion   = errors.New("regional resource has no region")
	errDenied     = errors.New("denied by policy")
	errNoStrategy = errors.New("no strategy for category")
)

// TagWriteError describes one failed tag write. It is logged and encoded as
// isTagged=false, never returned from Apply.
type TagWriteError struct {
	Category resource.Category
	Region   string
	ID       string
	Err      error
}

func (e *TagWriteError) Error() string {
	return fmt.Sprintf("tag %s %s in %s: %v", e.Category, e.ID, e.Region, e.Err)
}

func (e *TagWriteError) Unwrap() error { return e.Err }

// Guard decides whether a single tag write may proceed.
type Guard interface {
	Allow(ctx context.Context, in policy.Input) (bool, error)
}

// Engine issues tag writes concurrently.
type Engine struct {
	key       string
	guard     Guard
	telemetry *telemetry.Provider
	logger    *telemetry.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithKey sets the tag key.
func WithKey(key string) Option {
	return func(e *Engine) { e.key = key }
}

// WithGuard checks every write against g before issuing it.
func WithGuard(g Guard) Option {
	return func(e *Engine) { e.guard = g }
}

// WithTelemetry records outcome metrics on tp.
func WithTelemetry(tp *telemetry.Provider) Option {
	return func(e *Engine) { e.telemetry = tp }
}

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{key: DefaultKey, logger: telemetry.NopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key returns the tag key the engine writes.
func (e *Engine) Key() string { return e.key }

// Apply writes the tag for every request and returns exactly one outcome per
// request, in request order within each category.
func (e *Engine) Apply(ctx context.Context, set *plugin.Set, accountID string, requests resource.TagRequests) resource.Outcomes {
	ctx, span := e.telemetry.StartSpan(ctx, "tagging.apply",
		attribute.String("account_id", accountID),
		attribute.Int("requests", requests.Count()),
	)
	defer span.End()

	out := make(resource.Outcomes, len(requests))
	var wg sync.WaitGroup

	for category, reqs := range requests {
		outcomes := make([]resource.TagOutcome, len(reqs))
		for i, r := range reqs {
			outcomes[i] = resource.TagOutcome{ID: r.ID}
		}
		out[category] = outcomes

		st, ok := set.Get(category)
		for region, idxs := range groupByRegion(st, reqs) {
			target := plugin.Target{Region: region, AccountID: accountID}
			for _, i := range idxs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					var err error
					if ok {
						err = e.tagOne(ctx, st, target, reqs[i])
					} else {
						err = errNoStrategy
					}
					outcomes[i].IsTagged = err == nil
					e.report(ctx, category, target.Region, reqs[i].ID, err)
				}()
			}
		}
	}

	wg.Wait()
	return out
}

// groupByRegion partitions request indexes by region. Global categories form a
// single group.
func groupByRegion(st plugin.Strategy, reqs []resource.TagRequest) map[string][]int {
	groups := make(map[string][]int)
	for i, r := range reqs {
		region := resource.GlobalRegion
		if st == nil || st.Regional() {
			region = r.Region
		}
		groups[region] = append(groups[region], i)
	}
	return groups
}

func (e *Engine) tagOne(ctx context.Context, st plugin.Strategy, target plugin.Target, req resource.TagRequest) error {
	if req.Env == "" {
		return errNoValue
	}
	if st.Regional() && (target.Region == "" || target.Region == resource.GlobalRegion) {
		return errNoRegion
	}

	tag := resource.Tag{Key: e.key, Value: req.Env}

	if e.guard != nil {
		allowed, err := e.guard.Allow(ctx, policy.Input{
			Category:  string(st.Category()),
			Region:    target.Region,
			ID:        req.ID,
			Key:       tag.Key,
			Value:     tag.Value,
			AccountID: target.AccountID,
		})
		if err != nil {
			return err
		}
		if !allowed {
			return errDenied
		}
	}

	return st.ApplyTag(ctx, target, st.Locator(target, req.ID), tag)
}

func (e *Engine) report(ctx context.Context, category resource.Category, region, id string, err error) {
	e.telemetry.RecordTagOutcome(ctx, string(category), err == nil)
	if err == nil {
		return
	}

	werr := &TagWriteError{Category: category, Region: region, ID: id, Err: err}
	e.logger.WithContext(ctx).Warn().
		Err(werr).
		Str("category", string(category)).
		Str("region", region).
		Str("id", id).
		Msg("tag write failed")
}
