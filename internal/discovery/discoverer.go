// Package discovery fans out over regions and categories to build an inventory of
// a delegated account.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/internal/telemetry"
	"github.com/yairfalse/autotag/pkg/resource"
)

// Discoverer runs one collector call per (region, regional category) and one per
// global category, all concurrently. The first failure cancels the rest.
type Discoverer struct {
	telemetry *telemetry.Provider
	logger    *telemetry.Logger
}

// NewDiscoverer creates a discoverer. Both arguments may be nil.
func NewDiscoverer(tp *telemetry.Provider, logger *telemetry.Logger) *Discoverer {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Discoverer{telemetry: tp, logger: logger}
}

// Run discovers every category in set across regions for accountID. Each region
// is visited once however often it is listed.
func (d *Discoverer) Run(ctx context.Context, set *plugin.Set, accountID string, regions []string) (resource.Inventory, error) {
	start := time.Now()
	regions = uniqueRegions(regions)
	ctx, span := d.telemetry.StartSpan(ctx, "discovery.run",
		attribute.String("account_id", accountID),
		attribute.Int("regions", len(regions)),
	)
	defer span.End()

	regionalStrategies := set.Regional()
	globalStrategies := set.Global()

	// each call owns its slot, so no locking is needed
	regional := make([]Batch, len(regions)*len(regionalStrategies))
	global := make([]Batch, len(globalStrategies))

	g, gctx := errgroup.WithContext(ctx)

	for ri, region := range regions {
		for si, st := range regionalStrategies {
			slot := &regional[ri*len(regionalStrategies)+si]
			target := plugin.Target{Region: region, AccountID: accountID}
			g.Go(func() error {
				*slot = d.collect(gctx, st, target)
				return slot.Err
			})
		}
	}

	for si, st := range globalStrategies {
		slot := &global[si]
		target := plugin.Target{Region: resource.GlobalRegion, AccountID: accountID}
		g.Go(func() error {
			*slot = d.collect(gctx, st, target)
			return slot.Err
		})
	}

	if err := g.Wait(); err != nil {
		d.telemetry.RecordDiscoveryDuration(ctx, "error", time.Since(start))
		return nil, err
	}

	inv, err := Aggregate(regional, global)
	if err != nil {
		d.telemetry.RecordDiscoveryDuration(ctx, "error", time.Since(start))
		return nil, err
	}

	d.telemetry.RecordDiscoveryDuration(ctx, "ok", time.Since(start))
	d.logger.WithContext(ctx).Info().
		Str("account_id", accountID).
		Int("regions", len(regions)).
		Int("resources", inv.Count()).
		Dur("duration", time.Since(start)).
		Msg("discovery complete")

	return inv, nil
}

// collect runs one category in one region: enumerate, then fetch tags per record
// when the category needs a separate call.
func (d *Discoverer) collect(ctx context.Context, st plugin.Strategy, target plugin.Target) Batch {
	batch := Batch{Category: st.Category(), Region: target.Region}

	records, err := st.Enumerate(ctx, target)
	if err == nil {
		if resolver, ok := st.(plugin.TagResolver); ok {
			err = resolveTags(ctx, resolver, target, records)
		}
	}
	if err != nil {
		d.telemetry.RecordCollectorError(ctx, string(batch.Category), batch.Region)
		batch.Err = &CollectorError{Category: batch.Category, Region: batch.Region, Err: err}
		return batch
	}

	for i := range records {
		records[i].Category = batch.Category
		records[i].Region = target.Region
		if records[i].Tags == nil {
			records[i].Tags = []resource.Tag{}
		}
	}

	d.telemetry.RecordResourceCount(ctx, string(batch.Category), batch.Region, len(records))
	d.logger.WithContext(ctx).Debug().
		Str("category", string(batch.Category)).
		Str("region", batch.Region).
		Int("count", len(records)).
		Msg("collected")

	batch.Records = records
	return batch
}

// resolveTags fetches tags for every record concurrently and assigns them by
// resource id, so completion order does not matter.
func resolveTags(ctx context.Context, resolver plugin.TagResolver, target plugin.Target, records []resource.Record) error {
	var mu sync.Mutex
	byID := make(map[string][]resource.Tag, len(records))

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range records {
		g.Go(func() error {
			tags, err := resolver.ResolveTags(gctx, target, rec)
			if err != nil {
				return err
			}
			mu.Lock()
			byID[rec.ID] = tags
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("resolve tags: %w", err)
	}

	for i := range records {
		records[i].Tags = byID[records[i].ID]
	}
	return nil
}

// uniqueRegions drops empty, global and repeated entries, keeping first-seen order.
func uniqueRegions(regions []string) []string {
	seen := make(map[string]bool, len(regions))
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		if r == "" || r == resource.GlobalRegion || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
