// Package filter narrows a discovered inventory before it is printed.
package filter

import (
	"github.com/yairfalse/autotag/pkg/resource"
)

// Filter selects categories and records from an inventory.
type Filter struct {
	categories  map[resource.Category]bool
	includeTags map[string]string
	missingKey  string
}

// New creates a filter. An empty categories list keeps every category; every
// includeTags pair must match; a non-empty missingKey keeps only records that
// do not carry that tag key yet.
func New(categories []resource.Category, includeTags map[string]string, missingKey string) *Filter {
	catMap := make(map[resource.Category]bool, len(categories))
	for _, c := range categories {
		catMap[c] = true
	}

	return &Filter{
		categories:  catMap,
		includeTags: includeTags,
		missingKey:  missingKey,
	}
}

// ShouldIncludeCategory returns true if records of c are kept.
func (f *Filter) ShouldIncludeCategory(c resource.Category) bool {
	return len(f.categories) == 0 || f.categories[c]
}

// ShouldIncludeRecord returns true if r passes the tag filters.
func (f *Filter) ShouldIncludeRecord(r resource.Record) bool {
	tags := make(map[string]string, len(r.Tags))
	for _, t := range r.Tags {
		tags[t.Key] = t.Value
	}

	for k, v := range f.includeTags {
		if got, ok := tags[k]; !ok || got != v {
			return false
		}
	}

	if f.missingKey != "" {
		if _, ok := tags[f.missingKey]; ok {
			return false
		}
	}

	return true
}

// Apply returns a filtered copy of inv. Excluded categories keep an empty
// sequence so the shape of the inventory does not change.
func (f *Filter) Apply(inv resource.Inventory) resource.Inventory {
	if f.IsEmpty() {
		return inv
	}

	out := resource.NewInventory()
	for c, records := range inv {
		kept := make([]resource.Record, 0, len(records))
		if f.ShouldIncludeCategory(c) {
			for _, r := range records {
				if f.ShouldIncludeRecord(r) {
					kept = append(kept, r)
				}
			}
		}
		out[c] = kept
	}
	return out
}

// IsEmpty returns true if no filters are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.categories) == 0 && len(f.includeTags) == 0 && f.missingKey == ""
}
