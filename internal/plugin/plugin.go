// Package plugin defines the per-category strategy contract that discovery and tagging
// fan out over. Provider packages (internal/plugin/aws) supply the implementations.
package plugin

import (
	"context"
	"fmt"

	"github.com/yairfalse/autotag/pkg/resource"
)

// Target is where a strategy call runs: a region (or resource.GlobalRegion) inside the
// delegated account.
type Target struct {
	Region    string
	AccountID string
}

// Strategy knows how to enumerate and tag one category.
type Strategy interface {
	Category() resource.Category

	// Regional reports whether the category is region-scoped. Global strategies
	// ignore Target.Region.
	Regional() bool

	// Enumerate lists every resource of the category at target. Strategies whose
	// enumeration response embeds tags return them populated.
	Enumerate(ctx context.Context, target Target) ([]resource.Record, error)

	// Locator builds the provider reference a tag write is addressed to.
	Locator(target Target, id string) string

	// ApplyTag writes tag to the resource at locator.
	ApplyTag(ctx context.Context, target Target, locator string, tag resource.Tag) error
}

// TagResolver is implemented by strategies that need a separate call per resource
// to fetch its tags.
type TagResolver interface {
	ResolveTags(ctx context.Context, target Target, record resource.Record) ([]resource.Tag, error)
}

// Set is an ordered table of strategies, at most one per category.
type Set struct {
	strategies []Strategy
	byCategory map[resource.Category]Strategy
}

// NewSet builds a set. Duplicate categories are rejected.
func NewSet(strategies ...Strategy) (*Set, error) {
	s := &Set{byCategory: make(map[resource.Category]Strategy, len(strategies))}
	for _, st := range strategies {
		if _, dup := s.byCategory[st.Category()]; dup {
			return nil, fmt.Errorf("duplicate strategy for category %s", st.Category())
		}
		s.byCategory[st.Category()] = st
		s.strategies = append(s.strategies, st)
	}
	return s, nil
}

// Get returns the strategy for c.
func (s *Set) Get(c resource.Category) (Strategy, bool) {
	st, ok := s.byCategory[c]
	return st, ok
}

// All returns every strategy in registration order.
func (s *Set) All() []Strategy {
	return append([]Strategy(nil), s.strategies...)
}

// Regional returns the region-scoped strategies.
func (s *Set) Regional() []Strategy {
	return s.filter(true)
}

// Global returns the strategies that ignore region.
func (s *Set) Global() []Strategy {
	return s.filter(false)
}

func (s *Set) filter(regional bool) []Strategy {
	var out []Strategy
	for _, st := range s.strategies {
		if st.Regional() == regional {
			out = append(out, st)
		}
	}
	return out
}
