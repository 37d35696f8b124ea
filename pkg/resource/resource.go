// Package resource defines the inventory model shared by discovery and tagging.
package resource

import "fmt"

// Category is a class of cloud resource with its own enumeration and tagging semantics.
type Category string

const (
	Compute  Category = "compute"
	Database Category = "database"
	Cache    Category = "cache"
	CDN      Category = "cdn"
	Storage  Category = "storage"
)

// GlobalRegion is the pseudo-region for categories that are not region-scoped.
const GlobalRegion = "global"

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{Compute, Database, Cache, CDN, Storage}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Compute, Database, Cache, CDN, Storage:
		return true
	}
	return false
}

// Tag is a single key/value pair as the provider reports it.
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Record is one discovered resource.
type Record struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Region   string   `json:"region" yaml:"region"`
	Category Category `json:"category" yaml:"category"`
	Tags     []Tag    `json:"tags" yaml:"tags"`
}

// Key returns the identity of a record: ids are only unique within a category and region.
func (r Record) Key() string {
	return fmt.Sprintf("%s|%s|%s", r.Category, r.Region, r.ID)
}

// Inventory maps each category to its discovered records.
type Inventory map[Category][]Record

// NewInventory returns an inventory with an empty, non-nil sequence for every category.
func NewInventory() Inventory {
	inv := make(Inventory, len(Categories()))
	for _, c := range Categories() {
		inv[c] = []Record{}
	}
	return inv
}

// Count returns the total number of records across categories.
func (inv Inventory) Count() int {
	n := 0
	for _, records := range inv {
		n += len(records)
	}
	return n
}

// TagRequest is a discovered record annotated with the desired tag value.
type TagRequest struct {
	Record `yaml:",inline"`
	Env    string `json:"env" yaml:"env"`
}

// TagRequests is a caller-supplied tagging run partitioned by category.
type TagRequests map[Category][]TagRequest

// Count returns the total number of requests across categories.
func (r TagRequests) Count() int {
	n := 0
	for _, reqs := range r {
		n += len(reqs)
	}
	return n
}

// TagOutcome reports whether a single tag write applied.
type TagOutcome struct {
	ID       string `json:"id" yaml:"id"`
	IsTagged bool   `json:"isTagged" yaml:"isTagged"`
}

// Outcomes groups tag outcomes by category.
type Outcomes map[Category][]TagOutcome

// Failed returns the number of outcomes that did not apply.
func (o Outcomes) Failed() int {
	n := 0
	for _, outcomes := range o {
		for _, out := range outcomes {
			if !out.IsTagged {
				n++
			}
		}
	}
	return n
}
