package discovery

import (
	"fmt"

	"github.com/yairfalse/autotag/pkg/resource"
)

// Batch is what one collector call produced for one category in one region.
type Batch struct {
	Category resource.Category
	Region   string
	Records  []resource.Record
	Err      error
}

// CollectorError reports a failed collector call. It aborts the whole discovery.
type CollectorError struct {
	Category resource.Category
	Region   string
	Err      error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collect %s in %s: %v", e.Category, e.Region, e.Err)
}

func (e *CollectorError) Unwrap() error { return e.Err }

// Aggregate merges regional and global batches into one inventory. Every category
// is present, with an empty sequence when nothing was found. If any batch
// carries an error the first one is returned and no inventory is produced.
func Aggregate(regional, global []Batch) (resource.Inventory, error) {
	for _, batches := range [][]Batch{regional, global} {
		for _, b := range batches {
			if b.Err != nil {
				return nil, b.Err
			}
		}
	}

	inv := resource.NewInventory()
	for _, batches := range [][]Batch{regional, global} {
		for _, b := range batches {
			inv[b.Category] = append(inv[b.Category], b.Records...)
		}
	}
	return inv, nil
}
