package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/yairfalse/autotag/pkg/resource"
)

// RegionDiscoveryError means the region list could not be obtained.
type RegionDiscoveryError struct {
	Err error
}

func (e *RegionDiscoveryError) Error() string {
	return fmt.Sprintf("list regions: %v", e.Err)
}

func (e *RegionDiscoveryError) Unwrap() error { return e.Err }

// RegionCatalog enumerates the regions discovery fans out over. The listing runs
// with the service's own identity; only the per-region calls that follow need
// delegated credentials.
type RegionCatalog struct {
	client RegionsAPI
	static []string
}

// NewRegionCatalog creates a catalog backed by DescribeRegions.
func NewRegionCatalog(client RegionsAPI) *RegionCatalog {
	return &RegionCatalog{client: client}
}

// NewStaticRegionCatalog creates a catalog that always returns regions. Empty,
// global and repeated entries are dropped.
func NewStaticRegionCatalog(regions []string) *RegionCatalog {
	seen := make(map[string]bool, len(regions))
	static := make([]string, 0, len(regions))
	for _, r := range regions {
		if r == "" || r == resource.GlobalRegion || seen[r] {
			continue
		}
		seen[r] = true
		static = append(static, r)
	}
	return &RegionCatalog{static: static}
}

// ListRegions returns the enabled regions, sorted.
func (c *RegionCatalog) ListRegions(ctx context.Context) ([]string, error) {
	if len(c.static) > 0 {
		return append([]string(nil), c.static...), nil
	}
	if c.client == nil {
		return nil, &RegionDiscoveryError{Err: fmt.Errorf("no region source configured")}
	}

	output, err := c.client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, &RegionDiscoveryError{Err: fmt.Errorf("describe regions: %w", err)}
	}

	regions := make([]string, 0, len(output.Regions))
	for _, r := range output.Regions {
		if name := aws.ToString(r.RegionName); name != "" {
			regions = append(regions, name)
		}
	}
	sort.Strings(regions)
	return regions, nil
}
