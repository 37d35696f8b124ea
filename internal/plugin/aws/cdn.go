package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/pkg/resource"
)

// cdnStrategy handles CloudFront distributions. The category is global.
type cdnStrategy struct {
	clients Clients
}

func (s *cdnStrategy) Category() resource.Category { return resource.CDN }
func (s *cdnStrategy) Regional() bool              { return false }

func (s *cdnStrategy) Enumerate(ctx context.Context, _ plugin.Target) ([]resource.Record, error) {
	client := s.clients.CloudFront()
	records := []resource.Record{}
	var marker *string

	for {
		output, err := client.ListDistributions(ctx, &cloudfront.ListDistributionsInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("list distributions: %w", err)
		}

		if output.DistributionList == nil {
			break
		}
		for _, dist := range output.DistributionList.Items {
			records = append(records, resource.Record{
				ID:       aws.ToString(dist.Id),
				Name:     aws.ToString(dist.DomainName),
				Region:   resource.GlobalRegion,
				Category: resource.CDN,
			})
		}

		if !aws.ToBool(output.DistributionList.IsTruncated) {
			break
		}
		marker = output.DistributionList.NextMarker
	}

	return records, nil
}

func (s *cdnStrategy) ResolveTags(ctx context.Context, target plugin.Target, record resource.Record) ([]resource.Tag, error) {
	output, err := s.clients.CloudFront().ListTagsForResource(ctx, &cloudfront.ListTagsForResourceInput{
		Resource: aws.String(s.Locator(target, record.ID)),
	})
	if err != nil {
		return nil, fmt.Errorf("list tags for distribution %s: %w", record.ID, err)
	}
	if output.Tags == nil {
		return []resource.Tag{}, nil
	}
	return convertTags(output.Tags.Items, func(t cftypes.Tag) (*string, *string) { return t.Key, t.Value }), nil
}

// Locator is the distribution ARN; CloudFront ARNs carry no region.
func (s *cdnStrategy) Locator(target plugin.Target, id string) string {
	return fmt.Sprintf("arn:aws:cloudfront::%s:distribution/%s", target.AccountID, id)
}

func (s *cdnStrategy) ApplyTag(ctx context.Context, _ plugin.Target, locator string, tag resource.Tag) error {
	_, err := s.clients.CloudFront().TagResource(ctx, &cloudfront.TagResourceInput{
		Resource: aws.String(locator),
		Tags: &cftypes.Tags{
			Items: []cftypes.Tag{{Key: aws.String(tag.Key), Value: aws.String(tag.Value)}},
		},
	})
	if err != nil {
		return fmt.Errorf("tag resource: %w", err)
	}
	return nil
}
