package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	ectypes "github.com/aws/aws-sdk-go-v2/service/elasticache/types"

	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/pkg/resource"
)

// cacheStrategy handles ElastiCache clusters.
type cacheStrategy struct {
	clients Clients
}

func (s *cacheStrategy) Category() resource.Category { return resource.Cache }
func (s *cacheStrategy) Regional() bool              { return true }

func (s *cacheStrategy) Enumerate(ctx context.Context, target plugin.Target) ([]resource.Record, error) {
	client := s.clients.ElastiCache(target.Region)
	records := []resource.Record{}
	var marker *string

	for {
		output, err := client.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe cache clusters: %w", err)
		}

		for _, cluster := range output.CacheClusters {
			id := aws.ToString(cluster.CacheClusterId)
			records = append(records, resource.Record{
				ID:       id,
				Name:     id,
				Region:   target.Region,
				Category: resource.Cache,
			})
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	return records, nil
}

func (s *cacheStrategy) ResolveTags(ctx context.Context, target plugin.Target, record resource.Record) ([]resource.Tag, error) {
	output, err := s.clients.ElastiCache(target.Region).ListTagsForResource(ctx, &elasticache.ListTagsForResourceInput{
		ResourceName: aws.String(s.Locator(target, record.ID)),
	})
	if err != nil {
		return nil, fmt.Errorf("list tags for cache cluster %s: %w", record.ID, err)
	}
	return convertTags(output.TagList, func(t ectypes.Tag) (*string, *string) { return t.Key, t.Value }), nil
}

// Locator is the cache cluster ARN.
func (s *cacheStrategy) Locator(target plugin.Target, id string) string {
	return fmt.Sprintf("arn:aws:elasticache:%s:%s:cluster:%s", target.Region, target.AccountID, id)
}

func (s *cacheStrategy) ApplyTag(ctx context.Context, target plugin.Target, locator string, tag resource.Tag) error {
	_, err := s.clients.ElastiCache(target.Region).AddTagsToResource(ctx, &elasticache.AddTagsToResourceInput{
		ResourceName: aws.String(locator),
		Tags:         []ectypes.Tag{{Key: aws.String(tag.Key), Value: aws.String(tag.Value)}},
	})
	if err != nil {
		return fmt.Errorf("add tags to resource: %w", err)
	}
	return nil
}
