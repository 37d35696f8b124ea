package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/pkg/resource"
)

// databaseStrategy handles RDS DB instances.
type databaseStrategy struct {
	clients Clients
}

func (s *databaseStrategy) Category() resource.Category { return resource.Database }
func (s *databaseStrategy) Regional() bool              { return true }

func (s *databaseStrategy) Enumerate(ctx context.Context, target plugin.Target) ([]resource.Record, error) {
	client := s.clients.RDS(target.Region)
	records := []resource.Record{}
	var marker *string

	for {
		output, err := client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			id := aws.ToString(instance.DBInstanceIdentifier)
			records = append(records, resource.Record{
				ID:       id,
				Name:     id,
				Region:   target.Region,
				Category: resource.Database,
			})
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	return records, nil
}

func (s *databaseStrategy) ResolveTags(ctx context.Context, target plugin.Target, record resource.Record) ([]resource.Tag, error) {
	output, err := s.clients.RDS(target.Region).ListTagsForResource(ctx, &rds.ListTagsForResourceInput{
		ResourceName: aws.String(s.Locator(target, record.ID)),
	})
	if err != nil {
		return nil, fmt.Errorf("list tags for db %s: %w", record.ID, err)
	}
	return convertTags(output.TagList, func(t rdstypes.Tag) (*string, *string) { return t.Key, t.Value }), nil
}

// Locator is the DB instance ARN.
func (s *databaseStrategy) Locator(target plugin.Target, id string) string {
	return fmt.Sprintf("arn:aws:rds:%s:%s:db:%s", target.Region, target.AccountID, id)
}

func (s *databaseStrategy) ApplyTag(ctx context.Context, target plugin.Target, locator string, tag resource.Tag) error {
	_, err := s.clients.RDS(target.Region).AddTagsToResource(ctx, &rds.AddTagsToResourceInput{
		ResourceName: aws.String(locator),
		Tags:         []rdstypes.Tag{{Key: aws.String(tag.Key), Value: aws.String(tag.Value)}},
	})
	if err != nil {
		return fmt.Errorf("add tags to resource: %w", err)
	}
	return nil
}
