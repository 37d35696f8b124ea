package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/pkg/resource"
)

// computeStrategy handles EC2 instances. Tags arrive embedded in DescribeInstances.
type computeStrategy struct {
	clients Clients
}

func (s *computeStrategy) Category() resource.Category { return resource.Compute }
func (s *computeStrategy) Regional() bool              { return true }

func (s *computeStrategy) Enumerate(ctx context.Context, target plugin.Target) ([]resource.Record, error) {
	client := s.clients.EC2(target.Region)
	records := []resource.Record{}
	var nextToken *string

	for {
		output, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				records = append(records, convertEC2Instance(instance, target.Region))
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return records, nil
}

func convertEC2Instance(instance ec2types.Instance, region string) resource.Record {
	tags := convertTags(instance.Tags, func(t ec2types.Tag) (*string, *string) { return t.Key, t.Value })
	return resource.Record{
		ID:       aws.ToString(instance.InstanceId),
		Name:     nameTag(tags),
		Region:   region,
		Category: resource.Compute,
		Tags:     tags,
	}
}

// Locator is the bare instance id.
func (s *computeStrategy) Locator(_ plugin.Target, id string) string {
	return id
}

func (s *computeStrategy) ApplyTag(ctx context.Context, target plugin.Target, locator string, tag resource.Tag) error {
	_, err := s.clients.EC2(target.Region).CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{locator},
		Tags:      []ec2types.Tag{{Key: aws.String(tag.Key), Value: aws.String(tag.Value)}},
	})
	if err != nil {
		return fmt.Errorf("create tags: %w", err)
	}
	return nil
}
