package aws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yairfalse/autotag/internal/plugin"
	"github.com/yairfalse/autotag/pkg/resource"
)

// noSuchTagSet is the S3 error code for a bucket that has never been tagged.
const noSuchTagSet = "NoSuchTagSet"

// storageStrategy handles S3 buckets. The category is global, but each bucket's
// tag calls go to the bucket's own region.
type storageStrategy struct {
	clients Clients
	home    string

	// regions maps bucket name to the region ListBuckets reported for it.
	regions sync.Map
}

func (s *storageStrategy) Category() resource.Category { return resource.Storage }
func (s *storageStrategy) Regional() bool              { return false }

func (s *storageStrategy) Enumerate(ctx context.Context, _ plugin.Target) ([]resource.Record, error) {
	output, err := s.clients.S3(s.home).ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	records := make([]resource.Record, 0, len(output.Buckets))
	for _, bucket := range output.Buckets {
		name := aws.ToString(bucket.Name)
		if region := aws.ToString(bucket.BucketRegion); region != "" {
			s.regions.Store(name, region)
		}
		records = append(records, resource.Record{
			ID:       name,
			Name:     name,
			Region:   resource.GlobalRegion,
			Category: resource.Storage,
		})
	}
	return records, nil
}

// ResolveTags maps a bucket without a tag set to an empty tag list.
func (s *storageStrategy) ResolveTags(ctx context.Context, _ plugin.Target, record resource.Record) ([]resource.Tag, error) {
	return s.bucketTags(ctx, s.bucketClient(ctx, record.ID), record.ID)
}

func (s *storageStrategy) bucketTags(ctx context.Context, client S3API, bucket string) ([]resource.Tag, error) {
	output, err := client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isNoSuchTagSet(err) {
			return []resource.Tag{}, nil
		}
		return nil, fmt.Errorf("get bucket tagging %s: %w", bucket, err)
	}
	return convertTags(output.TagSet, func(t s3types.Tag) (*string, *string) { return t.Key, t.Value }), nil
}

// Locator is the bucket name.
func (s *storageStrategy) Locator(_ plugin.Target, id string) string {
	return id
}

// ApplyTag merges tag into the bucket's existing set: PutBucketTagging replaces
// the whole set.
func (s *storageStrategy) ApplyTag(ctx context.Context, _ plugin.Target, locator string, tag resource.Tag) error {
	client := s.bucketClient(ctx, locator)
	existing, err := s.bucketTags(ctx, client, locator)
	if err != nil {
		return err
	}

	merged := mergeTag(existing, tag)
	tagSet := make([]s3types.Tag, 0, len(merged))
	for _, t := range merged {
		tagSet = append(tagSet, s3types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}

	_, err = client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(locator),
		Tagging: &s3types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return fmt.Errorf("put bucket tagging: %w", err)
	}
	return nil
}

// bucketClient returns a client for the region the bucket lives in. Buckets
// seen by Enumerate already carry their region; others are resolved with
// HeadBucket. When neither works the home region is used and S3 reports the
// mismatch on the call itself.
func (s *storageStrategy) bucketClient(ctx context.Context, bucket string) S3API {
	if region, ok := s.regions.Load(bucket); ok {
		return s.clients.S3(region.(string))
	}

	home := s.clients.S3(s.home)
	region, err := manager.GetBucketRegion(ctx, home, bucket)
	if err != nil || region == "" {
		return home
	}
	s.regions.Store(bucket, region)
	return s.clients.S3(region)
}

func isNoSuchTagSet(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == noSuchTagSet
}
