// Package aws implements the per-category discovery and tagging strategies for AWS.
package aws

import (
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yairfalse/autotag/internal/credentials"
)

// cloudFrontRegion is where the CloudFront control plane lives.
const cloudFrontRegion = "us-east-1"

// SDKClients builds SDK clients from scoped credentials, one per service and region.
// Create one per operation; it is safe for concurrent use within that operation.
type SDKClients struct {
	creds credentials.Credentials
	home  string

	mu      sync.Mutex
	clients map[string]any
}

// NewClients creates a client factory. home is the region used for calls that
// are not tied to a resource region.
func NewClients(creds credentials.Credentials, home string) *SDKClients {
	return &SDKClients{
		creds:   creds,
		home:    home,
		clients: make(map[string]any),
	}
}

func cached[T any](c *SDKClients, service, region string, build func(aws.Config) T) T {
	if region == "" {
		region = c.home
	}
	key := service + "/" + region

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client.(T)
	}
	client := build(c.creds.Config(region))
	c.clients[key] = client
	return client
}

func (c *SDKClients) EC2(region string) EC2API {
	return cached(c, "ec2", region, func(cfg aws.Config) *ec2.Client { return ec2.NewFromConfig(cfg) })
}

func (c *SDKClients) RDS(region string) RDSAPI {
	return cached(c, "rds", region, func(cfg aws.Config) *rds.Client { return rds.NewFromConfig(cfg) })
}

func (c *SDKClients) ElastiCache(region string) ElastiCacheAPI {
	return cached(c, "elasticache", region, func(cfg aws.Config) *elasticache.Client { return elasticache.NewFromConfig(cfg) })
}

func (c *SDKClients) CloudFront() CloudFrontAPI {
	return cached(c, "cloudfront", cloudFrontRegion, func(cfg aws.Config) *cloudfront.Client { return cloudfront.NewFromConfig(cfg) })
}

func (c *SDKClients) S3(region string) S3API {
	return cached(c, "s3", region, func(cfg aws.Config) *s3.Client { return s3.NewFromConfig(cfg) })
}

var _ Clients = (*SDKClients)(nil)
