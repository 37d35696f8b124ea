package account

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/yairfalse/autotag/internal/config"
)

// Open builds the store cfg selects. awsCfg is only used by the dynamodb driver.
func Open(cfg config.StoreConfig, awsCfg aws.Config) (Store, error) {
	switch cfg.Driver {
	case config.StoreBolt:
		return OpenBolt(cfg.Path)
	case config.StoreDynamoDB:
		return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Stage), nil
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
