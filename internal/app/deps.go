package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jmoiron/sqlx"

	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/archive"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/config"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/index"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/infrastructure/indexstore"
	"github.com/ministryofjustice/laa-data-access-api-sub001/internal/infrastructure/objectstore"
)

// NewObjectStore builds the archive backend chosen by OBJECT_STORE.
func NewObjectStore(ctx context.Context, cfg config.Config, db *sqlx.DB) (archive.ObjectStore, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreS3:
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3Store(objectstore.NewS3Client(awsCfg, cfg.AWSEndpointURL)), nil
	case config.ObjectStorePostgres:
		return objectstore.NewPostgresStore(db), nil
	case config.ObjectStoreMemory:
		return objectstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown object store %q", cfg.ObjectStore)
	}
}

// NewIndexStore builds the index backend chosen by INDEX_STORE.
func NewIndexStore(ctx context.Context, cfg config.Config) (index.Store, error) {
	switch cfg.IndexStore {
	case config.IndexStoreDynamo:
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return indexstore.NewDynamoStore(indexstore.NewDynamoClient(awsCfg, cfg.AWSEndpointURL), cfg.IndexTable), nil
	case config.IndexStoreMemory:
		return indexstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown index store %q", cfg.IndexStore)
	}
}

// credentials come from the default chain: env, shared config, IRSA
func loadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
