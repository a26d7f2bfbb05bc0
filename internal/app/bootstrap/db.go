// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"

	"github.com/subbanorg/subban-server/internal/app/system/indexes"
	"github.com/subbanorg/subban-server/internal/app/system/validators"
)

// ConnectDB connects to MongoDB and initializes the media storage backend.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema
// and Startup. Clients land in DBDeps for use by handlers.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	poolCfg := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
	if err != nil {
		return DBDeps{}, err
	}

	db := client.Database(appCfg.MongoDatabase)

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
		zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
	)

	var store storage.Store
	switch appCfg.StorageType {
	case "s3":
		store, err = storage.NewS3(ctx, storage.S3Config{
			Region:                   appCfg.StorageS3Region,
			Bucket:                   appCfg.StorageS3Bucket,
			Prefix:                   appCfg.StorageS3Prefix,
			CloudFrontURL:            appCfg.StorageCFURL,
			CloudFrontKeyPairID:      appCfg.StorageCFKeyPairID,
			CloudFrontPrivateKeyPath: appCfg.StorageCFKeyPath,
		})
		if err != nil {
			return DBDeps{}, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		logger.Info("initialized S3/CloudFront media storage",
			zap.String("bucket", appCfg.StorageS3Bucket),
			zap.String("prefix", appCfg.StorageS3Prefix),
		)
	case "local", "":
		store, err = storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
		if err != nil {
			return DBDeps{}, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		logger.Info("initialized local media storage",
			zap.String("path", appCfg.StorageLocalPath),
			zap.String("url", appCfg.StorageLocalURL),
		)
	default:
		return DBDeps{}, fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		FileStorage:   store,
	}, nil
}

// EnsureSchema creates collections with validators and database indexes.
//
// This runs after ConnectDB succeeds but before Startup and before the HTTP
// handler is built. The context has a timeout based on
// coreCfg.IndexBootTimeout.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	logger.Info("ensuring collections and validators")
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("failed to ensure collection validators", zap.Error(err))
		return err
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	logger.Info("database schema ensured successfully")
	return nil
}
