package repository

import (
	"context"
	"errors"
	"fmt"
	"music-tutor/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type StoreConfig struct {
	Backend     string
	TableName   string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
	// DynamoDB is required for the dynamodb backend.
	DynamoDB utils.DynamoDbAPI
}

// OpenStore builds the record store selected by cfg.Backend.
func OpenStore(ctx context.Context, logger *logrus.Entry, cfg StoreConfig) (RecordStore, error) {
	switch cfg.Backend {
	case BackendDynamoDB:
		if cfg.DynamoDB == nil || cfg.TableName == "" {
			return nil, errors.New("dynamodb backend needs a client and TABLE_NAME")
		}
		return NewDynamoDBStore(logger, cfg.DynamoDB, cfg.TableName), nil
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is not set")
		}
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is not set")
		}
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	case BackendMemory, "":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
