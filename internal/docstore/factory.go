package docstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
	"github.com/fyrsmithlabs/ragstore/internal/milvus"
)

// New builds the Store selected by cfg.Engine for one tenant. The
// variant set is closed; "milvus" (or empty, the default) is the only
// engine today.
func New(ctx context.Context, cfg *config.Config, tenant string, logger *logging.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.Engine {
	case "", "milvus":
		return newMilvusStore(ctx, cfg, tenant, logger)
	default:
		return nil, fmt.Errorf("%w: unknown document store engine %q", ErrUnsupported, cfg.Engine)
	}
}

func newMilvusStore(ctx context.Context, cfg *config.Config, tenant string, logger *logging.Logger) (Store, error) {
	database, err := DatabaseName(cfg.Milvus.DatabasePrefix, tenant)
	if err != nil {
		return nil, err
	}

	clientCfg := &milvus.ClientConfig{
		Address:          cfg.Milvus.Address,
		Username:         cfg.Milvus.Username,
		Password:         cfg.Milvus.Password,
		DialTimeout:      cfg.Milvus.DialTimeout,
		RequestTimeout:   cfg.Milvus.RequestTimeout,
		RetryAttempts:    cfg.Milvus.RetryAttempts,
		RetryBackoff:     cfg.Milvus.RetryBackoff,
		ConsistencyLevel: cfg.Milvus.ConsistencyLevel,
	}
	client, err := milvus.NewGRPCClient(ctx, clientCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := ensureDatabase(ctx, client, database); err != nil {
		client.Close()
		return nil, err
	}

	mapping, err := resolveMapping(cfg)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info(ctx, "connected to document store",
		zap.String("engine", "milvus"),
		zap.String("address", cfg.Milvus.Address),
		zap.String("database", database))
	return NewConnector(client, tenant, database, mapping, cfg.Index, logger, WithAutoCreate())
}

// ensureDatabase creates the tenant database if absent and scopes the
// client to it.
func ensureDatabase(ctx context.Context, client milvus.Client, database string) error {
	exists, err := client.HasDatabase(ctx, database)
	if err != nil {
		return fmt.Errorf("%w: checking database %s: %v", ErrConnectionFailed, database, err)
	}
	if !exists {
		if err := client.CreateDatabase(ctx, database); err != nil {
			return fmt.Errorf("%w: creating database %s: %v", ErrConnectionFailed, database, err)
		}
	}
	if err := client.UseDatabase(ctx, database); err != nil {
		return fmt.Errorf("%w: selecting database %s: %v", ErrConnectionFailed, database, err)
	}
	return nil
}

func resolveMapping(cfg *config.Config) (config.FieldMapping, error) {
	if cfg.Mapping.Path == "" {
		return config.DefaultFieldMapping(), nil
	}
	mapping, err := config.LoadMapping(cfg.Mapping.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return mapping, nil
}
