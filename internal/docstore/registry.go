package docstore

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

// Registry hands out one Store per tenant, connecting lazily on first
// use. Concurrent first requests for the same tenant share a single
// connection attempt; a failed attempt is cached and returned to every
// caller until Reset.
type Registry struct {
	cfg    *config.Config
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once  sync.Once
	store Store
	err   error
}

// NewRegistry builds a Registry over shared configuration.
func NewRegistry(cfg *config.Config, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns the tenant's Store, connecting on first use.
func (r *Registry) Get(ctx context.Context, tenant string) (Store, error) {
	r.mu.Lock()
	entry, ok := r.entries[tenant]
	if !ok {
		entry = &registryEntry{}
		r.entries[tenant] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.store, entry.err = New(ctx, r.cfg, tenant, r.logger)
	})
	return entry.store, entry.err
}

// Reset drops a tenant's cached entry so the next Get reconnects. The
// old store, if any, is closed.
func (r *Registry) Reset(tenant string) error {
	r.mu.Lock()
	entry, ok := r.entries[tenant]
	delete(r.entries, tenant)
	r.mu.Unlock()

	if ok && entry.store != nil {
		return entry.store.Close()
	}
	return nil
}

// Close closes every connected store.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	var errs []error
	for tenant, entry := range entries {
		if entry.store == nil {
			continue
		}
		if err := entry.store.Close(); err != nil {
			r.logger.Warn(context.Background(), "closing tenant store failed",
				zap.String("tenant", tenant), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
