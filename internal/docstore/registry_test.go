package docstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

func TestNewRejectsUnknownEngine(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Engine = "elasticsearch"

	_, err := New(context.Background(), cfg, "tenant1", logging.NewNop())
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "elasticsearch")
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "tenant1", logging.NewNop())
	assert.Error(t, err)
}

func TestRegistryCachesFailures(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Engine = "bogus"
	reg := NewRegistry(cfg, logging.NewNop())

	_, err1 := reg.Get(context.Background(), "tenant1")
	require.ErrorIs(t, err1, ErrUnsupported)

	// The failed attempt is cached, not retried.
	_, err2 := reg.Get(context.Background(), "tenant1")
	assert.Equal(t, err1, err2)

	// Reset clears the cached failure.
	require.NoError(t, reg.Reset("tenant1"))
}

func TestRegistrySharesOneAttemptPerTenant(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Engine = "bogus"
	reg := NewRegistry(cfg, logging.NewNop())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Get(context.Background(), "tenant1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrUnsupported)
	}
}

func TestRegistryClose(t *testing.T) {
	cfg := config.NewDefaultConfig()
	reg := NewRegistry(cfg, logging.NewNop())

	// Closing with no connected tenants is a no-op.
	require.NoError(t, reg.Close())

	// Reset of an unknown tenant is a no-op.
	require.NoError(t, reg.Reset("ghost"))
}
