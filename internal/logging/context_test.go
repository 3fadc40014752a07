package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithTenant(ctx, "tenant1")
	ctx = WithRequestID(ctx, "req-1")

	fields := ContextFields(ctx)
	assert.Len(t, fields, 2)
	assert.Equal(t, "tenant", fields[0].Key)
	assert.Equal(t, "tenant1", fields[0].String)
	assert.Equal(t, "tenant1", TenantFromContext(ctx))
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestEnsureRequestID(t *testing.T) {
	ctx := EnsureRequestID(context.Background())
	generated := RequestIDFromContext(ctx)
	assert.NotEmpty(t, generated)

	// Idempotent: an existing id is preserved.
	again := EnsureRequestID(ctx)
	assert.Equal(t, generated, RequestIDFromContext(again))
}
