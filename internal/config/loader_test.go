package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes_Defaults(t *testing.T) {
	cfg, err := LoadBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:19530", cfg.Milvus.Address)
	assert.Equal(t, "rag", cfg.Milvus.DatabasePrefix)
	assert.Equal(t, 5*time.Second, cfg.Milvus.DialTimeout)
	assert.Equal(t, 3, cfg.Milvus.RetryAttempts)
	assert.Equal(t, "Bounded", cfg.Milvus.ConsistencyLevel)
	assert.Equal(t, "L2", cfg.Index.MetricType)
	assert.Equal(t, "IVF_FLAT", cfg.Index.IndexType)
	assert.Equal(t, 128, cfg.Index.NList)
	assert.Equal(t, 10, cfg.Index.NProbe)
}

func TestLoadBytes_YAMLOverride(t *testing.T) {
	raw := []byte(`
milvus:
  address: milvus.internal:19530
  consistency_level: Strong
  retry_attempts: 5
index:
  metric_type: IP
  index_type: HNSW
`)
	cfg, err := LoadBytes(raw)
	require.NoError(t, err)

	assert.Equal(t, "milvus.internal:19530", cfg.Milvus.Address)
	assert.Equal(t, "Strong", cfg.Milvus.ConsistencyLevel)
	assert.Equal(t, 5, cfg.Milvus.RetryAttempts)
	assert.Equal(t, "IP", cfg.Index.MetricType)
	assert.Equal(t, "HNSW", cfg.Index.IndexType)
	// Untouched values keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Milvus.RequestTimeout)
}

func TestLoadBytes_EnvOverride(t *testing.T) {
	t.Setenv("RAGSTORE_MILVUS_ADDRESS", "10.0.0.4:19530")
	t.Setenv("RAGSTORE_INDEX_NLIST", "256")

	cfg, err := LoadBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.4:19530", cfg.Milvus.Address)
	assert.Equal(t, 256, cfg.Index.NList)
}

func TestLoadBytes_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad consistency level", "milvus:\n  consistency_level: Chaotic\n"},
		{"bad metric", "index:\n  metric_type: HAMMING\n"},
		{"bad index type", "index:\n  index_type: FLATTER\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseMapping(t *testing.T) {
	raw := []byte(`
id:
  type: varchar
  default: ""
important_kwd:
  type: keyword-list
  default: ""
page_num_int:
  type: integer
  default: 0
`)
	mapping, err := ParseMapping(raw)
	require.NoError(t, err)
	require.Len(t, mapping, 3)
	assert.Equal(t, "keyword-list", mapping["important_kwd"].Type)
	assert.Equal(t, "integer", mapping["page_num_int"].Type)
}

func TestParseMapping_Empty(t *testing.T) {
	_, err := ParseMapping([]byte(""))
	assert.Error(t, err)
}

func TestDefaultFieldMapping(t *testing.T) {
	mapping := DefaultFieldMapping()
	require.NotEmpty(t, mapping)
	assert.Equal(t, "varchar", mapping["id"].Type)
	assert.Equal(t, "int-array", mapping["position_int"].Type)
	assert.Equal(t, "feature-map", mapping["tag_feas"].Type)
}
