package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

// Config is the root configuration for ragstore.
type Config struct {
	// Engine selects the document store backend. The set of variants is
	// closed; currently only "milvus".
	Engine string `koanf:"engine"`

	Milvus  MilvusConfig   `koanf:"milvus"`
	Index   IndexConfig    `koanf:"index"`
	Mapping MappingConfig  `koanf:"mapping"`
	Logging logging.Config `koanf:"logging"`
}

// MilvusConfig configures the connection to the Milvus engine.
type MilvusConfig struct {
	// Address is the Milvus gRPC endpoint, host:port.
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// DatabasePrefix is prepended to the tenant id to form the
	// per-tenant database name.
	DatabasePrefix string `koanf:"database_prefix"`

	DialTimeout    time.Duration `koanf:"dial_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RetryAttempts bounds connection retries before failing fatally.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryBackoff is the fixed wait between connection attempts.
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// ConsistencyLevel for reads: Strong, Bounded, or Eventually.
	ConsistencyLevel string `koanf:"consistency_level"`
}

// IndexConfig configures the ANN index built on the embedding field.
type IndexConfig struct {
	// MetricType is the distance metric: L2, IP, or COSINE.
	MetricType string `koanf:"metric_type"`

	// IndexType is the ANN algorithm: IVF_FLAT, HNSW, or AUTOINDEX.
	IndexType string `koanf:"index_type"`

	// NList is the cluster count for IVF indexes.
	NList int `koanf:"nlist"`

	// M and EfConstruction parameterize HNSW graph construction.
	M              int `koanf:"m"`
	EfConstruction int `koanf:"ef_construction"`

	// NProbe and Ef are the corresponding search-time parameters.
	NProbe int `koanf:"nprobe"`
	Ef     int `koanf:"ef"`
}

// MappingConfig points at the field-mapping document.
type MappingConfig struct {
	// Path is the field-mapping YAML file. Empty means the built-in
	// default mapping.
	Path string `koanf:"path"`
}

// Validate checks the configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.Milvus.Address == "" {
		return fmt.Errorf("milvus.address is required")
	}
	if c.Milvus.RetryAttempts < 0 {
		return fmt.Errorf("milvus.retry_attempts must be >= 0")
	}
	switch c.Milvus.ConsistencyLevel {
	case "Strong", "Bounded", "Eventually":
	default:
		return fmt.Errorf("milvus.consistency_level %q (must be Strong, Bounded, or Eventually)", c.Milvus.ConsistencyLevel)
	}
	switch c.Index.MetricType {
	case "L2", "IP", "COSINE":
	default:
		return fmt.Errorf("index.metric_type %q (must be L2, IP, or COSINE)", c.Index.MetricType)
	}
	switch c.Index.IndexType {
	case "IVF_FLAT", "HNSW", "AUTOINDEX":
	default:
		return fmt.Errorf("index.index_type %q (must be IVF_FLAT, HNSW, or AUTOINDEX)", c.Index.IndexType)
	}
	return c.Logging.Validate()
}
