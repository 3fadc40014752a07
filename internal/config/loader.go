// Package config provides configuration loading for ragstore.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fyrsmithlabs/ragstore/internal/logging"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
	envPrefix         = "RAGSTORE_"
)

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (RAGSTORE_MILVUS_ADDRESS, RAGSTORE_INDEX_METRIC_TYPE, ...)
//  2. YAML config file (optional; configPath may be empty)
//  3. Hardcoded defaults
//
// Environment variables map the first underscore-separated token to the
// config section and the remainder to the field name:
//
//	RAGSTORE_MILVUS_ADDRESS       -> milvus.address
//	RAGSTORE_MILVUS_DIAL_TIMEOUT  -> milvus.dial_timeout
//	RAGSTORE_INDEX_NLIST          -> index.nlist
func Load(configPath string) (*Config, error) {
	var raw []byte
	if configPath != "" {
		info, err := os.Stat(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}
		raw, err = os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return LoadBytes(raw)
}

// LoadBytes loads configuration from raw YAML plus environment overrides.
// A nil or empty slice loads defaults and environment only.
func LoadBytes(raw []byte) (*Config, error) {
	k := koanf.New(".")

	cfg := NewDefaultConfig()

	if len(raw) > 0 {
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envTransform maps RAGSTORE_SECTION_FIELD_NAME to section.field_name.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// NewDefaultConfig returns configuration defaults matching a local
// single-node Milvus deployment.
func NewDefaultConfig() *Config {
	return &Config{
		Engine: "milvus",
		Milvus: MilvusConfig{
			Address:          "localhost:19530",
			DatabasePrefix:   "rag",
			DialTimeout:      5 * time.Second,
			RequestTimeout:   30 * time.Second,
			RetryAttempts:    3,
			RetryBackoff:     2 * time.Second,
			ConsistencyLevel: "Bounded",
		},
		Index: IndexConfig{
			MetricType:     "L2",
			IndexType:      "IVF_FLAT",
			NList:          128,
			M:              16,
			EfConstruction: 256,
			NProbe:         10,
			Ef:             64,
		},
		Logging: *logging.NewDefaultConfig(),
	}
}
