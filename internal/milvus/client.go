// Package milvus provides Milvus engine client implementations.
package milvus

import (
	"context"
)

// Client is the engine contract ragstore consumes from Milvus: database and
// collection lifecycle, schema-typed writes, filter-expression reads, ANN
// search, and flush-for-durability.
//
// The interface is deliberately narrow so the connector can be tested
// against an in-memory implementation.
type Client interface {
	// Database operations
	CreateDatabase(ctx context.Context, name string) error
	HasDatabase(ctx context.Context, name string) (bool, error)
	UseDatabase(ctx context.Context, name string) error

	// Collection operations
	CreateCollection(ctx context.Context, spec CollectionSpec) error
	DropCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	DescribeFields(ctx context.Context, collection string) ([]FieldSpec, error)
	CreateVectorIndex(ctx context.Context, collection, field string, params IndexParams) error
	LoadCollection(ctx context.Context, collection string) error
	RowCount(ctx context.Context, collection string) (int64, error)

	// Row operations
	Insert(ctx context.Context, collection string, rows []Row) (int64, error)
	Delete(ctx context.Context, collection, expr string) (int64, error)
	Query(ctx context.Context, collection, expr string, outputFields []string, offset, limit int) ([]Row, error)
	Search(ctx context.Context, collection, vectorField string, vector []float32, expr string, outputFields []string, topK int, params SearchParams) ([]Hit, error)

	// Flush forces buffered writes to become visible and queryable.
	Flush(ctx context.Context, collection string) error

	// Health checks engine reachability with a lightweight listing call.
	Health(ctx context.Context) error

	// Close closes the client connection.
	Close() error
}

// FieldType identifies the engine-native data type of a schema field.
type FieldType string

const (
	FieldTypeVarChar     FieldType = "VarChar"
	FieldTypeInt32       FieldType = "Int32"
	FieldTypeInt64       FieldType = "Int64"
	FieldTypeFloat       FieldType = "Float"
	FieldTypeDouble      FieldType = "Double"
	FieldTypeFloatVector FieldType = "FloatVector"
)

// FieldSpec describes one field of a collection schema.
type FieldSpec struct {
	Name        string
	Type        FieldType
	PrimaryKey  bool
	MaxLength   int // VarChar only
	Dim         int // FloatVector only
	Description string
}

// CollectionSpec describes a collection to create.
type CollectionSpec struct {
	Name               string
	Description        string
	Fields             []FieldSpec
	EnableDynamicField bool
}

// Row is an engine row: field name to scalar or vector value.
type Row map[string]any

// Hit is a search result row with its distance/similarity score.
type Hit struct {
	Row   Row
	Score float32
}

// IndexParams configures ANN index construction on the embedding field.
type IndexParams struct {
	// MetricType is L2, IP, or COSINE.
	MetricType string
	// IndexType is IVF_FLAT, HNSW, or AUTOINDEX.
	IndexType      string
	NList          int
	M              int
	EfConstruction int
}

// SearchParams configures ANN search execution.
type SearchParams struct {
	NProbe int // IVF indexes
	Ef     int // HNSW indexes
}
