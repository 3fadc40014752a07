// Package docstore exposes a uniform, engine-agnostic document-store
// interface and translates every operation into Milvus primitives:
// fixed-schema collections, ANN indexes, boolean string filter
// expressions, and flush-based durability.
package docstore

import (
	"context"
)

// Well-known document keys.
const (
	// IDField is the tenant-unique primary identifier of a document.
	IDField = "id"

	// KBIDField scopes a document to its knowledge base.
	KBIDField = "kb_id"

	// ScoreField carries the distance/similarity score attached to each
	// search result document.
	ScoreField = "score"

	// EmbeddingKey is the canonical transient key under which callers may
	// supply the embedding; the codec renames it to the collection's
	// actual embedding field.
	EmbeddingKey = "embedding"
)

// Document is an application-level document: field name to scalar or
// array value.
type Document map[string]any

// Aggregation is one bucket of a terms aggregation.
type Aggregation struct {
	Value string
	Count int64
}

// SearchRequest describes one search fan-out across indexes and
// knowledge bases.
type SearchRequest struct {
	// SelectFields restricts returned fields. Empty or containing "*"
	// returns all scalar fields. The id field is always included.
	SelectFields []string

	// Condition is an equality/membership filter over scalar fields.
	Condition map[string]any

	// Vectors are the dense query vectors. Each is searched separately
	// against every selected collection.
	Vectors [][]float32

	// MatchText is accepted for interface compatibility but produces no
	// results: the engine has no token-text search.
	MatchText string

	// Offset and Limit paginate results. The engine has no native
	// offset, so Offset+Limit rows are fetched and sliced client-side.
	Offset int
	Limit  int

	// IndexNames and KBIDs select the collections to search: the
	// cross-product of the two lists.
	IndexNames []string
	KBIDs      []string
}

// Store is the capability interface of a document store backend.
//
// The surrounding system selects a backend once via configuration; the
// set of variants is closed (currently only Milvus).
//
// Existence checks and health probes never return errors: they degrade
// to false/empty results so calling code can branch without error
// handling. Mutating operations surface failures explicitly.
type Store interface {
	// CreateIndex creates the collection for (indexName, kbID) with an
	// embedding field of the given width, builds its ANN index, and
	// loads it. Idempotent: an existing collection is not an error.
	CreateIndex(ctx context.Context, indexName, kbID string, vectorSize int) error

	// DropIndex deletes the collection. Absence is a warning, not an
	// error. Not reversible.
	DropIndex(ctx context.Context, indexName, kbID string) error

	// IndexExists reports whether the collection exists. Never errors;
	// any check failure reports false. An empty kbID treats indexName as
	// the fully-qualified collection id.
	IndexExists(ctx context.Context, indexName, kbID string) bool

	// Insert encodes and bulk-writes documents, flushing before return.
	// The returned slice describes row-level failures; empty means full
	// success. A non-nil error means the batch as a whole failed.
	Insert(ctx context.Context, docs []Document, indexName, kbID string) ([]string, error)

	// Update replaces the document identified by condition["id"]
	// wholesale: fetch, delete, merge newValues, re-insert, flush.
	// Returns false when the document does not exist. The delete-then-
	// insert sequence is not atomic; a failure after the delete loses
	// the document and is logged distinctly.
	Update(ctx context.Context, condition map[string]any, newValues Document, indexName, kbID string) (bool, error)

	// Delete removes documents matching condition and returns the
	// engine-reported count. An empty condition deletes nothing.
	Delete(ctx context.Context, condition map[string]any, indexName, kbID string) (int64, error)

	// Get fetches a document by id, trying knowledge bases in order and
	// short-circuiting on the first hit. Absent collections are skipped;
	// (nil, nil) means not found.
	Get(ctx context.Context, id, indexName string, kbIDs []string) (Document, error)

	// Search fans out across IndexNames x KBIDs, runs ANN search per
	// collection, and returns decoded documents annotated with a score.
	Search(ctx context.Context, req SearchRequest) ([]Document, error)

	// Total returns the flushed row count, or 0 when the collection is
	// absent or the count fails.
	Total(ctx context.Context, indexName, kbID string) int64

	// ChunkIDs returns every document id in the collection, paging
	// through the engine in batches. Empty on absence or failure.
	ChunkIDs(ctx context.Context, indexName, kbID string) []string

	// SchemaFields returns the collection's schema field names. Empty on
	// absence or failure.
	SchemaFields(ctx context.Context, indexName, kbID string) []string

	// ExtractFields projects the given fields out of a result set, keyed
	// by document id. An empty field list yields an empty map.
	ExtractFields(res []Document, fields []string) map[string]Document

	// Highlight always returns an empty map: the engine has no
	// highlighting. Callers must treat empty as unsupported, not as
	// "no matches".
	Highlight(res []Document, keywords []string, field string) map[string]string

	// Aggregate always returns an empty slice: the engine has no terms
	// aggregation.
	Aggregate(res []Document, field string) []Aggregation

	// SQL always fails with ErrUnsupported.
	SQL(ctx context.Context, query string) ([]Document, error)

	// Health reports engine liveness. Never errors; used only for
	// liveness reporting, never as a gate to other operations.
	Health(ctx context.Context) bool

	// Close releases the engine connection.
	Close() error
}
