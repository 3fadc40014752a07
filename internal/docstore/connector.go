package docstore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
	"github.com/fyrsmithlabs/ragstore/internal/milvus"
)

// Connector implements Store on a Milvus-style vector engine. One
// Connector serves one tenant; its client is already scoped to the
// tenant's database.
type Connector struct {
	tenant   string
	database string
	client   milvus.Client
	mapping  config.FieldMapping
	indexCfg config.IndexConfig
	logger   *logging.Logger

	// autoCreate lets Insert provision an absent collection when the
	// documents carry enough information to infer the embedding width.
	autoCreate bool

	mu      sync.RWMutex
	schemas map[string]*Schema
}

// Option configures a Connector.
type Option func(*Connector)

// WithAutoCreate enables collection auto-provisioning on Insert.
func WithAutoCreate() Option {
	return func(c *Connector) { c.autoCreate = true }
}

// NewConnector builds a Connector over an engine client already scoped
// to the tenant's database.
func NewConnector(client milvus.Client, tenant, database string, mapping config.FieldMapping, indexCfg config.IndexConfig, logger *logging.Logger, opts ...Option) (*Connector, error) {
	if client == nil {
		return nil, fmt.Errorf("engine client is required")
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: mapping configuration is missing or empty", ErrSchema)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Connector{
		tenant:   tenant,
		database: database,
		client:   client,
		mapping:  mapping,
		indexCfg: indexCfg,
		logger:   logger.Named("docstore").With(zap.String("database", database)),
		schemas:  make(map[string]*Schema),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Store = (*Connector)(nil)

// CreateIndex provisions the collection, its ANN index, and loads it
// into memory. Safe to call when the collection already exists.
func (c *Connector) CreateIndex(ctx context.Context, indexName, kbID string, vectorSize int) error {
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return err
	}
	exists, err := c.client.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: checking %s: %v", ErrCreate, collection, err)
	}
	if exists {
		c.logger.Debug(ctx, "collection already exists", zap.String("collection", collection))
		return nil
	}

	schema, err := Translate(c.mapping, vectorSize)
	if err != nil {
		return err
	}
	spec := schema.CollectionSpec(collection, fmt.Sprintf("chunks for knowledge base %s", kbID))
	if err := c.client.CreateCollection(ctx, spec); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCreate, collection, err)
	}
	if err := c.buildAndLoad(ctx, collection, schema.VectorField); err != nil {
		// Roll back so a half-created collection reads as absent and the
		// next attempt starts clean.
		if dropErr := c.client.DropCollection(ctx, collection); dropErr != nil {
			c.logger.Error(ctx, "rollback of partially created collection failed",
				zap.String("collection", collection), zap.Error(dropErr))
		}
		return fmt.Errorf("%w: %s: %v", ErrCreate, collection, err)
	}

	c.cacheSchema(collection, schema)
	c.logger.Info(ctx, "created collection",
		zap.String("collection", collection),
		zap.Int("dim", vectorSize),
		zap.String("index_type", c.indexCfg.IndexType))
	return nil
}

func (c *Connector) buildAndLoad(ctx context.Context, collection, vectorField string) error {
	params := milvus.IndexParams{
		MetricType:     c.indexCfg.MetricType,
		IndexType:      c.indexCfg.IndexType,
		NList:          c.indexCfg.NList,
		M:              c.indexCfg.M,
		EfConstruction: c.indexCfg.EfConstruction,
	}
	if err := c.client.CreateVectorIndex(ctx, collection, vectorField, params); err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if err := c.client.LoadCollection(ctx, collection); err != nil {
		return fmt.Errorf("loading collection: %w", err)
	}
	return nil
}

// DropIndex deletes the collection. Dropping an absent collection is
// logged and ignored.
func (c *Connector) DropIndex(ctx context.Context, indexName, kbID string) error {
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return err
	}
	exists, err := c.client.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: checking %s: %v", ErrDelete, collection, err)
	}
	if !exists {
		c.logger.Warn(ctx, "drop of absent collection", zap.String("collection", collection))
		return nil
	}
	if err := c.client.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("%w: dropping %s: %v", ErrDelete, collection, err)
	}
	c.dropSchema(collection)
	c.logger.Info(ctx, "dropped collection", zap.String("collection", collection))
	return nil
}

// IndexExists reports whether the collection exists. Check failures
// degrade to false.
func (c *Connector) IndexExists(ctx context.Context, indexName, kbID string) bool {
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return false
	}
	exists, err := c.client.HasCollection(ctx, collection)
	if err != nil {
		c.logger.Warn(ctx, "collection existence check failed",
			zap.String("collection", collection), zap.Error(err))
		return false
	}
	return exists
}

// Insert encodes and writes documents in one batch, then flushes. Rows
// that cannot be encoded are reported in the returned slice and the rest
// of the batch still goes through.
func (c *Connector) Insert(ctx context.Context, docs []Document, indexName, kbID string) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return nil, err
	}

	schema, err := c.collectionSchema(ctx, collection)
	if err != nil {
		if c.autoCreate {
			schema, err = c.provisionFor(ctx, docs, indexName, kbID)
		}
		if err != nil {
			return nil, err
		}
	}

	var failures []string
	rows := make([]milvus.Row, 0, len(docs))
	for _, doc := range docs {
		row, encErr := Encode(doc, schema, kbID)
		if encErr != nil {
			failures = append(failures, fmt.Sprintf("doc %v: %v", doc[IDField], encErr))
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return failures, nil
	}

	if _, err := c.client.Insert(ctx, collection, rows); err != nil {
		return failures, fmt.Errorf("%w: %s: %v", ErrInsert, collection, err)
	}
	if err := c.client.Flush(ctx, collection); err != nil {
		return failures, fmt.Errorf("%w: flushing %s: %v", ErrInsert, collection, err)
	}
	c.logger.Debug(ctx, "inserted documents",
		zap.String("collection", collection),
		zap.Int("count", len(rows)),
		zap.Int("failed", len(failures)))
	return failures, nil
}

// provisionFor creates the collection from the first document that
// carries an embedding, inferring the width from it.
func (c *Connector) provisionFor(ctx context.Context, docs []Document, indexName, kbID string) (*Schema, error) {
	dim := 0
	for _, doc := range docs {
		raw, ok := doc[EmbeddingKey]
		if !ok {
			for key := range doc {
				if d, match := VectorFieldDim(key); match {
					raw, ok, dim = doc[key], true, d
					break
				}
			}
		}
		if !ok {
			continue
		}
		if dim == 0 {
			vec, err := toFloat32Slice(raw)
			if err != nil {
				continue
			}
			dim = len(vec)
		}
		break
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: collection %s_%s absent and no document carries an embedding to infer width from",
			ErrNotFound, indexName, kbID)
	}
	if err := c.CreateIndex(ctx, indexName, kbID, dim); err != nil {
		return nil, err
	}
	return Translate(c.mapping, dim)
}

// Update replaces a single document wholesale. The engine has no
// in-place update, so the document is fetched, deleted, merged, and
// re-inserted.
func (c *Connector) Update(ctx context.Context, condition map[string]any, newValues Document, indexName, kbID string) (bool, error) {
	id, ok := condition[IDField].(string)
	if !ok || id == "" {
		return false, ErrMissingID
	}
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return false, err
	}
	exists, err := c.client.HasCollection(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", collection, err)
	}
	if !exists {
		return false, nil
	}
	schema, err := c.collectionSchema(ctx, collection)
	if err != nil {
		return false, err
	}

	expr, err := BuildFilter(condition)
	if err != nil {
		return false, err
	}
	rows, err := c.client.Query(ctx, collection, expr, schema.FieldNames(true), 0, 1)
	if err != nil {
		return false, fmt.Errorf("fetching document %s: %w", id, err)
	}
	if len(rows) == 0 {
		return false, nil
	}

	deleted, err := c.client.Delete(ctx, collection, expr)
	if err != nil {
		return false, fmt.Errorf("%w: replacing document %s: %v", ErrDelete, id, err)
	}
	if deleted == 0 {
		return false, nil
	}

	doc := Decode(rows[0], schema, schema.FieldNames(false))
	for k, v := range newValues {
		if k == IDField {
			// The primary key is the identity of the document; renames
			// would orphan the original id.
			continue
		}
		if k == EmbeddingKey {
			doc[schema.VectorField] = v
			continue
		}
		doc[k] = v
	}

	row, err := Encode(doc, schema, kbID)
	if err != nil {
		c.logger.Error(ctx, "document lost: deleted but replacement cannot be encoded",
			zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("%w: re-encoding document %s after delete: %v", ErrInsert, id, err)
	}
	if _, err := c.client.Insert(ctx, collection, []milvus.Row{row}); err != nil {
		c.logger.Error(ctx, "document lost: deleted but replacement insert failed",
			zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("%w: re-inserting document %s after delete: %v", ErrInsert, id, err)
	}
	if err := c.client.Flush(ctx, collection); err != nil {
		return false, fmt.Errorf("%w: flushing %s: %v", ErrInsert, collection, err)
	}
	return true, nil
}

// Delete removes documents matching condition. An empty or
// never-matching condition deletes nothing and returns zero.
func (c *Connector) Delete(ctx context.Context, condition map[string]any, indexName, kbID string) (int64, error) {
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return 0, err
	}
	exists, err := c.client.HasCollection(ctx, collection)
	if err != nil || !exists {
		return 0, nil
	}
	if len(condition) == 0 || conditionSelectsNothing(condition) {
		c.logger.Warn(ctx, "delete with empty condition ignored", zap.String("collection", collection))
		return 0, nil
	}
	expr, err := BuildFilter(condition)
	if err != nil {
		return 0, err
	}
	count, err := c.client.Delete(ctx, collection, expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDelete, collection, err)
	}
	if err := c.client.Flush(ctx, collection); err != nil {
		return count, fmt.Errorf("%w: flushing %s: %v", ErrDelete, collection, err)
	}
	c.logger.Debug(ctx, "deleted documents",
		zap.String("collection", collection), zap.Int64("count", count))
	return count, nil
}

// Get fetches a document by id, trying knowledge bases in order and
// returning the first hit. Returns (nil, nil) when no knowledge base has
// the document; returns an error only when every attempted lookup
// failed.
func (c *Connector) Get(ctx context.Context, id, indexName string, kbIDs []string) (Document, error) {
	if len(kbIDs) == 0 {
		kbIDs = []string{""}
	}
	expr, err := BuildFilter(map[string]any{IDField: id})
	if err != nil {
		return nil, err
	}

	var lastErr error
	attempted, cleanMisses := 0, 0
	for _, kbID := range kbIDs {
		collection, err := CollectionID(indexName, kbID)
		if err != nil {
			lastErr = err
			continue
		}
		exists, err := c.client.HasCollection(ctx, collection)
		if err != nil {
			attempted++
			lastErr = err
			continue
		}
		if !exists {
			continue
		}
		attempted++
		schema, err := c.collectionSchema(ctx, collection)
		if err != nil {
			lastErr = err
			continue
		}
		rows, err := c.client.Query(ctx, collection, expr, schema.FieldNames(false), 0, 1)
		if err != nil {
			lastErr = err
			continue
		}
		if len(rows) > 0 {
			return Decode(rows[0], schema, nil), nil
		}
		cleanMisses++
	}
	// A clean miss anywhere means "not found"; fail only when every
	// attempted lookup errored.
	if attempted > 0 && cleanMisses == 0 && lastErr != nil {
		return nil, fmt.Errorf("fetching document %s: %w", id, lastErr)
	}
	return nil, nil
}

// Total returns the flushed row count, zero when the collection is
// absent or counting fails.
func (c *Connector) Total(ctx context.Context, indexName, kbID string) int64 {
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return 0
	}
	exists, err := c.client.HasCollection(ctx, collection)
	if err != nil || !exists {
		return 0
	}
	if err := c.client.Flush(ctx, collection); err != nil {
		c.logger.Warn(ctx, "flush before count failed",
			zap.String("collection", collection), zap.Error(err))
	}
	count, err := c.client.RowCount(ctx, collection)
	if err != nil {
		c.logger.Warn(ctx, "row count failed",
			zap.String("collection", collection), zap.Error(err))
		return 0
	}
	return count
}

// chunkIDBatch is the page size for full-collection id scans.
const chunkIDBatch = 10000

// ChunkIDs pages through every document id in the collection. Empty on
// absence or failure.
func (c *Connector) ChunkIDs(ctx context.Context, indexName, kbID string) []string {
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return nil
	}
	exists, err := c.client.HasCollection(ctx, collection)
	if err != nil || !exists {
		return nil
	}

	var ids []string
	for offset := 0; ; offset += chunkIDBatch {
		rows, err := c.client.Query(ctx, collection, IDField+" != ''", []string{IDField}, offset, chunkIDBatch)
		if err != nil {
			c.logger.Warn(ctx, "chunk id scan failed",
				zap.String("collection", collection), zap.Int("offset", offset), zap.Error(err))
			return nil
		}
		for _, row := range rows {
			if id, ok := row[IDField].(string); ok {
				ids = append(ids, id)
			}
		}
		if len(rows) < chunkIDBatch {
			return ids
		}
	}
}

// SchemaFields returns the collection's field names, empty on absence or
// failure.
func (c *Connector) SchemaFields(ctx context.Context, indexName, kbID string) []string {
	collection, err := CollectionID(indexName, kbID)
	if err != nil {
		return nil
	}
	fields, err := c.client.DescribeFields(ctx, collection)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

// ExtractFields projects fields out of a result set, keyed by document
// id. Documents without an id are skipped.
func (c *Connector) ExtractFields(res []Document, fields []string) map[string]Document {
	out := make(map[string]Document, len(res))
	if len(fields) == 0 {
		return out
	}
	for _, doc := range res {
		id, ok := doc[IDField].(string)
		if !ok || id == "" {
			continue
		}
		picked := make(Document, len(fields))
		for _, f := range fields {
			if v, present := doc[f]; present {
				picked[f] = v
			}
		}
		out[id] = picked
	}
	return out
}

// Highlight is unsupported: the engine stores no token positions.
func (c *Connector) Highlight(res []Document, keywords []string, field string) map[string]string {
	return map[string]string{}
}

// Aggregate is unsupported: the engine has no terms aggregation.
func (c *Connector) Aggregate(res []Document, field string) []Aggregation {
	return []Aggregation{}
}

// SQL is unsupported by this engine.
func (c *Connector) SQL(ctx context.Context, query string) ([]Document, error) {
	return nil, fmt.Errorf("%w: SQL queries", ErrUnsupported)
}

// Health reports engine liveness.
func (c *Connector) Health(ctx context.Context) bool {
	if err := c.client.Health(ctx); err != nil {
		c.logger.Warn(ctx, "engine health check failed", zap.Error(err))
		return false
	}
	return true
}

// Close releases the engine connection.
func (c *Connector) Close() error {
	return c.client.Close()
}

// collectionSchema resolves and caches the translated schema of an
// existing collection, inferring the embedding width from the stored
// vector field name.
func (c *Connector) collectionSchema(ctx context.Context, collection string) (*Schema, error) {
	c.mu.RLock()
	if s, ok := c.schemas[collection]; ok {
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	fields, err := c.client.DescribeFields(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: describing %s: %v", ErrNotFound, collection, err)
	}
	dim := 0
	for _, f := range fields {
		if d, ok := VectorFieldDim(f.Name); ok {
			dim = d
			break
		}
		if f.Type == milvus.FieldTypeFloatVector && f.Dim > 0 {
			dim = f.Dim
		}
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: collection %s has no recognizable embedding field", ErrSchema, collection)
	}
	schema, err := Translate(c.mapping, dim)
	if err != nil {
		return nil, err
	}
	c.cacheSchema(collection, schema)
	return schema, nil
}

func (c *Connector) cacheSchema(collection string, schema *Schema) {
	c.mu.Lock()
	c.schemas[collection] = schema
	c.mu.Unlock()
}

func (c *Connector) dropSchema(collection string) {
	c.mu.Lock()
	delete(c.schemas, collection)
	c.mu.Unlock()
}
