package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

// GRPCClient implements the Client interface using Milvus's official Go client.
type GRPCClient struct {
	client *milvusclient.Client
	config *ClientConfig
	logger *logging.Logger

	mu      sync.RWMutex
	schemas map[string][]FieldSpec
}

// ClientConfig configures the Milvus gRPC client.
type ClientConfig struct {
	// Address is the Milvus gRPC endpoint, host:port.
	// Default: "localhost:19530"
	Address string

	// Username and Password authenticate against a secured deployment.
	// Leave empty for local development.
	Username string
	Password string

	// Database selects the database the client operates in. Empty uses
	// the server default; UseDatabase can switch later.
	Database string

	// DialTimeout is the timeout for establishing connection.
	// Default: 5 seconds
	DialTimeout time.Duration

	// RequestTimeout is the default timeout for individual requests.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// RetryAttempts bounds connection attempts and per-operation retries
	// for transient failures.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the fixed wait between connection attempts.
	// Default: 2 seconds
	RetryBackoff time.Duration

	// ConsistencyLevel for reads: Strong, Bounded, or Eventually.
	// Default: Bounded
	ConsistencyLevel string
}

// DefaultClientConfig returns sensible defaults for local development.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Address:          "localhost:19530",
		DialTimeout:      5 * time.Second,
		RequestTimeout:   30 * time.Second,
		RetryAttempts:    3,
		RetryBackoff:     2 * time.Second,
		ConsistencyLevel: "Bounded",
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *ClientConfig) ApplyDefaults() {
	defaults := DefaultClientConfig()

	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaults.RetryAttempts
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	if c.ConsistencyLevel == "" {
		c.ConsistencyLevel = defaults.ConsistencyLevel
	}
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	switch c.ConsistencyLevel {
	case "Strong", "Bounded", "Eventually":
	default:
		return fmt.Errorf("invalid consistency level: %q", c.ConsistencyLevel)
	}
	return nil
}

// NewGRPCClient creates a new Milvus gRPC client.
//
// The connection is attempted up to RetryAttempts+1 times with a fixed
// backoff; exhausting the attempts is the only unrecoverable startup
// failure the connector surfaces.
func NewGRPCClient(ctx context.Context, config *ClientConfig, logger *logging.Logger) (*GRPCClient, error) {
	if config == nil {
		config = DefaultClientConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var (
		cli     *milvusclient.Client
		lastErr error
	)
	for attempt := 0; attempt <= config.RetryAttempts; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
		cli, lastErr = milvusclient.New(dialCtx, &milvusclient.ClientConfig{
			Address:  config.Address,
			Username: config.Username,
			Password: config.Password,
			DBName:   config.Database,
		})
		cancel()
		if lastErr == nil {
			break
		}

		logger.Warn(ctx, "milvus connection attempt failed",
			zap.String("address", config.Address),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", config.RetryAttempts+1),
			zap.Error(lastErr),
		)

		if attempt == config.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connection canceled: %w", ctx.Err())
		case <-time.After(config.RetryBackoff):
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s after %d attempts: %w",
			config.Address, config.RetryAttempts+1, lastErr)
	}

	logger.Info(ctx, "milvus connection established",
		zap.String("address", config.Address),
	)

	return &GRPCClient{
		client:  cli,
		config:  config,
		logger:  logger,
		schemas: make(map[string][]FieldSpec),
	}, nil
}

// CreateDatabase creates a database, treating "already exists" as success.
func (c *GRPCClient) CreateDatabase(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	return c.retryOperation(ctx, func() error {
		err := c.client.CreateDatabase(ctx, milvusclient.NewCreateDatabaseOption(name))
		if err != nil && isAlreadyExists(err) {
			return nil
		}
		return err
	})
}

// HasDatabase reports whether a database exists.
func (c *GRPCClient) HasDatabase(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var exists bool
	err := c.retryOperation(ctx, func() error {
		names, err := c.client.ListDatabase(ctx, milvusclient.NewListDatabaseOption())
		if err != nil {
			return err
		}
		for _, n := range names {
			if n == name {
				exists = true
				return nil
			}
		}
		exists = false
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UseDatabase switches the client to the given database.
func (c *GRPCClient) UseDatabase(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	return c.retryOperation(ctx, func() error {
		return c.client.UseDatabase(ctx, milvusclient.NewUseDatabaseOption(name))
	})
}

// CreateCollection creates a collection with the given schema.
func (c *GRPCClient) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	schema := entity.NewSchema().
		WithName(spec.Name).
		WithDescription(spec.Description).
		WithDynamicFieldEnabled(spec.EnableDynamicField)
	for _, f := range spec.Fields {
		field := entity.NewField().
			WithName(f.Name).
			WithDescription(f.Description)
		switch f.Type {
		case FieldTypeVarChar:
			field = field.WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(f.MaxLength))
		case FieldTypeInt32:
			field = field.WithDataType(entity.FieldTypeInt32)
		case FieldTypeInt64:
			field = field.WithDataType(entity.FieldTypeInt64)
		case FieldTypeFloat:
			field = field.WithDataType(entity.FieldTypeFloat)
		case FieldTypeDouble:
			field = field.WithDataType(entity.FieldTypeDouble)
		case FieldTypeFloatVector:
			field = field.WithDataType(entity.FieldTypeFloatVector).WithDim(int64(f.Dim))
		default:
			return fmt.Errorf("unsupported field type %q for field %q", f.Type, f.Name)
		}
		if f.PrimaryKey {
			field = field.WithIsPrimaryKey(true).WithIsAutoID(false)
		}
		schema = schema.WithField(field)
	}

	err := c.retryOperation(ctx, func() error {
		return c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(spec.Name, schema))
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.schemas[spec.Name] = spec.Fields
	c.mu.Unlock()
	return nil
}

// DropCollection deletes a collection and all its rows.
func (c *GRPCClient) DropCollection(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	err := c.retryOperation(ctx, func() error {
		return c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name))
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.schemas, name)
	c.mu.Unlock()
	return nil
}

// HasCollection checks if a collection exists.
func (c *GRPCClient) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var exists bool
	err := c.retryOperation(ctx, func() error {
		has, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = has
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListCollections returns all collection names in the current database.
func (c *GRPCClient) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var names []string
	err := c.retryOperation(ctx, func() error {
		result, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
		if err != nil {
			return err
		}
		names = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DescribeFields returns the schema fields of a collection.
func (c *GRPCClient) DescribeFields(ctx context.Context, collection string) ([]FieldSpec, error) {
	c.mu.RLock()
	cached, ok := c.schemas[collection]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var fields []FieldSpec
	err := c.retryOperation(ctx, func() error {
		coll, err := c.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(collection))
		if err != nil {
			return err
		}
		fields = fields[:0]
		for _, f := range coll.Schema.Fields {
			spec := FieldSpec{
				Name:        f.Name,
				PrimaryKey:  f.PrimaryKey,
				Description: f.Description,
			}
			switch f.DataType {
			case entity.FieldTypeVarChar:
				spec.Type = FieldTypeVarChar
				if v, ok := f.TypeParams[entity.TypeParamMaxLength]; ok {
					spec.MaxLength, _ = strconv.Atoi(v)
				}
			case entity.FieldTypeInt32:
				spec.Type = FieldTypeInt32
			case entity.FieldTypeInt64:
				spec.Type = FieldTypeInt64
			case entity.FieldTypeFloat:
				spec.Type = FieldTypeFloat
			case entity.FieldTypeDouble:
				spec.Type = FieldTypeDouble
			case entity.FieldTypeFloatVector:
				spec.Type = FieldTypeFloatVector
				if v, ok := f.TypeParams[entity.TypeParamDim]; ok {
					spec.Dim, _ = strconv.Atoi(v)
				}
			default:
				return fmt.Errorf("unsupported field type %v for field %q", f.DataType, f.Name)
			}
			fields = append(fields, spec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.schemas[collection] = fields
	c.mu.Unlock()
	return fields, nil
}

// CreateVectorIndex builds the ANN index on the embedding field.
func (c *GRPCClient) CreateVectorIndex(ctx context.Context, collection, field string, params IndexParams) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	metric := index.MetricType(params.MetricType)
	var idx index.Index
	switch params.IndexType {
	case "HNSW":
		idx = index.NewHNSWIndex(metric, params.M, params.EfConstruction)
	case "IVF_FLAT":
		idx = index.NewIvfFlatIndex(metric, params.NList)
	default:
		idx = index.NewAutoIndex(metric)
	}

	return c.retryOperation(ctx, func() error {
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(collection, field, idx))
		if err != nil {
			return err
		}
		return task.Await(ctx)
	})
}

// LoadCollection loads a collection into memory so it becomes servable.
func (c *GRPCClient) LoadCollection(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	return c.retryOperation(ctx, func() error {
		task, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
		if err != nil {
			return err
		}
		return task.Await(ctx)
	})
}

// RowCount returns the engine-reported row count of a collection.
func (c *GRPCClient) RowCount(ctx context.Context, collection string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var count int64
	err := c.retryOperation(ctx, func() error {
		stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
		if err != nil {
			return err
		}
		raw, ok := stats["row_count"]
		if !ok {
			count = 0
			return nil
		}
		count, err = strconv.ParseInt(raw, 10, 64)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Insert writes rows into a collection. All rows must carry values for the
// collection's schema fields; the codec upstream guarantees this.
func (c *GRPCClient) Insert(ctx context.Context, collection string, rows []Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	fields, err := c.DescribeFields(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve schema for %s: %w", collection, err)
	}

	cols, err := rowsToColumns(fields, rows)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var inserted int64
	err = c.retryOperation(ctx, func() error {
		res, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...))
		if err != nil {
			return err
		}
		inserted = res.InsertCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Delete removes rows matching the filter expression and returns the
// engine-reported deleted-row count.
func (c *GRPCClient) Delete(ctx context.Context, collection, expr string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var deleted int64
	err := c.retryOperation(ctx, func() error {
		res, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr))
		if err != nil {
			return err
		}
		deleted = res.DeleteCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Query runs a scalar filter query and returns matching rows.
func (c *GRPCClient) Query(ctx context.Context, collection, expr string, outputFields []string, offset, limit int) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	opt := milvusclient.NewQueryOption(collection).
		WithFilter(expr).
		WithOutputFields(outputFields...).
		WithConsistencyLevel(c.consistencyLevel())
	if offset > 0 {
		opt = opt.WithOffset(offset)
	}
	if limit > 0 {
		opt = opt.WithLimit(limit)
	}

	var rows []Row
	err := c.retryOperation(ctx, func() error {
		rs, err := c.client.Query(ctx, opt)
		if err != nil {
			return err
		}
		rows, err = resultSetToRows(rs.ResultCount, rs.Fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Search performs ANN search on the embedding field.
func (c *GRPCClient) Search(ctx context.Context, collection, vectorField string, vector []float32, expr string, outputFields []string, topK int, params SearchParams) ([]Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(vectorField).
		WithOutputFields(outputFields...).
		WithConsistencyLevel(c.consistencyLevel())
	if expr != "" {
		opt = opt.WithFilter(expr)
	}
	if params.NProbe > 0 {
		opt = opt.WithSearchParam("nprobe", strconv.Itoa(params.NProbe))
	}
	if params.Ef > 0 {
		opt = opt.WithSearchParam("ef", strconv.Itoa(params.Ef))
	}

	var hits []Hit
	err := c.retryOperation(ctx, func() error {
		results, err := c.client.Search(ctx, opt)
		if err != nil {
			return err
		}
		hits = hits[:0]
		for _, rs := range results {
			rows, err := resultSetToRows(rs.ResultCount, rs.Fields)
			if err != nil {
				return err
			}
			for i, row := range rows {
				if rs.IDs != nil {
					if id, err := rs.IDs.Get(i); err == nil {
						row[rs.IDs.Name()] = id
					}
				}
				hits = append(hits, Hit{Row: row, Score: rs.Scores[i]})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// Flush forces buffered writes to disk so subsequent reads observe them.
func (c *GRPCClient) Flush(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	return c.retryOperation(ctx, func() error {
		task, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
		if err != nil {
			return err
		}
		return task.Await(ctx)
	})
}

// Health performs a lightweight listing call against the engine.
func (c *GRPCClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	_, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close closes the client connection.
func (c *GRPCClient) Close() error {
	if c.client != nil {
		return c.client.Close(context.Background())
	}
	return nil
}

func (c *GRPCClient) consistencyLevel() entity.ConsistencyLevel {
	switch c.config.ConsistencyLevel {
	case "Strong":
		return entity.ClStrong
	case "Eventually":
		return entity.ClEventually
	default:
		return entity.ClBounded
	}
}

// retryOperation retries an operation with exponential backoff.
func (c *GRPCClient) retryOperation(ctx context.Context, operation func() error) error {
	var lastErr error
	backoff := time.Second
	startTime := time.Now()

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				c.logger.Info(ctx, "operation recovered after retries",
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(startTime)),
				)
			}
			return nil
		}

		lastErr = err

		if !isTransientError(err) {
			return err
		}

		if attempt == c.config.RetryAttempts {
			break
		}

		c.logger.Debug(ctx, "retrying operation after transient error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.config.RetryAttempts),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

// isTransientError checks if an error is transient and should be retried.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// isAlreadyExists matches the engine's duplicate-create failure so racing
// creators can treat it as success.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exist")
}

// Ensure GRPCClient implements Client interface
var _ Client = (*GRPCClient)(nil)
