// Package main implements the ragstore CLI for manual operations against
// a document store deployment: health probes, collection management, and
// search diagnostics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/docstore"
	"github.com/fyrsmithlabs/ragstore/internal/logging"
)

var (
	configPath string
	tenantID   string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragstore",
	Short: "CLI for document store operations",
	Long: `ragstore is a command-line interface for operating a vector document
store. It provides commands for health checks, collection management,
and search diagnostics.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: built-in defaults plus RAGSTORE_* env)")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "default", "tenant id")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(totalCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(searchCmd)
}

// commandContext decorates the cobra context with correlation data so
// every log line carries the tenant and a request id.
func commandContext(cmd *cobra.Command) context.Context {
	return logging.EnsureRequestID(logging.WithTenant(cmd.Context(), tenantID))
}

// openStore connects to the configured engine for the selected tenant.
func openStore(ctx context.Context) (docstore.Store, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	store, err := docstore.New(ctx, cfg, tenantID, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, logger, nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check document store engine health",
	Long: `Check reachability of the configured document store engine.

Examples:
  # Check health with the default config
  ragstore health

  # Check a specific deployment
  RAGSTORE_MILVUS_ADDRESS=milvus.prod:19530 ragstore health`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if !store.Health(ctx) {
		return fmt.Errorf("engine is not healthy")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

var createCmd = &cobra.Command{
	Use:   "create <index> <kb> <dim>",
	Short: "Create a collection for an index/knowledge base pair",
	Long: `Create the collection for an index and knowledge base, build its
vector index, and load it.

Examples:
  ragstore create ragflow_tenant1 kb42 768`,
	Args: cobra.ExactArgs(3),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	dim, err := strconv.Atoi(args[2])
	if err != nil || dim <= 0 {
		return fmt.Errorf("invalid embedding width %q", args[2])
	}
	ctx := commandContext(cmd)
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateIndex(ctx, args[0], args[1], dim); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s_%s (dim %d)\n", args[0], args[1], dim)
	return nil
}

var dropCmd = &cobra.Command{
	Use:   "drop <index> <kb>",
	Short: "Drop a collection",
	Long: `Drop the collection for an index and knowledge base. All documents
in it are lost.

Examples:
  ragstore drop ragflow_tenant1 kb42`,
	Args: cobra.ExactArgs(2),
	RunE: runDrop,
}

func runDrop(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DropIndex(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dropped %s_%s\n", args[0], args[1])
	return nil
}

var totalCmd = &cobra.Command{
	Use:   "total <index> <kb>",
	Short: "Print the document count of a collection",
	Args:  cobra.ExactArgs(2),
	RunE:  runTotal,
}

func runTotal(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintln(cmd.OutOrStdout(), store.Total(ctx, args[0], args[1]))
	return nil
}

var chunksCmd = &cobra.Command{
	Use:   "chunks <index> <kb>",
	Short: "List every document id in a collection",
	Args:  cobra.ExactArgs(2),
	RunE:  runChunks,
}

func runChunks(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range store.ChunkIDs(ctx, args[0], args[1]) {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

var (
	searchLimit  int
	searchOffset int
	searchFilter []string
	searchVector string
)

var searchCmd = &cobra.Command{
	Use:   "search <index> <kb>",
	Short: "Run a diagnostic search against a collection",
	Long: `Run a search against one collection and print the results as JSON,
one document per line. Supply a query vector as comma-separated floats,
or omit it for a pure filter query.

Examples:
  # Filter query
  ragstore search ragflow_tenant1 kb42 --filter doc_id=doc1

  # Vector search
  ragstore search ragflow_tenant1 kb42 --vector 0.1,0.2,0.3 --limit 5`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	searchCmd.Flags().StringArrayVar(&searchFilter, "filter", nil, "field=value filter, repeatable")
	searchCmd.Flags().StringVar(&searchVector, "vector", "", "query vector as comma-separated floats")
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := docstore.SearchRequest{
		IndexNames: []string{args[0]},
		KBIDs:      []string{args[1]},
		Offset:     searchOffset,
		Limit:      searchLimit,
	}

	condition, err := parseFilters(searchFilter)
	if err != nil {
		return err
	}
	req.Condition = condition

	if searchVector != "" {
		vec, err := parseVector(searchVector)
		if err != nil {
			return err
		}
		req.Vectors = [][]float32{vec}
	}

	ctx := commandContext(cmd)
	store, _, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := store.Search(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, doc := range docs {
		// Raw embeddings drown the output.
		for key := range doc {
			if _, ok := docstore.VectorFieldDim(key); ok {
				delete(doc, key)
			}
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d results\n", len(docs))
	return nil
}

func parseFilters(filters []string) (map[string]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	condition := make(map[string]any, len(filters))
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, want field=value", f)
		}
		if n, err := strconv.Atoi(value); err == nil {
			condition[key] = n
			continue
		}
		condition[key] = value
	}
	return condition, nil
}

func parseVector(raw string) ([]float32, error) {
	parts := strings.Split(raw, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector element %q: %w", p, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
