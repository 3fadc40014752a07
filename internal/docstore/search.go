package docstore

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragstore/internal/milvus"
)

// Search fans one request out across the cross-product of index names
// and knowledge bases, runs an ANN search per collection and query
// vector, and merges the decoded results.
//
// The engine paginates only via limit, so offset+limit rows are fetched
// per collection and the page is sliced client-side. When more than one
// collection contributes, results are re-sorted globally by score before
// trimming, since per-collection ordering does not compose.
func (c *Connector) Search(ctx context.Context, req SearchRequest) ([]Document, error) {
	if len(req.IndexNames) == 0 {
		return nil, fmt.Errorf("search requires at least one index name")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	if conditionSelectsNothing(req.Condition) {
		return []Document{}, nil
	}
	expr, err := BuildFilter(req.Condition)
	if err != nil {
		return nil, err
	}
	if req.MatchText != "" {
		c.logger.Warn(ctx, "text match requested but engine has no token search; matching on vectors only")
	}

	collections := c.searchTargets(ctx, req.IndexNames, req.KBIDs)
	if len(collections) == 0 {
		return []Document{}, nil
	}

	results := make([]Document, 0, limit*len(collections))
	for _, collection := range collections {
		docs, err := c.searchCollection(ctx, collection, req, expr, limit)
		if err != nil {
			return nil, err
		}
		results = append(results, docs...)
	}

	if len(collections) > 1 {
		c.sortByScore(results)
		if len(results) > limit {
			results = results[:limit]
		}
	}
	return results, nil
}

// searchTargets resolves the index/kb cross-product to existing
// collections, skipping absent ones.
func (c *Connector) searchTargets(ctx context.Context, indexNames, kbIDs []string) []string {
	if len(kbIDs) == 0 {
		kbIDs = []string{""}
	}
	var collections []string
	for _, indexName := range indexNames {
		for _, kbID := range kbIDs {
			collection, err := CollectionID(indexName, kbID)
			if err != nil {
				c.logger.Warn(ctx, "skipping unroutable search target",
					zap.String("index", indexName), zap.String("kb", kbID), zap.Error(err))
				continue
			}
			exists, err := c.client.HasCollection(ctx, collection)
			if err != nil || !exists {
				c.logger.Debug(ctx, "skipping absent collection", zap.String("collection", collection))
				continue
			}
			collections = append(collections, collection)
		}
	}
	return collections
}

func (c *Connector) searchCollection(ctx context.Context, collection string, req SearchRequest, expr string, limit int) ([]Document, error) {
	schema, err := c.collectionSchema(ctx, collection)
	if err != nil {
		c.logger.Warn(ctx, "skipping collection with unreadable schema",
			zap.String("collection", collection), zap.Error(err))
		return nil, nil
	}
	outputFields := c.selectFields(schema, req.SelectFields)
	params := milvus.SearchParams{NProbe: c.indexCfg.NProbe, Ef: c.indexCfg.Ef}

	// Pure filter query when no vectors were supplied.
	if len(req.Vectors) == 0 {
		rows, err := c.client.Query(ctx, collection, expr, outputFields, req.Offset, limit)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", collection, err)
		}
		docs := make([]Document, 0, len(rows))
		for _, row := range rows {
			docs = append(docs, Decode(row, schema, outputFields))
		}
		return docs, nil
	}

	var docs []Document
	for _, vector := range req.Vectors {
		if len(vector) != schema.Dim {
			return nil, fmt.Errorf("%w: query vector has width %d, collection %s expects %d",
				ErrVectorWidth, len(vector), collection, schema.Dim)
		}
		hits, err := c.client.Search(ctx, collection, schema.VectorField, vector, expr, outputFields, req.Offset+limit, params)
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", collection, err)
		}
		if req.Offset >= len(hits) {
			continue
		}
		for _, hit := range hits[req.Offset:] {
			doc := Decode(hit.Row, schema, outputFields)
			doc[ScoreField] = hit.Score
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// selectFields resolves the requested projection against the schema. The
// id field is always included so results stay addressable.
func (c *Connector) selectFields(schema *Schema, requested []string) []string {
	if len(requested) == 0 {
		return schema.FieldNames(false)
	}
	seen := make(map[string]bool, len(requested)+1)
	fields := make([]string, 0, len(requested)+1)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	add(IDField)
	for _, name := range requested {
		if name == "*" {
			return schema.FieldNames(false)
		}
		if _, ok := schema.Field(name); ok {
			add(name)
		}
	}
	return fields
}

// sortByScore orders merged results best-first for the configured
// metric: ascending for L2 distance, descending for IP and COSINE
// similarity. The sort is stable so per-collection order breaks ties.
func (c *Connector) sortByScore(docs []Document) {
	ascending := c.indexCfg.MetricType == "L2"
	sort.SliceStable(docs, func(i, j int) bool {
		si, oki := docs[i][ScoreField].(float32)
		sj, okj := docs[j][ScoreField].(float32)
		if !oki || !okj {
			return oki && !okj
		}
		if ascending {
			return si < sj
		}
		return si > sj
	})
}
