package docstore

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragstore/internal/sanitize"
)

// CollectionID derives the engine collection name for an index/knowledge
// base pair. With an empty kbID the index name is treated as already
// fully qualified and only validated.
//
// The underscore separator also appears inside sanitized ids, so two
// different pairs can in principle derive the same name (for example
// ("a_b", "c") and ("a", "b_c")). The mapping is injective over the ids
// actually issued upstream: one index name per tenant joined with UUID
// knowledge base ids, whose hyphen positions are fixed.
func CollectionID(indexName, kbID string) (string, error) {
	var raw string
	if kbID == "" {
		raw = indexName
	} else {
		raw = indexName + "_" + kbID
	}
	name := sanitize.Identifier(strings.ReplaceAll(raw, "-", "_"))
	if err := sanitize.ValidateCollection(name); err != nil {
		return "", fmt.Errorf("collection name for index %q kb %q: %w", indexName, kbID, err)
	}
	return name, nil
}

// DatabaseName derives the per-tenant database name from the configured
// prefix and the tenant id.
func DatabaseName(prefix, tenant string) (string, error) {
	if prefix == "" {
		prefix = "rag"
	}
	name := sanitize.Identifier(prefix + "_" + tenant)
	if err := sanitize.ValidateDatabase(name); err != nil {
		return "", fmt.Errorf("database name for tenant %q: %w", tenant, err)
	}
	return name, nil
}
