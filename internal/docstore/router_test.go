package docstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionID(t *testing.T) {
	tests := []struct {
		name      string
		indexName string
		kbID      string
		want      string
		wantErr   bool
	}{
		{
			name:      "index and kb joined",
			indexName: "ragflow_tenant1",
			kbID:      "kb42",
			want:      "ragflow_tenant1_kb42",
		},
		{
			name:      "hyphens become underscores",
			indexName: "ragflow-abc",
			kbID:      "kb-main",
			want:      "ragflow_abc_kb_main",
		},
		{
			name:      "uuid knowledge base id",
			indexName: "ragflow_t1",
			kbID:      "3f2a1b9c-77aa-4e0d-9f10-aabbccddeeff",
			want:      "ragflow_t1_3f2a1b9c_77aa_4e0d_9f10_aabbccddeeff",
		},
		{
			name:      "empty kb treats index as fully qualified",
			indexName: "ragflow_t1_kb42",
			kbID:      "",
			want:      "ragflow_t1_kb42",
		},
		{
			name:      "empty everything rejected",
			indexName: "",
			kbID:      "",
			wantErr:   true,
		},
		{
			name:      "overlong name rejected",
			indexName: strings.Repeat("a", 300),
			kbID:      "kb",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CollectionID(tt.indexName, tt.kbID)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectionIDInjectiveOverRealisticPairs(t *testing.T) {
	// One index name per tenant, UUID knowledge base ids: the corpus the
	// surrounding system actually issues.
	indexes := []string{"ragflow_tenant1", "ragflow_tenant2", "ragflow_3f2a1b9c77aa4e0d"}
	kbs := []string{
		"3f2a1b9c-77aa-4e0d-9f10-aabbccddeeff",
		"00000000-0000-0000-0000-000000000001",
		"d94cb92c-aa11-bb22-cc33-0123456789ab",
	}

	seen := map[string]string{}
	for _, index := range indexes {
		for _, kb := range kbs {
			name, err := CollectionID(index, kb)
			require.NoError(t, err)
			pair := index + "|" + kb
			if prev, dup := seen[name]; dup {
				t.Fatalf("pairs %s and %s both derive %s", prev, pair, name)
			}
			seen[name] = pair
		}
	}
}

func TestCollectionIDJoinAmbiguity(t *testing.T) {
	// The separator is not escaped, so adversarial pairs can collide.
	// This is accepted: upstream ids never place an underscore or hyphen
	// at the join boundary. The test pins the behavior so a change to
	// the derivation is a conscious one.
	a, err := CollectionID("ragflow_ab", "cd")
	require.NoError(t, err)
	b, err := CollectionID("ragflow", "ab-cd")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		tenant  string
		want    string
		wantErr bool
	}{
		{
			name:   "prefix and tenant",
			prefix: "rag",
			tenant: "tenant1",
			want:   "rag_tenant1",
		},
		{
			name:   "empty prefix falls back",
			prefix: "",
			tenant: "tenant1",
			want:   "rag_tenant1",
		},
		{
			name:   "special characters sanitized",
			prefix: "rag",
			tenant: "acme.corp/eu",
			want:   "rag_acme_corp_eu",
		},
		{
			name:    "overlong database name rejected",
			prefix:  "rag",
			tenant:  strings.Repeat("t", 100),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DatabaseName(tt.prefix, tt.tenant)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
