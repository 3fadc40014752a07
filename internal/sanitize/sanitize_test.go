package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "already valid",
			input:    "ragflow_d94cb92c",
			expected: "ragflow_d94cb92c",
		},
		{
			name:     "hyphens replaced",
			input:    "kb-aa11-bb22",
			expected: "kb_aa11_bb22",
		},
		{
			name:     "case preserved",
			input:    "Chunks-KB",
			expected: "Chunks_KB",
		},
		{
			name:     "dots and slashes replaced",
			input:    "tenant.one/two",
			expected: "tenant_one_two",
		},
		{
			name:     "leading digit prefixed",
			input:    "42kb",
			expected: "_42kb",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
		{
			name:     "unicode replaced",
			input:    "kbétest",
			expected: "kb_test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Identifier(tt.input))
		})
	}
}

func TestIdentifier_Injective(t *testing.T) {
	// Realistic id corpus: index names like ragflow_<uid> and hyphenated
	// uuid-ish knowledge base ids. No two distinct inputs may collide.
	corpus := []string{
		"ragflow_d94cb92c5c3711ef",
		"ragflow_e21ab83d5c3711ef",
		"kb-0001", "kb-0002", "kb-000-2", "kb-00-02",
		"6e19b4cc5c3711efa6b2maca",
		"6e19b4cc-5c37-11ef-a6b2-maca",
	}

	seen := map[string]string{}
	for _, id := range corpus {
		got := Identifier(id)
		if prev, ok := seen[got]; ok {
			t.Errorf("collision: %q and %q both sanitize to %q", prev, id, got)
		}
		seen[got] = id
	}
}

func TestValidateCollection(t *testing.T) {
	require.NoError(t, ValidateCollection("ragflow_abc_kb_1"))

	err := ValidateCollection("")
	assert.ErrorIs(t, err, ErrEmptyIdentifier)

	err = ValidateCollection(strings.Repeat("a", MaxCollectionLength+1))
	assert.ErrorIs(t, err, ErrIdentifierTooLong)

	require.NoError(t, ValidateCollection(strings.Repeat("a", MaxCollectionLength)))
}

func TestValidateDatabase(t *testing.T) {
	require.NoError(t, ValidateDatabase("rag_tenant_1"))

	err := ValidateDatabase(strings.Repeat("d", MaxDatabaseLength+1))
	assert.ErrorIs(t, err, ErrIdentifierTooLong)
}
