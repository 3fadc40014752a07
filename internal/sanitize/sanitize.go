// Package sanitize provides shared identifier sanitization for Milvus names.
//
// Milvus identifiers (database and collection names) must start with a letter
// or underscore and may contain only letters, digits, and underscores. This
// package ensures all identifiers conform to this requirement.
package sanitize

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxCollectionLength is the maximum length Milvus accepts for a
	// collection name.
	MaxCollectionLength = 255

	// MaxDatabaseLength is the maximum length Milvus accepts for a
	// database name.
	MaxDatabaseLength = 64
)

// Sanitization errors.
var (
	// ErrEmptyIdentifier indicates sanitization produced an empty result.
	ErrEmptyIdentifier = errors.New("identifier is empty after sanitization")

	// ErrIdentifierTooLong indicates an identifier exceeds the engine limit.
	// Long names are rejected rather than truncated: truncation risks two
	// distinct identifiers collapsing to the same physical name.
	ErrIdentifierTooLong = errors.New("identifier exceeds engine length limit")
)

// Identifier sanitizes a string for use in Milvus names.
//
// Rules applied:
//   - Replaces characters outside [A-Za-z0-9_] with underscores
//   - Prefixes a leading digit with an underscore
//
// Case is preserved: Milvus names are case-sensitive, and lowering would
// merge identifiers that differ only by case.
//
// Examples:
//
//	"ragflow_d94cb92c" -> "ragflow_d94cb92c"
//	"kb-aa11-bb22"     -> "kb_aa11_bb22"
func Identifier(s string) string {
	var result strings.Builder
	result.Grow(len(s) + 1)
	for i, r := range s {
		valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' ||
			(r >= '0' && r <= '9')
		if !valid {
			result.WriteRune('_')
			continue
		}
		if i == 0 && r >= '0' && r <= '9' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return result.String()
}

// ValidateCollection checks a sanitized collection name against Milvus limits.
func ValidateCollection(name string) error {
	return validate(name, MaxCollectionLength)
}

// ValidateDatabase checks a sanitized database name against Milvus limits.
func ValidateDatabase(name string) error {
	return validate(name, MaxDatabaseLength)
}

func validate(name string, max int) error {
	if name == "" {
		return ErrEmptyIdentifier
	}
	if len(name) > max {
		return fmt.Errorf("%w: %q is %d chars, limit %d", ErrIdentifierTooLong, name, len(name), max)
	}
	return nil
}
