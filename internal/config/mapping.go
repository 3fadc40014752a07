package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// FieldMapping is the abstract field-mapping document: field name to
// declared type, default value, and optional length. It is loaded once at
// startup and handed to the schema translator as an opaque structure.
type FieldMapping map[string]FieldDef

// FieldDef describes one mapped field.
//
// Recognized types: varchar, text, integer, float, keyword-list,
// int-array, feature-map. Unrecognized types degrade to a bounded
// varchar at schema translation time.
type FieldDef struct {
	Type      string `koanf:"type"`
	Default   any    `koanf:"default"`
	MaxLength int    `koanf:"max_length"`
}

// LoadMapping reads a field-mapping YAML document from disk.
func LoadMapping(path string) (FieldMapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return ParseMapping(raw)
}

// ParseMapping parses a field-mapping YAML document.
func ParseMapping(raw []byte) (FieldMapping, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse mapping: %w", err)
	}

	mapping := FieldMapping{}
	if err := k.Unmarshal("", &mapping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mapping: %w", err)
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("mapping document is empty")
	}
	return mapping, nil
}

// DefaultFieldMapping returns the built-in mapping for chunk documents.
// Deployments override it with mapping.path in the config file.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		"id":                   {Type: "varchar", Default: ""},
		"kb_id":                {Type: "varchar", Default: ""},
		"doc_id":               {Type: "varchar", Default: ""},
		"docnm_kwd":            {Type: "varchar", Default: ""},
		"title_tks":            {Type: "varchar", Default: ""},
		"content_ltks":         {Type: "text", Default: ""},
		"content_with_weight":  {Type: "text", Default: ""},
		"important_kwd":        {Type: "keyword-list", Default: ""},
		"question_tks":         {Type: "varchar", Default: ""},
		"position_int":         {Type: "int-array", Default: ""},
		"page_num_int":         {Type: "integer", Default: 0},
		"top_int":              {Type: "integer", Default: 0},
		"available_int":        {Type: "integer", Default: 1},
		"tag_feas":             {Type: "feature-map", Default: ""},
		"create_timestamp_flt": {Type: "float", Default: 0.0},
	}
}
