package docstore

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/milvus"
)

// FieldKind is the semantic type of a mapped field. It drives both the
// engine-native column type and the codec transforms.
type FieldKind int

const (
	// KindShortText is a bounded varchar; identifiers and keyword fields.
	KindShortText FieldKind = iota
	// KindLongText is a varchar at the engine's maximum length; free text.
	KindLongText
	// KindInt is a 32-bit integer.
	KindInt
	// KindFloat is a 32-bit float.
	KindFloat
	// KindKeywordList is a list of keywords stored as one joined varchar.
	KindKeywordList
	// KindIntArray is a (possibly nested) integer array stored as
	// fixed-width hex groups in one varchar.
	KindIntArray
	// KindFeatureMap is a feature map stored as compact JSON in one
	// varchar.
	KindFeatureMap
)

// Varchar length tiers.
const (
	idMaxLength      = 255
	defaultMaxLength = 1024
	// contentMaxLength is the engine's varchar ceiling.
	contentMaxLength = 65535
)

// Field is one scalar field of a translated schema.
type Field struct {
	Name      string
	Kind      FieldKind
	MaxLength int
	Default   any
}

// Schema is the translated collection schema: ordered scalar fields plus
// exactly one embedding field whose name encodes its width.
type Schema struct {
	Fields      []Field
	VectorField string
	Dim         int

	byName map[string]int
}

var vectorFieldPattern = regexp.MustCompile(`^q_(\d+)_vec$`)

// VectorFieldName returns the canonical embedding field name for a
// vector width, e.g. q_768_vec.
func VectorFieldName(dim int) string {
	return fmt.Sprintf("q_%d_vec", dim)
}

// VectorFieldDim parses the width out of an embedding field name.
func VectorFieldDim(name string) (int, bool) {
	m := vectorFieldPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	dim, err := strconv.Atoi(m[1])
	if err != nil || dim <= 0 {
		return 0, false
	}
	return dim, true
}

// Translate converts the abstract field-mapping configuration into a
// collection schema for the given embedding width.
//
// Fields whose name matches the embedding naming pattern are excluded
// from the scalar schema and replaced by exactly one synthesized
// embedding field of the requested width. Unknown declared types degrade
// to a bounded varchar.
func Translate(mapping config.FieldMapping, dim int) (*Schema, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("%w: mapping configuration is missing or empty", ErrSchema)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: embedding width must be positive, got %d", ErrSchema, dim)
	}

	names := make([]string, 0, len(mapping))
	for name := range mapping {
		if name == "" {
			return nil, fmt.Errorf("%w: mapping contains a field with an empty name", ErrSchema)
		}
		if name == EmbeddingKey || vectorFieldPattern.MatchString(name) {
			// Replaced by the synthesized embedding field.
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	schema := &Schema{
		VectorField: VectorFieldName(dim),
		Dim:         dim,
		byName:      make(map[string]int, len(names)),
	}

	appendField := func(name string) {
		def := mapping[name]
		f := Field{
			Name:    name,
			Kind:    kindOf(def.Type),
			Default: def.Default,
		}
		f.MaxLength = lengthOf(name, f.Kind, def.MaxLength)
		schema.byName[name] = len(schema.Fields)
		schema.Fields = append(schema.Fields, f)
	}

	// Primary key first, then the remaining fields in sorted order.
	if _, ok := mapping[IDField]; !ok {
		return nil, fmt.Errorf("%w: mapping must declare an %q field", ErrSchema, IDField)
	}
	appendField(IDField)
	for _, name := range names {
		if name != IDField {
			appendField(name)
		}
	}

	return schema, nil
}

func kindOf(declared string) FieldKind {
	switch declared {
	case "varchar":
		return KindShortText
	case "text":
		return KindLongText
	case "integer":
		return KindInt
	case "float":
		return KindFloat
	case "keyword-list":
		return KindKeywordList
	case "int-array":
		return KindIntArray
	case "feature-map":
		return KindFeatureMap
	default:
		// No usable declared type: bounded text.
		return KindShortText
	}
}

func lengthOf(name string, kind FieldKind, declared int) int {
	switch kind {
	case KindInt, KindFloat:
		return 0
	case KindLongText, KindIntArray, KindFeatureMap:
		return contentMaxLength
	}
	if declared > 0 {
		return declared
	}
	if name == IDField || strings.HasSuffix(name, "_id") {
		return idMaxLength
	}
	return defaultMaxLength
}

// Field looks up a scalar field by name.
func (s *Schema) Field(name string) (*Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// FieldNames returns the scalar field names in schema order, optionally
// followed by the embedding field.
func (s *Schema) FieldNames(includeVector bool) []string {
	names := make([]string, 0, len(s.Fields)+1)
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	if includeVector {
		names = append(names, s.VectorField)
	}
	return names
}

// CollectionSpec renders the schema as the engine's native schema
// description.
func (s *Schema) CollectionSpec(name, description string) milvus.CollectionSpec {
	spec := milvus.CollectionSpec{
		Name:               name,
		Description:        description,
		EnableDynamicField: true,
	}
	for _, f := range s.Fields {
		fs := milvus.FieldSpec{Name: f.Name}
		switch f.Kind {
		case KindInt:
			fs.Type = milvus.FieldTypeInt32
		case KindFloat:
			fs.Type = milvus.FieldTypeFloat
		default:
			fs.Type = milvus.FieldTypeVarChar
			fs.MaxLength = f.MaxLength
		}
		if f.Name == IDField {
			fs.PrimaryKey = true
			fs.Description = "primary key chunk id"
		}
		spec.Fields = append(spec.Fields, fs)
	}
	spec.Fields = append(spec.Fields, milvus.FieldSpec{
		Name:        s.VectorField,
		Type:        milvus.FieldTypeFloatVector,
		Dim:         s.Dim,
		Description: "dense embedding",
	})
	return spec
}
