package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/ragstore/internal/milvus"
)

const (
	keywordSeparator = "###"
	hexGroupWidth    = 8
)

// Encode transforms an abstract document into an engine row matching the
// schema. It resolves the embedding, applies per-kind transforms, fills
// declared defaults for absent fields, and stamps the knowledge base id.
func Encode(doc Document, schema *Schema, kbID string) (milvus.Row, error) {
	vec, err := resolveEmbedding(doc, schema)
	if err != nil {
		return nil, err
	}

	row := make(milvus.Row, len(schema.Fields)+1)
	for _, f := range schema.Fields {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			if f.Default != nil {
				v = f.Default
			} else {
				v = zeroValue(f.Kind)
			}
		}
		encoded, err := encodeValue(v, f.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		row[f.Name] = encoded
	}
	if kbID != "" {
		if _, ok := schema.Field(KBIDField); ok {
			row[KBIDField] = kbID
		}
	}
	row[schema.VectorField] = vec
	return row, nil
}

func resolveEmbedding(doc Document, schema *Schema) ([]float32, error) {
	raw, ok := doc[schema.VectorField]
	if !ok {
		raw, ok = doc[EmbeddingKey]
	}
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: document %v has no %q value", ErrMissingVector, doc[IDField], schema.VectorField)
	}
	vec, err := toFloat32Slice(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingVector, err)
	}
	if len(vec) != schema.Dim {
		return nil, fmt.Errorf("%w: document %v has width %d, collection expects %d",
			ErrVectorWidth, doc[IDField], len(vec), schema.Dim)
	}
	return vec, nil
}

func toFloat32Slice(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case []float32:
		return v, nil
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(v))
		for i, e := range v {
			f, ok := e.(float64)
			if !ok {
				f32, ok32 := e.(float32)
				if !ok32 {
					return nil, fmt.Errorf("embedding element %d has type %T", i, e)
				}
				out[i] = f32
				continue
			}
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("embedding has type %T", raw)
	}
}

func zeroValue(kind FieldKind) any {
	switch kind {
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindKeywordList:
		return []string{}
	case KindIntArray:
		return []int{}
	case KindFeatureMap:
		return map[string]any{}
	default:
		return ""
	}
}

func encodeValue(v any, kind FieldKind) (any, error) {
	switch kind {
	case KindInt:
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case KindFloat:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case KindKeywordList:
		return encodeKeywords(v)
	case KindIntArray:
		return encodeIntArray(v)
	case KindFeatureMap:
		return encodeFeatureMap(v)
	default:
		return toText(v), nil
	}
}

func encodeKeywords(v any) (string, error) {
	switch kw := v.(type) {
	case string:
		return kw, nil
	case []string:
		return strings.Join(kw, keywordSeparator), nil
	case []any:
		parts := make([]string, len(kw))
		for i, e := range kw {
			parts[i] = toText(e)
		}
		return strings.Join(parts, keywordSeparator), nil
	default:
		return "", fmt.Errorf("keyword list has type %T", v)
	}
}

// encodeIntArray packs integers as fixed-width hex groups. Nested arrays
// are flattened; values outside the packable range fall back to a JSON
// encoding so nothing is silently truncated.
func encodeIntArray(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	ints, ok := flattenInts(v)
	if !ok {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("int array has type %T: %w", v, err)
		}
		return string(raw), nil
	}
	parts := make([]string, len(ints))
	for i, n := range ints {
		if n < 0 || n > 0xFFFFFFFF {
			raw, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(raw), nil
		}
		parts[i] = fmt.Sprintf("%0*x", hexGroupWidth, n)
	}
	return strings.Join(parts, "_"), nil
}

func flattenInts(v any) ([]int64, bool) {
	switch vv := v.(type) {
	case []int:
		out := make([]int64, len(vv))
		for i, n := range vv {
			out[i] = int64(n)
		}
		return out, true
	case []int64:
		return vv, true
	case []any:
		var out []int64
		for _, e := range vv {
			if nested, ok := flattenInts(e); ok {
				out = append(out, nested...)
				continue
			}
			n, err := toInt(e)
			if err != nil {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	case [][]int:
		var out []int64
		for _, inner := range vv {
			for _, n := range inner {
				out = append(out, int64(n))
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func encodeFeatureMap(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("feature map has type %T: %w", v, err)
	}
	return string(raw), nil
}

func toText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("value %v has type %T, want integer", v, v)
	}
}

func toFloat(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case int:
		return float64(f), nil
	case int32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	case string:
		return strconv.ParseFloat(f, 64)
	default:
		return 0, fmt.Errorf("value %v has type %T, want float", v, v)
	}
}

// Decode transforms an engine row back into an abstract document,
// inverting the per-kind transforms for the requested fields. Malformed
// stored values degrade to the raw string rather than failing the read.
func Decode(row milvus.Row, schema *Schema, fields []string) Document {
	if fields == nil {
		fields = schema.FieldNames(false)
	}
	doc := make(Document, len(fields))
	for _, name := range fields {
		raw, ok := row[name]
		if !ok {
			continue
		}
		f, known := schema.Field(name)
		if !known {
			doc[name] = raw
			continue
		}
		doc[name] = decodeValue(raw, f.Kind)
	}
	if vec, ok := row[schema.VectorField]; ok {
		doc[schema.VectorField] = vec
	}
	return doc
}

func decodeValue(raw any, kind FieldKind) any {
	switch kind {
	case KindKeywordList:
		s, ok := raw.(string)
		if !ok {
			return raw
		}
		if s == "" {
			return []string{}
		}
		return strings.Split(s, keywordSeparator)
	case KindIntArray:
		s, ok := raw.(string)
		if !ok {
			return raw
		}
		return decodeIntArray(s)
	case KindFeatureMap:
		s, ok := raw.(string)
		if !ok {
			return raw
		}
		return decodeFeatureMap(s)
	default:
		return raw
	}
}

func decodeIntArray(s string) any {
	if s == "" {
		return []int{}
	}
	if strings.HasPrefix(s, "[") {
		var out any
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
		return s
	}
	parts := strings.Split(s, "_")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if len(p) != hexGroupWidth {
			return s
		}
		n, err := strconv.ParseInt(p, 16, 64)
		if err != nil {
			return s
		}
		out = append(out, int(n))
	}
	return out
}

func decodeFeatureMap(s string) any {
	if s == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}
