package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragstore/internal/config"
	"github.com/fyrsmithlabs/ragstore/internal/milvus"
)

func TestVectorFieldName(t *testing.T) {
	assert.Equal(t, "q_768_vec", VectorFieldName(768))
	assert.Equal(t, "q_4_vec", VectorFieldName(4))

	dim, ok := VectorFieldDim("q_1024_vec")
	require.True(t, ok)
	assert.Equal(t, 1024, dim)

	_, ok = VectorFieldDim("content_ltks")
	assert.False(t, ok)
	_, ok = VectorFieldDim("q_vec")
	assert.False(t, ok)
	_, ok = VectorFieldDim("q_0_vec")
	assert.False(t, ok)
}

func TestTranslate(t *testing.T) {
	mapping := config.DefaultFieldMapping()

	schema, err := Translate(mapping, 768)
	require.NoError(t, err)

	assert.Equal(t, "q_768_vec", schema.VectorField)
	assert.Equal(t, 768, schema.Dim)
	assert.Len(t, schema.Fields, len(mapping))

	// Primary key comes first, the rest in sorted order.
	assert.Equal(t, IDField, schema.Fields[0].Name)
	for i := 2; i < len(schema.Fields); i++ {
		assert.Less(t, schema.Fields[i-1].Name, schema.Fields[i].Name)
	}

	id, ok := schema.Field(IDField)
	require.True(t, ok)
	assert.Equal(t, KindShortText, id.Kind)
	assert.Equal(t, idMaxLength, id.MaxLength)

	content, ok := schema.Field("content_with_weight")
	require.True(t, ok)
	assert.Equal(t, KindLongText, content.Kind)
	assert.Equal(t, contentMaxLength, content.MaxLength)

	kwd, ok := schema.Field("important_kwd")
	require.True(t, ok)
	assert.Equal(t, KindKeywordList, kwd.Kind)

	pos, ok := schema.Field("position_int")
	require.True(t, ok)
	assert.Equal(t, KindIntArray, pos.Kind)

	page, ok := schema.Field("page_num_int")
	require.True(t, ok)
	assert.Equal(t, KindInt, page.Kind)
	assert.Equal(t, 0, page.MaxLength)

	ts, ok := schema.Field("create_timestamp_flt")
	require.True(t, ok)
	assert.Equal(t, KindFloat, ts.Kind)

	feas, ok := schema.Field("tag_feas")
	require.True(t, ok)
	assert.Equal(t, KindFeatureMap, feas.Kind)
}

func TestTranslateErrors(t *testing.T) {
	t.Run("empty mapping", func(t *testing.T) {
		_, err := Translate(config.FieldMapping{}, 768)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("nil mapping", func(t *testing.T) {
		_, err := Translate(nil, 768)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("non-positive width", func(t *testing.T) {
		_, err := Translate(config.DefaultFieldMapping(), 0)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("missing id field", func(t *testing.T) {
		_, err := Translate(config.FieldMapping{"content": {Type: "text"}}, 768)
		assert.ErrorIs(t, err, ErrSchema)
	})
}

func TestTranslateUnknownTypeDegrades(t *testing.T) {
	mapping := config.FieldMapping{
		"id":     {Type: "varchar"},
		"weird":  {Type: "geo_point"},
		"plain":  {},
		"doc_id": {Type: "varchar"},
	}
	schema, err := Translate(mapping, 4)
	require.NoError(t, err)

	weird, ok := schema.Field("weird")
	require.True(t, ok)
	assert.Equal(t, KindShortText, weird.Kind)
	assert.Equal(t, defaultMaxLength, weird.MaxLength)

	docID, ok := schema.Field("doc_id")
	require.True(t, ok)
	assert.Equal(t, idMaxLength, docID.MaxLength)
}

func TestTranslateExcludesEmbeddingFields(t *testing.T) {
	mapping := config.FieldMapping{
		"id":        {Type: "varchar"},
		"embedding": {Type: "varchar"},
		"q_512_vec": {Type: "varchar"},
	}
	schema, err := Translate(mapping, 128)
	require.NoError(t, err)

	require.Len(t, schema.Fields, 1)
	assert.Equal(t, "q_128_vec", schema.VectorField)
}

func TestCollectionSpec(t *testing.T) {
	schema, err := Translate(config.DefaultFieldMapping(), 16)
	require.NoError(t, err)

	spec := schema.CollectionSpec("ragflow_t1_kb1", "test")
	assert.Equal(t, "ragflow_t1_kb1", spec.Name)
	assert.True(t, spec.EnableDynamicField)

	// The embedding field is the last one.
	last := spec.Fields[len(spec.Fields)-1]
	assert.Equal(t, "q_16_vec", last.Name)
	assert.Equal(t, milvus.FieldTypeFloatVector, last.Type)
	assert.Equal(t, 16, last.Dim)

	first := spec.Fields[0]
	assert.Equal(t, IDField, first.Name)
	assert.True(t, first.PrimaryKey)
	assert.Equal(t, milvus.FieldTypeVarChar, first.Type)

	var pageField milvus.FieldSpec
	for _, f := range spec.Fields {
		if f.Name == "page_num_int" {
			pageField = f
		}
	}
	assert.Equal(t, milvus.FieldTypeInt32, pageField.Type)
}

func TestSchemaFieldNames(t *testing.T) {
	schema, err := Translate(config.DefaultFieldMapping(), 8)
	require.NoError(t, err)

	scalar := schema.FieldNames(false)
	assert.Len(t, scalar, len(schema.Fields))
	assert.NotContains(t, scalar, "q_8_vec")

	all := schema.FieldNames(true)
	assert.Equal(t, "q_8_vec", all[len(all)-1])
}
