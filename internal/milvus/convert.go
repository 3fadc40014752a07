package milvus

import (
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
)

// rowsToColumns converts row-oriented input into the typed columns the
// engine's insert API expects, using the collection schema for types.
func rowsToColumns(fields []FieldSpec, rows []Row) ([]column.Column, error) {
	cols := make([]column.Column, 0, len(fields))
	for _, f := range fields {
		switch f.Type {
		case FieldTypeVarChar:
			vals := make([]string, len(rows))
			for i, row := range rows {
				v, err := asString(row[f.Name])
				if err != nil {
					return nil, fmt.Errorf("field %q row %d: %w", f.Name, i, err)
				}
				vals[i] = v
			}
			cols = append(cols, column.NewColumnVarChar(f.Name, vals))

		case FieldTypeInt32:
			vals := make([]int32, len(rows))
			for i, row := range rows {
				v, err := asInt64(row[f.Name])
				if err != nil {
					return nil, fmt.Errorf("field %q row %d: %w", f.Name, i, err)
				}
				vals[i] = int32(v)
			}
			cols = append(cols, column.NewColumnInt32(f.Name, vals))

		case FieldTypeInt64:
			vals := make([]int64, len(rows))
			for i, row := range rows {
				v, err := asInt64(row[f.Name])
				if err != nil {
					return nil, fmt.Errorf("field %q row %d: %w", f.Name, i, err)
				}
				vals[i] = v
			}
			cols = append(cols, column.NewColumnInt64(f.Name, vals))

		case FieldTypeFloat:
			vals := make([]float32, len(rows))
			for i, row := range rows {
				v, err := asFloat64(row[f.Name])
				if err != nil {
					return nil, fmt.Errorf("field %q row %d: %w", f.Name, i, err)
				}
				vals[i] = float32(v)
			}
			cols = append(cols, column.NewColumnFloat(f.Name, vals))

		case FieldTypeDouble:
			vals := make([]float64, len(rows))
			for i, row := range rows {
				v, err := asFloat64(row[f.Name])
				if err != nil {
					return nil, fmt.Errorf("field %q row %d: %w", f.Name, i, err)
				}
				vals[i] = v
			}
			cols = append(cols, column.NewColumnDouble(f.Name, vals))

		case FieldTypeFloatVector:
			vals := make([][]float32, len(rows))
			for i, row := range rows {
				v, err := asVector(row[f.Name])
				if err != nil {
					return nil, fmt.Errorf("field %q row %d: %w", f.Name, i, err)
				}
				vals[i] = v
			}
			cols = append(cols, column.NewColumnFloatVector(f.Name, f.Dim, vals))

		default:
			return nil, fmt.Errorf("unsupported field type %q for field %q", f.Type, f.Name)
		}
	}
	return cols, nil
}

// resultSetToRows converts columnar query output back into rows.
func resultSetToRows(count int, cols []column.Column) ([]Row, error) {
	rows := make([]Row, 0, count)
	for i := 0; i < count; i++ {
		row := make(Row, len(cols))
		for _, col := range cols {
			v, err := col.Get(i)
			if err != nil {
				return nil, fmt.Errorf("column %q index %d: %w", col.Name(), i, err)
			}
			row[col.Name()] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func asString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

func asInt64(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case float32:
		return int64(val), nil
	case float64:
		return int64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

func asVector(v any) ([]float32, error) {
	switch val := v.(type) {
	case []float32:
		return val, nil
	case []float64:
		out := make([]float32, len(val))
		for i, f := range val {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(val))
		for i, e := range val {
			f, err := asFloat64(e)
			if err != nil {
				return nil, err
			}
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to vector", v)
	}
}
