package docstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/ragstore/internal/milvus"
)

// fakeClient is an in-memory milvus.Client with a small filter
// expression evaluator, enough to exercise the connector end to end.
type fakeClient struct {
	mu          sync.Mutex
	databases   map[string]bool
	current     string
	collections map[string]*fakeCollection

	// failOn injects an error into the named method.
	failOn map[string]error
	closed bool
}

type fakeCollection struct {
	spec    milvus.CollectionSpec
	rows    []milvus.Row
	indexed bool
	loaded  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		databases:   map[string]bool{},
		collections: map[string]*fakeCollection{},
		failOn:      map[string]error{},
	}
}

func (f *fakeClient) fail(method string) error {
	if err, ok := f.failOn[method]; ok {
		return err
	}
	return nil
}

func (f *fakeClient) CreateDatabase(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateDatabase"); err != nil {
		return err
	}
	f.databases[name] = true
	return nil
}

func (f *fakeClient) HasDatabase(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("HasDatabase"); err != nil {
		return false, err
	}
	return f.databases[name], nil
}

func (f *fakeClient) UseDatabase(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UseDatabase"); err != nil {
		return err
	}
	if !f.databases[name] {
		return fmt.Errorf("database %s does not exist", name)
	}
	f.current = name
	return nil
}

func (f *fakeClient) CreateCollection(ctx context.Context, spec milvus.CollectionSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateCollection"); err != nil {
		return err
	}
	if _, exists := f.collections[spec.Name]; exists {
		return fmt.Errorf("collection %s already exists", spec.Name)
	}
	f.collections[spec.Name] = &fakeCollection{spec: spec}
	return nil
}

func (f *fakeClient) DropCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DropCollection"); err != nil {
		return err
	}
	delete(f.collections, name)
	return nil
}

func (f *fakeClient) HasCollection(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("HasCollection"); err != nil {
		return false, err
	}
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeClient) ListCollections(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListCollections"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeClient) DescribeFields(ctx context.Context, collection string) ([]milvus.FieldSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DescribeFields"); err != nil {
		return nil, err
	}
	col, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	return col.spec.Fields, nil
}

func (f *fakeClient) CreateVectorIndex(ctx context.Context, collection, field string, params milvus.IndexParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateVectorIndex"); err != nil {
		return err
	}
	col, ok := f.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	col.indexed = true
	return nil
}

func (f *fakeClient) LoadCollection(ctx context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("LoadCollection"); err != nil {
		return err
	}
	col, ok := f.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s does not exist", collection)
	}
	col.loaded = true
	return nil
}

func (f *fakeClient) RowCount(ctx context.Context, collection string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RowCount"); err != nil {
		return 0, err
	}
	col, ok := f.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	return int64(len(col.rows)), nil
}

func (f *fakeClient) Insert(ctx context.Context, collection string, rows []milvus.Row) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Insert"); err != nil {
		return 0, err
	}
	col, ok := f.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	col.rows = append(col.rows, rows...)
	return int64(len(rows)), nil
}

func (f *fakeClient) Delete(ctx context.Context, collection, expr string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Delete"); err != nil {
		return 0, err
	}
	col, ok := f.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	kept := col.rows[:0]
	var deleted int64
	for _, row := range col.rows {
		if matchExpr(row, expr) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	col.rows = kept
	return deleted, nil
}

func (f *fakeClient) Query(ctx context.Context, collection, expr string, outputFields []string, offset, limit int) ([]milvus.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Query"); err != nil {
		return nil, err
	}
	col, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	var matched []milvus.Row
	for _, row := range col.rows {
		if matchExpr(row, expr) {
			matched = append(matched, row)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return projectRows(matched, outputFields), nil
}

func (f *fakeClient) Search(ctx context.Context, collection, vectorField string, vector []float32, expr string, outputFields []string, topK int, params milvus.SearchParams) ([]milvus.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Search"); err != nil {
		return nil, err
	}
	col, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	var hits []milvus.Hit
	for _, row := range col.rows {
		if !matchExpr(row, expr) {
			continue
		}
		stored, ok := row[vectorField].([]float32)
		if !ok {
			continue
		}
		hits = append(hits, milvus.Hit{
			Row:   projectRow(row, outputFields),
			Score: l2Distance(vector, stored),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score < hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *fakeClient) Flush(ctx context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail("Flush")
}

func (f *fakeClient) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail("Health")
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ milvus.Client = (*fakeClient)(nil)

func projectRows(rows []milvus.Row, fields []string) []milvus.Row {
	out := make([]milvus.Row, len(rows))
	for i, row := range rows {
		out[i] = projectRow(row, fields)
	}
	return out
}

func projectRow(row milvus.Row, fields []string) milvus.Row {
	if len(fields) == 0 {
		return row
	}
	out := make(milvus.Row, len(fields))
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// matchExpr evaluates the filter grammar the connector emits:
// equality, membership, inequality against the empty string, joined
// with " and ".
func matchExpr(row milvus.Row, expr string) bool {
	if expr == "" {
		return true
	}
	for _, term := range strings.Split(expr, " and ") {
		if !matchTerm(row, term) {
			return false
		}
	}
	return true
}

func matchTerm(row milvus.Row, term string) bool {
	if field, list, ok := strings.Cut(term, " in ["); ok {
		list = strings.TrimSuffix(list, "]")
		for _, lit := range strings.Split(list, ", ") {
			if literalEqual(row[field], lit) {
				return true
			}
		}
		return false
	}
	if field, lit, ok := strings.Cut(term, " != "); ok {
		return !literalEqual(row[field], lit)
	}
	if field, lit, ok := strings.Cut(term, " == "); ok {
		return literalEqual(row[field], lit)
	}
	return false
}

func literalEqual(value any, lit string) bool {
	if strings.HasPrefix(lit, "'") {
		s, ok := value.(string)
		return ok && s == strings.Trim(lit, "'")
	}
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v) == lit
	case int32:
		return strconv.FormatInt(int64(v), 10) == lit
	case int64:
		return strconv.FormatInt(v, 10) == lit
	case int:
		return strconv.Itoa(v) == lit
	case float32:
		n, err := strconv.ParseFloat(lit, 64)
		return err == nil && float64(v) == n
	case float64:
		n, err := strconv.ParseFloat(lit, 64)
		return err == nil && v == n
	default:
		return false
	}
}
