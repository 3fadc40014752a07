package docstore

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var filterFieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BuildFilter renders a condition map as an engine filter expression.
// Scalar values become equality terms, slices become membership terms,
// and multiple terms are joined conjunctively. Keys are emitted in
// sorted order so the expression is deterministic.
//
// An empty condition yields an empty expression (match everything). An
// empty slice value is an error: it can never match, and callers that
// want "select nothing" semantics must short-circuit before building.
func BuildFilter(condition map[string]any) (string, error) {
	if len(condition) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(condition))
	for k := range condition {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		if !filterFieldPattern.MatchString(k) {
			return "", fmt.Errorf("%w: invalid field name %q", ErrInvalidFilter, k)
		}
		term, err := filterTerm(k, condition[k])
		if err != nil {
			return "", err
		}
		terms = append(terms, term)
	}
	return strings.Join(terms, " and "), nil
}

func filterTerm(field string, value any) (string, error) {
	switch v := value.(type) {
	case []string:
		return membershipTerm(field, stringsToAny(v))
	case []int:
		return membershipTerm(field, intsToAny(v))
	case []any:
		return membershipTerm(field, v)
	default:
		lit, err := filterLiteral(field, value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s == %s", field, lit), nil
	}
}

func membershipTerm(field string, values []any) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("%w: empty value list for field %q", ErrInvalidFilter, field)
	}
	lits := make([]string, 0, len(values))
	for _, v := range values {
		lit, err := filterLiteral(field, v)
		if err != nil {
			return "", err
		}
		lits = append(lits, lit)
	}
	return fmt.Sprintf("%s in [%s]", field, strings.Join(lits, ", ")), nil
}

func filterLiteral(field string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, `'\`) {
			return "", fmt.Errorf("%w: value for field %q contains quote or escape characters", ErrInvalidFilter, field)
		}
		return "'" + v + "'", nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: unsupported value type %T for field %q", ErrInvalidFilter, value, field)
	}
}

// conditionSelectsNothing reports whether a condition contains an empty
// list value, which can never match any document.
func conditionSelectsNothing(condition map[string]any) bool {
	for _, v := range condition {
		switch vv := v.(type) {
		case []string:
			if len(vv) == 0 {
				return true
			}
		case []int:
			if len(vv) == 0 {
				return true
			}
		case []any:
			if len(vv) == 0 {
				return true
			}
		}
	}
	return false
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func intsToAny(in []int) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
