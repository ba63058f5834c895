package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"task-automator-api/internal/domain"
)

// Evaluate applies op to a field value and the expected value. Malformed
// input never panics: unknown operators and values that cannot be compared
// make the condition false.
func Evaluate(fieldValue any, op domain.Operator, expected any) bool {
	switch op {
	case domain.OpEquals:
		return valuesEqual(fieldValue, expected)
	case domain.OpNotEquals:
		return !valuesEqual(fieldValue, expected)
	case domain.OpContains:
		return strings.Contains(strings.ToLower(toText(fieldValue)), strings.ToLower(toText(expected)))
	case domain.OpGreaterThan:
		a, okA := toNumber(fieldValue)
		b, okB := toNumber(expected)
		return okA && okB && a > b
	case domain.OpLessThan:
		a, okA := toNumber(fieldValue)
		b, okB := toNumber(expected)
		return okA && okB && a < b
	default:
		return false
	}
}

// EvaluateCondition checks one condition against an event context. A
// condition with only a type always holds.
func EvaluateCondition(c domain.TriggerCondition, event map[string]any) bool {
	if c.IsTypeOnly() {
		return true
	}
	if c.Field == "" {
		return false
	}
	return Evaluate(lookupField(event, c.Field), c.Operator, c.Value)
}

// EvaluateAll reports whether every condition holds. An empty list holds.
func EvaluateAll(conds []domain.TriggerCondition, event map[string]any) bool {
	for _, c := range conds {
		if !EvaluateCondition(c, event) {
			return false
		}
	}
	return true
}

// lookupField resolves a field name in the event context. A name with dots
// ("task.priority") walks nested maps when no key matches it literally.
func lookupField(event map[string]any, field string) any {
	if v, ok := event[field]; ok {
		return v
	}
	if !strings.Contains(field, ".") {
		return nil
	}
	var cur any = event
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// valuesEqual is type-sensitive equality. All numeric kinds count as one
// type so an int from Go code equals the float64 produced by JSON decoding.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := numericValue(a); ok {
		nb, ok := numericValue(b)
		return ok && na == nb
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// numericValue converts values whose type is a number. Strings are not numbers here.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toNumber coerces a value for greater_than / less_than. Numeric strings and
// booleans coerce; anything else, and any non-finite result, does not.
func toNumber(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case bool:
		if val {
			f = 1
		}
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		n, ok := numericValue(v)
		if !ok {
			return 0, false
		}
		f = n
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
