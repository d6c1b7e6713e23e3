package condition

import (
	"math"
	"reflect"
	"sort"
	"strings"
)

type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpExists     Operator = "exists"
	OpNotExists  Operator = "not_exists"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIsEmpty    Operator = "is_empty"
	OpExpr       Operator = "expr"
)

var operators = map[string]Operator{
	"eq": OpEq, "==": OpEq, "equals": OpEq,
	"neq": OpNeq, "!=": OpNeq, "not_equals": OpNeq,
	"gt": OpGt, ">": OpGt,
	"gte": OpGte, ">=": OpGte,
	"lt": OpLt, "<": OpLt,
	"lte": OpLte, "<=": OpLte,
	"in":          OpIn,
	"not_in":      OpNotIn,
	"exists":      OpExists,
	"not_exists":  OpNotExists,
	"contains":    OpContains,
	"starts_with": OpStartsWith, "prefix": OpStartsWith,
	"ends_with": OpEndsWith, "suffix": OpEndsWith,
	"is_empty": OpIsEmpty,
	"expr":     OpExpr,
}

// ParseOperator resolves an operator name or symbolic alias.
func ParseOperator(name string) (Operator, bool) {
	op, ok := operators[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// KnownOperators returns every accepted operator spelling, sorted.
func KnownOperators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// satisfiedByMissing reports whether op holds for a field that is absent or null.
func (op Operator) satisfiedByMissing() bool {
	switch op {
	case OpNeq, OpNotExists, OpNotIn, OpIsEmpty:
		return true
	default:
		return false
	}
}

type kind int

const (
	kindOther kind = iota
	kindNull
	kindBool
	kindNumber
	kindString
	kindList
	kindMap
)

func kindOf(v interface{}) kind {
	if v == nil {
		return kindNull
	}
	switch v.(type) {
	case bool:
		return kindBool
	case string:
		return kindString
	case []interface{}:
		return kindList
	case map[string]interface{}:
		return kindMap
	}
	if _, ok := toFloat64(v); ok {
		return kindNumber
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return kindList
	case reflect.Map:
		return kindMap
	}
	return kindOther
}

// compare applies op to a present, non-null record value. Values of different kinds never
// satisfy a comparison.
func compare(op Operator, value, target interface{}) bool {
	switch op {
	case OpExists:
		return true
	case OpNotExists:
		return false
	case OpEq:
		return kindOf(value) == kindOf(target) && equalValues(value, target)
	case OpNeq:
		return kindOf(value) == kindOf(target) && !equalValues(value, target)
	case OpGt:
		c, ok := order(value, target)
		return ok && c > 0
	case OpGte:
		c, ok := order(value, target)
		return ok && c >= 0
	case OpLt:
		c, ok := order(value, target)
		return ok && c < 0
	case OpLte:
		c, ok := order(value, target)
		return ok && c <= 0
	case OpIn:
		return memberOf(value, target)
	case OpNotIn:
		if _, ok := asList(target); !ok {
			return false
		}
		return !memberOf(value, target)
	case OpContains:
		return contains(value, target)
	case OpStartsWith:
		vs, ok1 := value.(string)
		ts, ok2 := target.(string)
		return ok1 && ok2 && strings.HasPrefix(vs, ts)
	case OpEndsWith:
		vs, ok1 := value.(string)
		ts, ok2 := target.(string)
		return ok1 && ok2 && strings.HasSuffix(vs, ts)
	case OpIsEmpty:
		return isEmpty(value)
	default:
		return false
	}
}

func equalValues(a, b interface{}) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindNumber:
		na, _ := toFloat64(a)
		nb, _ := toFloat64(b)
		return na == nb
	case kindList:
		la, _ := asList(a)
		lb, _ := asList(b)
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !equalValues(la[i], lb[i]) {
				return false
			}
		}
		return true
	case kindMap:
		return reflect.DeepEqual(a, b)
	case kindOther:
		return false
	default:
		return a == b
	}
}

// order returns -1, 0 or 1 for two numbers or two strings.
func order(a, b interface{}) (int, bool) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, ok1 := a.(string)
	sb, ok2 := b.(string)
	if ok1 && ok2 {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func memberOf(value, set interface{}) bool {
	elems, ok := asList(set)
	if !ok {
		return false
	}
	for _, elem := range elems {
		if equalValues(value, elem) {
			return true
		}
	}
	return false
}

func contains(value, target interface{}) bool {
	if vs, ok := value.(string); ok {
		ts, ok := target.(string)
		return ok && strings.Contains(vs, ts)
	}
	if elems, ok := asList(value); ok {
		for _, elem := range elems {
			if equalValues(elem, target) {
				return true
			}
		}
	}
	return false
}

func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	switch kindOf(value) {
	case kindList, kindMap:
		return reflect.ValueOf(value).Len() == 0
	}
	return false
}

func asNumbers(a, b interface{}) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

func toFloat64(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// asList accepts []interface{} as produced by encoding/json and any other slice or array.
func asList(v interface{}) ([]interface{}, bool) {
	if list, ok := v.([]interface{}); ok {
		return list, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
