package condition

import (
	"strconv"
	"strings"
)

// MaxPathDepth bounds dotted path traversal.
const MaxPathDepth = 16

// Resolve looks up field in record. An exact top-level key wins; otherwise the field is treated as
// a dotted path through nested maps and list indexes ("address.city", "items.0.sku"). A null value
// is reported as not found.
func Resolve(record map[string]interface{}, field string) (interface{}, bool) {
	if record == nil || field == "" {
		return nil, false
	}

	if v, ok := record[field]; ok {
		return v, v != nil
	}

	segments := strings.Split(field, ".")
	if len(segments) > MaxPathDepth {
		return nil, false
	}

	var current interface{} = record
	for _, seg := range segments {
		if seg == "" {
			return nil, false
		}
		next, ok := step(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}

	return current, current != nil
}

func step(current interface{}, seg string) (interface{}, bool) {
	switch v := current.(type) {
	case map[string]interface{}:
		next, ok := v[seg]
		return next, ok
	case map[string]string:
		next, ok := v[seg]
		return next, ok
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}
