package dispatch

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"ruleflow/internal/condition"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// Invocation is the event context an action runs in.
type Invocation struct {
	TenantID     string
	Module       string
	Event        string
	Entity       string
	OccurrenceID string
	Record       map[string]interface{}
}

// Scope resolves {{record.<path>}} and {{event.<name>}} references. References that cannot be
// resolved render as an empty string.
type Scope struct {
	inv Invocation
}

func NewScope(inv Invocation) Scope {
	return Scope{inv: inv}
}

func (s Scope) lookup(ref string) (interface{}, bool) {
	switch {
	case strings.HasPrefix(ref, "record."):
		return condition.Resolve(s.inv.Record, strings.TrimPrefix(ref, "record."))
	case strings.HasPrefix(ref, "event."):
		var v string
		switch strings.TrimPrefix(ref, "event.") {
		case "tenant_id":
			v = s.inv.TenantID
		case "module":
			v = s.inv.Module
		case "event":
			v = s.inv.Event
		case "entity":
			v = s.inv.Entity
		case "occurrence_id":
			v = s.inv.OccurrenceID
		default:
			return nil, false
		}
		return v, v != ""
	default:
		return nil, false
	}
}

// Render substitutes every reference in template with its string form.
func (s Scope) Render(template string) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		ref := placeholder.FindStringSubmatch(match)[1]
		v, ok := s.lookup(ref)
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

// RenderValue renders strings inside v. A string consisting of exactly one reference is replaced
// by the referenced value itself, keeping its JSON type.
func (s Scope) RenderValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if m := placeholder.FindStringSubmatchIndex(val); m != nil && m[0] == 0 && m[1] == len(val) {
			resolved, ok := s.lookup(val[m[2]:m[3]])
			if !ok {
				return ""
			}
			return resolved
		}
		return s.Render(val)
	case map[string]interface{}:
		return s.RenderMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = s.RenderValue(elem)
		}
		return out
	default:
		return v
	}
}

func (s Scope) RenderMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = s.RenderValue(v)
	}
	return out
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case nil:
		return ""
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
