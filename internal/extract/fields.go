package extract

import (
	"sort"

	"github.com/rflorenc/apim-template-extractor/internal/models"
)

// Properties the service computes; templates never carry them.
var readOnlyFields = map[string]bool{
	"provisioningState": true,
	"createdDateTime":   true,
	"updatedDateTime":   true,
	"isCurrent":         true,
	"isOnline":          true,
}

// stringField safely extracts a string field, returning "" if nil.
func stringField(obj map[string]interface{}, field string) string {
	if v, ok := obj[field].(string); ok {
		return v
	}
	return ""
}

// boolField safely extracts a bool field, returning false if nil.
func boolField(obj map[string]interface{}, field string) bool {
	if v, ok := obj[field].(bool); ok {
		return v
	}
	return false
}

// pathField navigates nested objects, e.g. authenticationSettings.oAuth2.authorizationServerId.
func pathField(obj map[string]interface{}, path ...string) interface{} {
	var cur interface{} = obj
	for _, p := range path {
		m := asMap(cur)
		if m == nil {
			return nil
		}
		cur = m[p]
	}
	return cur
}

// pathString is pathField for string leaves.
func pathString(obj map[string]interface{}, path ...string) string {
	if v, ok := pathField(obj, path...).(string); ok {
		return v
	}
	return ""
}

// setPath replaces the value at path. Missing intermediate objects are not
// created: a reference is only ever rewritten where it was found.
func setPath(obj map[string]interface{}, path []string, value interface{}) bool {
	if len(path) == 0 {
		return false
	}
	cur := obj
	for _, p := range path[:len(path)-1] {
		next := asMap(cur[p])
		if next == nil {
			return false
		}
		cur = next
	}
	last := path[len(path)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	cur[last] = value
	return true
}

func asMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		return m
	case models.Resource:
		return m
	}
	return nil
}

// copyProperties deep-copies a payload without the read-only fields, so the
// rewriter can mutate templates while entities stay untouched.
func copyProperties(props models.Resource) models.Resource {
	out := models.Resource{}
	for k, v := range props {
		if readOnlyFields[k] {
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, x := range t {
			m[k] = deepCopy(x)
		}
		return m
	case models.Resource:
		m := make(map[string]interface{}, len(t))
		for k, x := range t {
			m[k] = deepCopy(x)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, x := range t {
			s[i] = deepCopy(x)
		}
		return s
	}
	return v
}

// walkStrings calls fn for every string leaf, visiting object keys in sorted
// order so references come out in a stable order.
func walkStrings(v interface{}, path []string, fn func(path []string, s string)) {
	switch t := v.(type) {
	case string:
		fn(path, t)
	case []interface{}:
		for _, x := range t {
			walkStrings(x, path, fn)
		}
	default:
		m := asMap(v)
		if m == nil {
			return
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkStrings(m[k], append(path[:len(path):len(path)], k), fn)
		}
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
