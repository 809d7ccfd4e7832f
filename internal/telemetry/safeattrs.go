package telemetry

import (
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxAttrValueLen = 512
	maxAttrSliceLen = 32
)

// Ad content and caller credentials never leave the process as span data.
var deniedKeyParts = []string{"text", "ocr", "url", "snippet", "authorization", "api_key", "token", "email", "phone"}

func deniedKey(k string) bool {
	lk := strings.ToLower(k)
	for _, part := range deniedKeyParts {
		if strings.Contains(lk, part) {
			return true
		}
	}
	return false
}

// SafeAttributes converts evaluation fields into span attributes in key
// order. Denied keys, long strings and unsupported types are dropped.
func SafeAttributes(fields map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !deniedKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		if kv, ok := toAttribute(k, fields[k]); ok {
			out = append(out, kv)
		}
	}
	return out
}

func toAttribute(k string, v interface{}) (attribute.KeyValue, bool) {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val), len(val) <= maxAttrValueLen
	case bool:
		return attribute.Bool(k, val), true
	case int:
		return attribute.Int(k, val), true
	case int64:
		return attribute.Int64(k, val), true
	case float64:
		return attribute.Float64(k, val), true
	case []string:
		if len(val) > maxAttrSliceLen {
			val = val[:maxAttrSliceLen]
		}
		return attribute.StringSlice(k, val), true
	}
	return attribute.KeyValue{}, false
}
