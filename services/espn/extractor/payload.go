package extractor

import (
	"fmt"
	"strconv"
	"strings"
)

// The vendor's feed payloads are loosely structured: the `content` field is
// sometimes an object wrapping its own `content` array and sometimes the
// array itself. Both shapes occur in captured traffic, so normalization
// happens once here instead of at every call site.

// resolveSections returns the section list of a feed-shaped payload,
// tolerating both content shapes. Non-object elements are dropped.
func resolveSections(root map[string]any) []map[string]any {
	content, ok := root["content"]
	if !ok {
		return nil
	}

	switch v := content.(type) {
	case []any:
		return objectList(v)
	case map[string]any:
		inner, _ := v["content"].([]any)
		return objectList(inner)
	}
	return nil
}

func objectList(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func itemList(section map[string]any) []any {
	items, _ := section["items"].([]any)
	return items
}

// firstString evaluates an ordered list of candidate fields and returns the
// first one holding a non-empty value, else fallback. This single resolver
// backs every best-effort fallback chain (id, status, league resolution).
func firstString(m map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		s := stringify(m[key])
		if s != "" {
			return s
		}
	}
	return fallback
}

// pathString walks nested objects by key and renders the leaf as a string.
func pathString(m map[string]any, fallback string, path ...string) string {
	current := any(m)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return fallback
		}
		current = obj[key]
	}
	s := stringify(current)
	if s == "" {
		return fallback
	}
	return s
}

func pathObject(m map[string]any, path ...string) map[string]any {
	current := any(m)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = obj[key]
	}
	obj, _ := current.(map[string]any)
	return obj
}

// stringify renders scalar JSON values as display strings; nulls and
// composites render empty.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	}
	return ""
}

func optString(v any) *string {
	s := stringify(v)
	if s == "" {
		return nil
	}
	return &s
}

func stringValue(m map[string]any, key string) string {
	return stringify(m[key])
}

func boolValue(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func sectionLabel(section map[string]any, index int) string {
	label := pathString(section, "", "header", "label")
	if label == "" {
		return fmt.Sprintf("Section %d", index)
	}
	return label
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
