package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeLayout is the stored form of timestamps. Fixed width UTC keeps text
// ordering chronological in both backends.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

type arrayUnion struct{ values []interface{} }
type arrayRemove struct{ values []interface{} }
type serverTimestamp struct{}

// ArrayUnion adds values to an array field, skipping ones already present.
func ArrayUnion(values ...string) interface{} {
	return arrayUnion{values: toInterfaces(values)}
}

// ArrayRemove removes every occurrence of values from an array field.
func ArrayRemove(values ...string) interface{} {
	return arrayRemove{values: toInterfaces(values)}
}

// ServerTimestamp is replaced by the store's clock at commit.
var ServerTimestamp interface{} = serverTimestamp{}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// FormatTime renders t in the stored layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func encode(data interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: document must be a JSON object: %w", err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return normalizeMap(out), nil
}

func encodeFields(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch v.(type) {
		case arrayUnion, arrayRemove, serverTimestamp:
			out[k] = v
			continue
		}
		value, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode field %s: %w", k, err)
		}
		out[k] = value
	}
	return out, nil
}

func encodeValue(v interface{}) (interface{}, error) {
	if t, ok := v.(time.Time); ok {
		return FormatTime(t), nil
	}
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil, nil
		}
		return FormatTime(*t), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return normalize(out), nil
}

func decode(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		m[k] = normalize(v)
	}
	return m
}

// normalize rewrites RFC 3339 strings into TimeLayout.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if len(val) >= 20 && val[4] == '-' && val[10] == 'T' {
			if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
				return FormatTime(t)
			}
		}
		return val
	case map[string]interface{}:
		return normalizeMap(val)
	case []interface{}:
		for i := range val {
			val[i] = normalize(val[i])
		}
		return val
	}
	return v
}

// filterValue converts a Go filter value into its stored representation.
func filterValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, nil
	}
	return encodeValue(v)
}

// applyMerge applies encoded fields onto doc in place.
func applyMerge(doc map[string]interface{}, fields map[string]interface{}, now time.Time) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := fields[k].(type) {
		case arrayUnion:
			existing := asSlice(doc[k])
			for _, add := range v.values {
				if !containsValue(existing, add) {
					existing = append(existing, add)
				}
			}
			doc[k] = existing
		case arrayRemove:
			existing := asSlice(doc[k])
			kept := existing[:0]
			for _, item := range existing {
				if !containsValue(v.values, item) {
					kept = append(kept, item)
				}
			}
			doc[k] = kept
		case serverTimestamp:
			doc[k] = FormatTime(now)
		default:
			doc[k] = v
		}
	}
}

func asSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(s))
		copy(out, s)
		return out
	}
	return []interface{}{}
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if compareEqual(item, v) {
			return true
		}
	}
	return false
}

func compareEqual(a, b interface{}) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}

// compareValues orders two stored scalars. ok is false for mismatched or
// unordered types.
func compareValues(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	raw, _ := json.Marshal(m)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = map[string]interface{}{}
	}
	return out
}
