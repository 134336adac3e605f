package rbac

import (
	"fmt"
	"reflect"
	"strings"
)

var (
	moduleKeys = []string{"module", "resource", "name"}
	actionKeys = []string{"action", "verb", "type"}
)

// Normalize converts whatever a session carries as permissions into a set of
// "module:action" strings. Unknown shapes yield an empty set; it never fails.
func Normalize(raw any) PermissionSet {
	out := PermissionSet{}
	if raw == nil {
		return out
	}
	switch v := raw.(type) {
	case PermissionSet:
		for p := range v {
			out[p] = struct{}{}
		}
		return out
	case []string:
		for _, s := range v {
			out[normalizeString(s)] = struct{}{}
		}
		return out
	case []Permission:
		for _, p := range v {
			out[normalizeString(string(p))] = struct{}{}
		}
		return out
	case []map[string]any:
		for _, m := range v {
			if p, ok := fromMap(m); ok {
				out[p] = struct{}{}
			}
		}
		return out
	case []any:
		allStrings := true
		for _, item := range v {
			if _, ok := item.(string); !ok {
				allStrings = false
				break
			}
		}
		for _, item := range v {
			if allStrings {
				out[normalizeString(item.(string))] = struct{}{}
				continue
			}
			if p, ok := fromObject(item); ok {
				out[p] = struct{}{}
			}
		}
		return out
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return out
	}
	for i := 0; i < rv.Len(); i++ {
		if p, ok := fromObject(rv.Index(i).Interface()); ok {
			out[p] = struct{}{}
		}
	}
	return out
}

func normalizeString(s string) Permission {
	return Permission(strings.Replace(s, ".", ":", 1))
}

func fromObject(item any) (Permission, bool) {
	if item == nil {
		return "", false
	}
	if m, ok := item.(map[string]any); ok {
		return fromMap(m)
	}
	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}
	mod := structField(rv, moduleKeys)
	act := structField(rv, actionKeys)
	if mod == "" || act == "" {
		return "", false
	}
	return NewPermission(mod, act), true
}

func fromMap(m map[string]any) (Permission, bool) {
	mod := firstValue(m, moduleKeys)
	act := firstValue(m, actionKeys)
	if mod == "" || act == "" {
		return "", false
	}
	return NewPermission(mod, act), true
}

// firstValue reads the first key that is present and non-nil. An empty value
// under that key wins over later aliases, so {module:"", resource:"x"} has no
// module.
func firstValue(m map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		return stringify(v)
	}
	return ""
}

// structField matches exported fields by name, case-insensitively.
func structField(rv reflect.Value, keys []string) string {
	for _, k := range keys {
		f := rv.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, k) })
		if !f.IsValid() || !f.CanInterface() {
			continue
		}
		if f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface {
			if f.IsNil() {
				continue
			}
			return stringify(f.Elem().Interface())
		}
		return stringify(f.Interface())
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool:
		if !t {
			return ""
		}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		if rv.IsZero() {
			return ""
		}
		return fmt.Sprint(v)
	case reflect.String:
		return rv.String()
	}
	return ""
}
