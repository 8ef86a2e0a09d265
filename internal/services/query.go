package services

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Param is a single query parameter. Value may be nil, a scalar, a pointer or a slice.
type Param struct {
	Key   string
	Value any
}

// componentUnescaper undoes the escapes [url.QueryEscape] applies to characters encodeURIComponent leaves alone.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent percent-encodes s like encodeURIComponent.
func EncodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// BuildQueryString renders params in order as key=value pairs joined by '&'.
//
// Nil values (including nil pointers) are omitted and slices repeat the key once per element.
func BuildQueryString(params []Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		key := EncodeComponent(p.Key)
		for _, v := range queryValues(p.Value) {
			parts = append(parts, key+"="+EncodeComponent(v))
		}
	}
	return strings.Join(parts, "&")
}

func queryValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []string:
		return val
	case fmt.Stringer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return []string{val.String()}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return queryValues(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			out = append(out, queryValues(rv.Index(i).Interface())...)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
