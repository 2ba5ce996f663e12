package provider

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Fielder is implemented by data types that resolve their own fields.
type Fielder interface {
	Field(name string) any
}

// Field looks up a named field on v. It understands Fielder values, string
// keyed maps and structs, where name matches either the json tag or the
// field name. Unknown fields resolve to nil.
func Field(v any, name string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Fielder:
		return t.Field(name)
	case map[string]any:
		return t[name]
	case map[string]string:
		if s, ok := t[name]; ok {
			return s
		}
		return nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	rt := rv.Type()
	for i := range rt.NumField() {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == "-" {
			continue
		}
		if tag == name || strings.EqualFold(sf.Name, name) {
			return rv.Field(i).Interface()
		}
	}
	return nil
}

// Text returns the searchable text of v.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case interface{ String() string }:
		return t.String()
	}
	bts, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(bts)
}
