package source

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultIDField       = "id"
	DefaultChildrenField = "children"
)

// Record is one JSON object of a data source.
type Record struct {
	raw string
}

// NewRecord wraps a JSON object. Records without a value at idField get a
// random id.
func NewRecord(raw string, idField string) (Record, error) {
	if !gjson.Valid(raw) {
		return Record{}, ErrInvalidRecord
	}
	res := gjson.Parse(raw)
	if !res.IsObject() {
		return Record{}, fmt.Errorf("%w: got %s", ErrInvalidRecord, res.Type)
	}
	if idField == "" {
		idField = DefaultIDField
	}
	if id := res.Get(idField); !id.Exists() || id.String() == "" {
		withID, err := sjson.Set(raw, idField, uuid.NewString())
		if err != nil {
			return Record{}, fmt.Errorf("failed to assign record id: %w", err)
		}
		raw = withID
	}
	return Record{raw: raw}, nil
}

// Field resolves a gjson path. Numbers come back as float64, objects and
// arrays as their decoded Go values, and missing fields as nil.
func (r Record) Field(path string) any {
	res := gjson.Get(r.raw, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil
	}
	return res.Value()
}

// ID returns the record id under field.
func (r Record) ID(field string) string {
	if field == "" {
		field = DefaultIDField
	}
	return gjson.Get(r.raw, field).String()
}

// Children returns the nested records stored under field. Invalid children
// are skipped.
func (r Record) Children(field, idField string) []Record {
	res := gjson.Get(r.raw, field)
	if !res.IsArray() {
		return nil
	}
	var out []Record
	for _, child := range res.Array() {
		rec, err := NewRecord(child.Raw, idField)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Keys lists the top level keys in document order.
func (r Record) Keys() []string {
	var keys []string
	gjson.Parse(r.raw).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

// String joins the scalar values of the record. It is the text the fuzzy
// filter matches against.
func (r Record) String() string {
	var sb strings.Builder
	gjson.Parse(r.raw).ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() || value.IsArray() || value.Type == gjson.Null {
			return true
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(value.String())
		return true
	})
	return sb.String()
}

// Raw returns the JSON text of the record.
func (r Record) Raw() string {
	return r.raw
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.raw == "" {
		return []byte("null"), nil
	}
	return []byte(r.raw), nil
}

func (r Record) MarshalYAML() (any, error) {
	return gjson.Parse(r.raw).Value(), nil
}
