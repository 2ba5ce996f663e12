package provider

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestComparer(t *testing.T) {
	t.Parallel()

	c := NewComparer(language.Und)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{name: "ints", a: 2, b: 10, want: -1},
		{name: "mixed numeric kinds", a: int64(3), b: 2.5, want: 1},
		{name: "json number", a: json.Number("7"), b: 7, want: 0},
		{name: "strings", a: "apple", b: "banana", want: -1},
		{name: "numeric collation", a: "item 9", b: "item 10", want: -1},
		{name: "equal strings", a: "same", b: "same", want: 0},
		{name: "bools", a: true, b: false, want: 1},
		{name: "times", a: now, b: now.Add(time.Hour), want: -1},
		{name: "nil first", a: nil, b: 0, want: -1},
		{name: "nil last", a: "x", b: nil, want: 1},
		{name: "both nil", a: nil, b: nil, want: 0},
		{name: "mixed kinds fall back to strings", a: "10", b: true, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, c.Compare(tt.a, tt.b))
		})
	}
}

type fielder struct{}

func (fielder) Field(name string) any {
	return "field:" + name
}

func TestField(t *testing.T) {
	t.Parallel()

	type row struct {
		Name     string `json:"full_name"`
		Count    int
		Hidden   string `json:"-"`
		internal string
	}
	r := row{Name: "ada", Count: 3, Hidden: "h", internal: "i"}

	tests := []struct {
		name  string
		value any
		field string
		want  any
	}{
		{name: "json tag", value: r, field: "full_name", want: "ada"},
		{name: "field name", value: r, field: "count", want: 3},
		{name: "pointer", value: &r, field: "Count", want: 3},
		{name: "ignored tag", value: r, field: "Hidden", want: nil},
		{name: "unexported", value: r, field: "internal", want: nil},
		{name: "map", value: map[string]any{"a": 1}, field: "a", want: 1},
		{name: "string map", value: map[string]string{"a": "x"}, field: "a", want: "x"},
		{name: "missing map key", value: map[string]string{}, field: "a", want: nil},
		{name: "fielder", value: fielder{}, field: "x", want: "field:x"},
		{name: "nil", value: nil, field: "x", want: nil},
		{name: "scalar", value: 3, field: "x", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Field(tt.value, tt.field))
		})
	}
}
