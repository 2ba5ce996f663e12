package provider

import (
	"cmp"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparer orders field values. Numbers compare numerically, strings with
// a locale collator, booleans false first, times chronologically. Nil sorts
// before everything else and mixed kinds fall back to their string form.
type Comparer struct {
	collator *collate.Collator
}

func NewComparer(tag language.Tag) *Comparer {
	return &Comparer{
		collator: collate.New(tag, collate.Numeric),
	}
}

func (c *Comparer) Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return c.compareStrings(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			return compareBools(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}

	return c.compareStrings(fmt.Sprint(a), fmt.Sprint(b))
}

func (c *Comparer) compareStrings(a, b string) int {
	if r := c.collator.CompareString(a, b); r != 0 {
		return r
	}
	// The collator treats some distinct strings as equal; keep a total order.
	return cmp.Compare(a, b)
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
