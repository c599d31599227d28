package value

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Equal reports whether a and b have the same shape, kinds and contents.
// Numerics compare by bits, so NaN equals an identical NaN.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Numeric:
		return x == b.(Numeric)
	case Text:
		return x == b.(Text)
	case Bool:
		return x == b.(Bool)
	case Array:
		y := b.(Array)
		if x.Elem != y.Elem || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case Record:
		y := b.(Record)
		if len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !Equal(x.Fields[i].Value, y.Fields[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// From converts plain Go data into a Value. Maps become records with keys in
// sorted order; plain int maps to i64 and float64 to f64.
func From(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedValue)
	case Value:
		return t, nil
	case int8:
		return Int8(t), nil
	case int16:
		return Int16(t), nil
	case int32:
		return Int32(t), nil
	case int64:
		return Int64(t), nil
	case int:
		return Int64(int64(t)), nil
	case uint8:
		return Uint8(t), nil
	case uint16:
		return Uint16(t), nil
	case uint32:
		return Uint32(t), nil
	case uint64:
		return Uint64(t), nil
	case uint:
		return Uint64(uint64(t)), nil
	case float32:
		return Float32(t), nil
	case float64:
		return Float64(t), nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case []string:
		return TextArray(t...), nil
	case []float64:
		arr := Array{Elem: KindF64, Items: make([]Value, 0, len(t))}
		for _, f := range t {
			arr.Items = append(arr.Items, Float64(f))
		}
		return arr, nil
	case []any:
		items := make([]Value, 0, len(t))
		for i, item := range t {
			converted, err := From(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, converted)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: empty []any has no element kind", ErrUnsupportedValue)
		}
		return NewArray(items...)
	case map[string]any:
		return RecordFrom(t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// RecordFrom converts a map into a Record with fields sorted by name.
func RecordFrom(m map[string]any) (Record, error) {
	keys := lo.Keys(m)
	sort.Strings(keys)
	rec := Record{Fields: make([]Field, 0, len(keys))}
	for _, key := range keys {
		v, err := From(m[key])
		if err != nil {
			return Record{}, fmt.Errorf("field %q: %w", key, err)
		}
		rec.Fields = append(rec.Fields, Field{Name: key, Value: v})
	}
	return rec, nil
}

// ToNative converts v into plain Go data. Records lose their field order.
func ToNative(v Value) any {
	switch t := v.(type) {
	case Numeric:
		switch {
		case t.kind.isFloat():
			return t.Float()
		case t.kind.isSigned():
			i, _ := t.Int()
			return i
		default:
			u, _ := t.Uint()
			return u
		}
	case Text:
		return string(t)
	case Bool:
		return bool(t)
	case Array:
		return lo.Map(t.Items, func(item Value, _ int) any { return ToNative(item) })
	case Record:
		out := make(map[string]any, len(t.Fields))
		for _, f := range t.Fields {
			out[f.Name] = ToNative(f.Value)
		}
		return out
	default:
		return nil
	}
}

// Format renders v compactly for logs and tables.
func Format(v Value) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case Numeric:
		return t.String()
	case Text:
		return fmt.Sprintf("%q", string(t))
	case Bool:
		return fmt.Sprintf("%t", bool(t))
	case Array:
		parts := lo.Map(t.Items, func(item Value, _ int) string { return Format(item) })
		return fmt.Sprintf("%s[%s]", t.Elem, strings.Join(parts, ", "))
	case Record:
		parts := lo.Map(t.Fields, func(f Field, _ int) string { return f.Name + ": " + Format(f.Value) })
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("<%T>", v)
	}
}
