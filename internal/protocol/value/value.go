package value

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMalformedDocument = errors.New("value: malformed document")
	ErrUnsupportedValue  = errors.New("value: unsupported value")
	ErrFieldMissing      = errors.New("value: field missing")
	ErrFieldTypeMismatch = errors.New("value: field type mismatch")
)

// Kind is the one-byte type tag carried by every encoded unit.
type Kind uint8

const (
	KindInvalid Kind = 0x00

	KindI8  Kind = 0x01
	KindI16 Kind = 0x02
	KindI32 Kind = 0x03
	KindI64 Kind = 0x04
	KindU8  Kind = 0x05
	KindU16 Kind = 0x06
	KindU32 Kind = 0x07
	KindU64 Kind = 0x08
	KindF32 Kind = 0x09
	KindF64 Kind = 0x0A

	KindText Kind = 0x10
	KindBool Kind = 0x11

	KindArray  Kind = 0x20
	KindRecord Kind = 0x21
)

var kindNames = map[Kind]string{
	KindI8:     "i8",
	KindI16:    "i16",
	KindI32:    "i32",
	KindI64:    "i64",
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindU64:    "u64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindText:   "text",
	KindBool:   "bool",
	KindArray:  "array",
	KindRecord: "record",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(0x%02x)", uint8(k))
}

// Valid reports whether k is a known tag.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsNumeric reports whether k is one of the integer or float kinds.
func (k Kind) IsNumeric() bool {
	return k >= KindI8 && k <= KindF64
}

func (k Kind) isSigned() bool {
	return k >= KindI8 && k <= KindI64
}

func (k Kind) isUnsigned() bool {
	return k >= KindU8 && k <= KindU64
}

func (k Kind) isFloat() bool {
	return k == KindF32 || k == KindF64
}

// width returns the encoded byte width of a numeric kind.
func (k Kind) width() int {
	switch k {
	case KindI8, KindU8:
		return 1
	case KindI16, KindU16:
		return 2
	case KindI32, KindU32, KindF32:
		return 4
	case KindI64, KindU64, KindF64:
		return 8
	default:
		return 0
	}
}

// Value is one node of a front-panel document. Implementations are Numeric,
// Text, Bool, Array and Record.
type Value interface {
	Kind() Kind
	sealed()
}

// Numeric keeps the exact wire representation of a number: its kind and its
// bits, sign-extended for signed kinds and IEEE-754 for float kinds.
type Numeric struct {
	kind Kind
	bits uint64
}

func (n Numeric) Kind() Kind { return n.kind }
func (Numeric) sealed()      {}

func Int8(v int8) Numeric       { return Numeric{kind: KindI8, bits: uint64(int64(v))} }
func Int16(v int16) Numeric     { return Numeric{kind: KindI16, bits: uint64(int64(v))} }
func Int32(v int32) Numeric     { return Numeric{kind: KindI32, bits: uint64(int64(v))} }
func Int64(v int64) Numeric     { return Numeric{kind: KindI64, bits: uint64(v)} }
func Uint8(v uint8) Numeric     { return Numeric{kind: KindU8, bits: uint64(v)} }
func Uint16(v uint16) Numeric   { return Numeric{kind: KindU16, bits: uint64(v)} }
func Uint32(v uint32) Numeric   { return Numeric{kind: KindU32, bits: uint64(v)} }
func Uint64(v uint64) Numeric   { return Numeric{kind: KindU64, bits: v} }
func Float32(v float32) Numeric { return Numeric{kind: KindF32, bits: uint64(math.Float32bits(v))} }
func Float64(v float64) Numeric { return Numeric{kind: KindF64, bits: math.Float64bits(v)} }

// Int returns the value of a signed or unsigned integer kind. Unsigned values
// above math.MaxInt64 report false.
func (n Numeric) Int() (int64, bool) {
	switch {
	case n.kind.isSigned():
		return int64(n.bits), true
	case n.kind.isUnsigned():
		if n.bits > math.MaxInt64 {
			return 0, false
		}
		return int64(n.bits), true
	default:
		return 0, false
	}
}

// Uint returns the value of an unsigned kind, or of a non-negative signed kind.
func (n Numeric) Uint() (uint64, bool) {
	switch {
	case n.kind.isUnsigned():
		return n.bits, true
	case n.kind.isSigned():
		if int64(n.bits) < 0 {
			return 0, false
		}
		return n.bits, true
	default:
		return 0, false
	}
}

// Float returns the value as float64 for every numeric kind.
func (n Numeric) Float() float64 {
	switch {
	case n.kind == KindF32:
		return float64(math.Float32frombits(uint32(n.bits)))
	case n.kind == KindF64:
		return math.Float64frombits(n.bits)
	case n.kind.isSigned():
		return float64(int64(n.bits))
	default:
		return float64(n.bits)
	}
}

func (n Numeric) String() string {
	switch {
	case n.kind.isFloat():
		return fmt.Sprintf("%g", n.Float())
	case n.kind.isSigned():
		return fmt.Sprintf("%d", int64(n.bits))
	case n.kind.isUnsigned():
		return fmt.Sprintf("%d", n.bits)
	default:
		return "<invalid numeric>"
	}
}

type Text string

func (Text) Kind() Kind { return KindText }
func (Text) sealed()    {}

type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) sealed()    {}

// Array is an ordered homogeneous sequence. Elem is stored on the wire even
// when Items is empty.
type Array struct {
	Elem  Kind
	Items []Value
}

func (Array) Kind() Kind { return KindArray }
func (Array) sealed()    {}

// NewArray builds an array whose element kind is taken from the first item.
func NewArray(items ...Value) (Array, error) {
	if len(items) == 0 {
		return Array{}, fmt.Errorf("%w: empty array needs an explicit element kind", ErrUnsupportedValue)
	}
	if items[0] == nil {
		return Array{}, fmt.Errorf("%w: nil array item", ErrUnsupportedValue)
	}
	arr := Array{Elem: items[0].Kind(), Items: items}
	if err := arr.check(); err != nil {
		return Array{}, err
	}
	return arr, nil
}

// TextArray builds an array of Text items.
func TextArray(items ...string) Array {
	arr := Array{Elem: KindText, Items: make([]Value, 0, len(items))}
	for _, item := range items {
		arr.Items = append(arr.Items, Text(item))
	}
	return arr
}

func (a Array) check() error {
	if !a.Elem.Valid() {
		return fmt.Errorf("%w: array element kind %s", ErrUnsupportedValue, a.Elem)
	}
	for i, item := range a.Items {
		if item == nil {
			return fmt.Errorf("%w: array item %d is nil", ErrUnsupportedValue, i)
		}
		if item.Kind() != a.Elem {
			return fmt.Errorf("%w: array item %d is %s, array holds %s", ErrUnsupportedValue, i, item.Kind(), a.Elem)
		}
	}
	return nil
}

// Field is one named entry of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered cluster of named values. Names are case-sensitive and
// uniqueness is the caller's responsibility.
type Record struct {
	Fields []Field
}

func (Record) Kind() Kind { return KindRecord }
func (Record) sealed()    {}

// NewRecord builds a record from fields in the given order.
func NewRecord(fields ...Field) Record {
	return Record{Fields: fields}
}

// F is shorthand for building a Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

func (r Record) Len() int {
	return len(r.Fields)
}

// Get returns the first field with the given name.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether a field with the given name exists.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set replaces the first field with the given name or appends a new one.
func (r *Record) Set(name string, v Value) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = v
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: v})
}

// Names returns field names in record order.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		names = append(names, f.Name)
	}
	return names
}
