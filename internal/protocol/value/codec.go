package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxDepth bounds Array/Record nesting accepted by Decode.
const MaxDepth = 64

const maxNameLen = math.MaxUint16

// Encode writes v as one self-describing unit: a kind tag followed by its body.
func Encode(v Value) ([]byte, error) {
	return appendUnit(make([]byte, 0, 64), v)
}

func appendUnit(buf []byte, v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrUnsupportedValue)
	}
	buf = append(buf, byte(v.Kind()))
	return appendBody(buf, v)
}

// appendBody writes the untagged body of v. Array items are written this way
// since the element kind is stored once per array.
func appendBody(buf []byte, v Value) ([]byte, error) {
	switch t := v.(type) {
	case Numeric:
		return appendNumeric(buf, t)
	case Text:
		if uint64(len(t)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: text length %d", ErrUnsupportedValue, len(t))
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(t)))
		return append(buf, t...), nil
	case Bool:
		if t {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case Array:
		if err := t.check(); err != nil {
			return nil, err
		}
		if uint64(len(t.Items)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: array length %d", ErrUnsupportedValue, len(t.Items))
		}
		buf = append(buf, byte(t.Elem))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(t.Items)))
		var err error
		for _, item := range t.Items {
			if buf, err = appendBody(buf, item); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case Record:
		if uint64(len(t.Fields)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: record length %d", ErrUnsupportedValue, len(t.Fields))
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(t.Fields)))
		var err error
		for _, f := range t.Fields {
			if len(f.Name) > maxNameLen {
				return nil, fmt.Errorf("%w: field name length %d", ErrUnsupportedValue, len(f.Name))
			}
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Name)))
			buf = append(buf, f.Name...)
			if buf, err = appendUnit(buf, f.Value); err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func appendNumeric(buf []byte, n Numeric) ([]byte, error) {
	switch n.kind.width() {
	case 1:
		return append(buf, byte(n.bits)), nil
	case 2:
		return binary.BigEndian.AppendUint16(buf, uint16(n.bits)), nil
	case 4:
		return binary.BigEndian.AppendUint32(buf, uint32(n.bits)), nil
	case 8:
		return binary.BigEndian.AppendUint64(buf, n.bits), nil
	default:
		return nil, fmt.Errorf("%w: numeric %s", ErrUnsupportedValue, n.kind)
	}
}

// Decode parses exactly one unit from data. Trailing bytes are rejected.
func Decode(data []byte) (Value, error) {
	d := decoder{buf: data}
	v, err := d.unit(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedDocument, len(d.buf)-d.off)
	}
	return v, nil
}

// DecodeRecord parses data and requires the top-level unit to be a Record.
func DecodeRecord(data []byte) (Record, error) {
	v, err := Decode(data)
	if err != nil {
		return Record{}, err
	}
	rec, ok := v.(Record)
	if !ok {
		return Record{}, fmt.Errorf("%w: top-level %s, want record", ErrMalformedDocument, v.Kind())
	}
	return rec, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || n > d.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedDocument, n, d.off, d.remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) kind() (Kind, error) {
	b, err := d.take(1)
	if err != nil {
		return KindInvalid, err
	}
	k := Kind(b[0])
	if !k.Valid() {
		return KindInvalid, fmt.Errorf("%w: unknown tag 0x%02x at offset %d", ErrMalformedDocument, b[0], d.off-1)
	}
	return k, nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) unit(depth int) (Value, error) {
	k, err := d.kind()
	if err != nil {
		return nil, err
	}
	return d.body(k, depth)
}

func (d *decoder) body(k Kind, depth int) (Value, error) {
	switch {
	case k.IsNumeric():
		b, err := d.take(k.width())
		if err != nil {
			return nil, err
		}
		return decodeNumeric(k, b), nil
	case k == KindText:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return nil, err
		}
		return Text(b), nil
	case k == KindBool:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		switch b[0] {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		default:
			return nil, fmt.Errorf("%w: bool byte 0x%02x", ErrMalformedDocument, b[0])
		}
	case k == KindArray:
		return d.array(depth + 1)
	case k == KindRecord:
		return d.record(depth + 1)
	default:
		return nil, fmt.Errorf("%w: unknown tag %s", ErrMalformedDocument, k)
	}
}

func (d *decoder) array(depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformedDocument, MaxDepth)
	}
	elem, err := d.kind()
	if err != nil {
		return nil, err
	}
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	if uint64(count)*uint64(minBodyLen(elem)) > uint64(d.remaining()) {
		return nil, fmt.Errorf("%w: array of %d %s exceeds %d remaining bytes", ErrMalformedDocument, count, elem, d.remaining())
	}
	arr := Array{Elem: elem, Items: make([]Value, 0, count)}
	for i := uint32(0); i < count; i++ {
		item, err := d.body(elem, depth)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, item)
	}
	return arr, nil
}

func (d *decoder) record(depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformedDocument, MaxDepth)
	}
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	// name length, tag and the smallest body
	if uint64(count)*4 > uint64(d.remaining()) {
		return nil, fmt.Errorf("%w: record of %d fields exceeds %d remaining bytes", ErrMalformedDocument, count, d.remaining())
	}
	rec := Record{Fields: make([]Field, 0, count)}
	for i := uint32(0); i < count; i++ {
		nameLen, err := d.u16()
		if err != nil {
			return nil, err
		}
		name, err := d.take(int(nameLen))
		if err != nil {
			return nil, err
		}
		v, err := d.unit(depth)
		if err != nil {
			return nil, err
		}
		rec.Fields = append(rec.Fields, Field{Name: string(name), Value: v})
	}
	return rec, nil
}

func decodeNumeric(k Kind, b []byte) Numeric {
	switch k {
	case KindI8:
		return Int8(int8(b[0]))
	case KindI16:
		return Int16(int16(binary.BigEndian.Uint16(b)))
	case KindI32:
		return Int32(int32(binary.BigEndian.Uint32(b)))
	case KindI64:
		return Int64(int64(binary.BigEndian.Uint64(b)))
	case KindU8:
		return Uint8(b[0])
	case KindU16:
		return Uint16(binary.BigEndian.Uint16(b))
	case KindU32:
		return Uint32(binary.BigEndian.Uint32(b))
	case KindU64:
		return Uint64(binary.BigEndian.Uint64(b))
	case KindF32:
		return Numeric{kind: KindF32, bits: uint64(binary.BigEndian.Uint32(b))}
	default:
		return Numeric{kind: KindF64, bits: binary.BigEndian.Uint64(b)}
	}
}

func minBodyLen(k Kind) int {
	switch {
	case k.IsNumeric():
		return k.width()
	case k == KindText, k == KindRecord:
		return 4
	case k == KindArray:
		return 5
	default:
		return 1
	}
}
