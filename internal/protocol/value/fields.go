package value

import "fmt"

func (r Record) lookup(name string, want Kind) (Value, error) {
	v, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldMissing, name)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %q is nil", ErrFieldTypeMismatch, name)
	}
	if want != KindInvalid && v.Kind() != want {
		return nil, fmt.Errorf("%w: %q is %s, want %s", ErrFieldTypeMismatch, name, v.Kind(), want)
	}
	return v, nil
}

// Text returns the named field as a string.
func (r Record) Text(name string) (string, error) {
	v, err := r.lookup(name, KindText)
	if err != nil {
		return "", err
	}
	return string(v.(Text)), nil
}

// Bool returns the named field as a bool.
func (r Record) Bool(name string) (bool, error) {
	v, err := r.lookup(name, KindBool)
	if err != nil {
		return false, err
	}
	return bool(v.(Bool)), nil
}

// Numeric returns the named field as a Numeric of any kind.
func (r Record) Numeric(name string) (Numeric, error) {
	v, err := r.lookup(name, KindInvalid)
	if err != nil {
		return Numeric{}, err
	}
	n, ok := v.(Numeric)
	if !ok {
		return Numeric{}, fmt.Errorf("%w: %q is %s, want numeric", ErrFieldTypeMismatch, name, v.Kind())
	}
	return n, nil
}

// Float64 returns any numeric field converted to float64.
func (r Record) Float64(name string) (float64, error) {
	n, err := r.Numeric(name)
	if err != nil {
		return 0, err
	}
	return n.Float(), nil
}

// Int64 returns an integer field. Float kinds are a type mismatch.
func (r Record) Int64(name string) (int64, error) {
	n, err := r.Numeric(name)
	if err != nil {
		return 0, err
	}
	i, ok := n.Int()
	if !ok {
		return 0, fmt.Errorf("%w: %q is %s, want integer", ErrFieldTypeMismatch, name, n.Kind())
	}
	return i, nil
}

// Record returns the named field as a nested Record.
func (r Record) Record(name string) (Record, error) {
	v, err := r.lookup(name, KindRecord)
	if err != nil {
		return Record{}, err
	}
	return v.(Record), nil
}

// Array returns the named field as an Array.
func (r Record) Array(name string) (Array, error) {
	v, err := r.lookup(name, KindArray)
	if err != nil {
		return Array{}, err
	}
	return v.(Array), nil
}
