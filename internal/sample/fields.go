package sample

import "fmt"

// Fields is the binary form of a sample used by the wire codec. Integer
// and float fields are kept in separate lists, each in declaration order.
type Fields struct {
	_      struct{} `cbor:",toarray"`
	Kind   Kind
	Width  uint8
	Ints   []int16
	Floats []float32
}

// EncodeFields flattens s into its binary field form.
func EncodeFields(s Sample) Fields {
	f := Fields{Kind: s.Kind()}
	if n, ok := s.(None); ok {
		f.Width = n.Width
		return f
	}
	w := &binaryWriter{fields: &f}
	s.encodeFields(w)
	return f
}

// DecodeFields rebuilds a sample from its binary field form.
func DecodeFields(f Fields) (Sample, error) {
	if !f.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDiscriminant, uint8(f.Kind))
	}
	if f.Kind == KindNone {
		return None{Width: f.Width}, nil
	}
	r := &binaryReader{fields: f}
	s := catalog[f.Kind].decode(r)
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", f.Kind, r.err)
	}
	if r.ints != len(f.Ints) || r.floats != len(f.Floats) {
		return nil, fmt.Errorf("%w: %s has %d trailing fields", ErrParse, f.Kind,
			len(f.Ints)-r.ints+len(f.Floats)-r.floats)
	}
	return s, nil
}

type binaryWriter struct {
	fields *Fields
}

func (w *binaryWriter) putInt(v int16) {
	w.fields.Ints = append(w.fields.Ints, v)
}

func (w *binaryWriter) putFloat(v float32) {
	w.fields.Floats = append(w.fields.Floats, v)
}

type binaryReader struct {
	fields Fields
	ints   int
	floats int
	err    error
}

func (r *binaryReader) nextInt() int16 {
	if r.err != nil {
		return 0
	}
	if r.ints >= len(r.fields.Ints) {
		r.err = fmt.Errorf("%w: missing integer field %d", ErrParse, r.ints)
		return 0
	}
	v := r.fields.Ints[r.ints]
	r.ints++
	return v
}

func (r *binaryReader) nextFloat() float32 {
	if r.err != nil {
		return 0
	}
	if r.floats >= len(r.fields.Floats) {
		r.err = fmt.Errorf("%w: missing float field %d", ErrParse, r.floats)
		return 0
	}
	v := r.fields.Floats[r.floats]
	r.floats++
	return v
}
