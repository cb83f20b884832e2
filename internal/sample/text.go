package sample

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	textSeparator = ", "
	nullToken     = "null"
)

type fieldWriter interface {
	putInt(v int16)
	putFloat(v float32)
}

// fieldReader yields fields in declaration order. Implementations record
// the first failure and return zero values afterwards.
type fieldReader interface {
	nextInt() int16
	nextFloat() float32
}

// EncodeText renders the scalar fields of s joined by ", ". A None
// placeholder renders Width copies of "null".
func EncodeText(s Sample) string {
	if n, ok := s.(None); ok {
		if n.Width == 0 {
			return ""
		}
		return strings.Repeat(nullToken+textSeparator, int(n.Width)-1) + nullToken
	}
	w := &textWriter{}
	s.encodeFields(w)
	return strings.Join(w.parts, textSeparator)
}

// DecodeText parses a row of the form "<discriminant>, <field>, ...".
func DecodeText(text string) (Sample, error) {
	tokens := strings.Split(text, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	disc, err := strconv.ParseUint(tokens[0], 10, 8)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDiscriminant, tokens[0])
		}
		return nil, fmt.Errorf("%w: discriminant %q", ErrParse, tokens[0])
	}
	kind := Kind(disc)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDiscriminant, disc)
	}

	fields := tokens[1:]
	if kind == KindNone {
		return decodeNone(fields)
	}

	info := catalog[kind]
	if len(fields) != int(info.arity) {
		return nil, fmt.Errorf("%w: %s expects %d fields, got %d", ErrParse, kind, info.arity, len(fields))
	}

	r := &textReader{tokens: fields}
	s := info.decode(r)
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", kind, r.err)
	}
	return s, nil
}

func decodeNone(fields []string) (Sample, error) {
	if len(fields) == 1 && fields[0] == "" {
		return None{}, nil
	}
	if len(fields) > 255 {
		return nil, fmt.Errorf("%w: placeholder width %d", ErrParse, len(fields))
	}
	for i, tok := range fields {
		if tok != nullToken {
			return nil, fmt.Errorf("%w: placeholder field %d is %q", ErrParse, i, tok)
		}
	}
	return None{Width: uint8(len(fields))}, nil
}

type textWriter struct {
	parts []string
}

func (w *textWriter) putInt(v int16) {
	w.parts = append(w.parts, strconv.FormatInt(int64(v), 10))
}

// putFloat uses the shortest representation that parses back to the
// same float32.
func (w *textWriter) putFloat(v float32) {
	w.parts = append(w.parts, strconv.FormatFloat(float64(v), 'f', -1, 32))
}

type textReader struct {
	tokens []string
	pos    int
	err    error
}

func (r *textReader) next() (string, bool) {
	if r.err != nil {
		return "", false
	}
	if r.pos >= len(r.tokens) {
		r.err = fmt.Errorf("%w: missing field %d", ErrParse, r.pos)
		return "", false
	}
	tok := r.tokens[r.pos]
	r.pos++
	return tok, true
}

func (r *textReader) nextInt() int16 {
	tok, ok := r.next()
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(tok, 10, 16)
	if err != nil {
		r.err = fmt.Errorf("%w: field %d %q: %v", ErrParse, r.pos-1, tok, err)
		return 0
	}
	return int16(v)
}

func (r *textReader) nextFloat() float32 {
	tok, ok := r.next()
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		r.err = fmt.Errorf("%w: field %d %q: %v", ErrParse, r.pos-1, tok, err)
		return 0
	}
	return float32(v)
}
