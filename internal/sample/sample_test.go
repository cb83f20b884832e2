package sample

import (
	"errors"
	"testing"
)

func representativeSamples() []Sample {
	return []Sample{
		Color{Right: 30, Left: -12},
		Distance{Value: 412},
		CalcSpeed{Right: 150, Left: 149},
		SyncSpeed{Right: -200, Left: 32767},
		RealSpeeds{Right: -32768, Left: 0},
		DrivenDistance{Right: 12.5, Left: 0.1},
		SyncError{Value: -0.0625},
		Correction{Right: 1.25e-3, Left: 3},
		AverageSpeed{Right: 140.75, Left: 139.5},
		RGB{Right: RGBValue{R: 1, G: 2, B: 3}, Left: RGBValue{R: 255, G: 128, B: 0}},
		CurTarSpeeds{Current: 90, Target: 100},
	}
}

func TestCatalogIsContiguous(t *testing.T) {
	t.Parallel()

	kinds := Kinds()
	if len(kinds) != int(kindCount) {
		t.Fatalf("expected %d kinds, got %d", kindCount, len(kinds))
	}
	seen := make(map[string]Kind, len(kinds))
	for i, k := range kinds {
		if int(k) != i {
			t.Fatalf("kind at position %d has discriminant %d", i, k)
		}
		name := k.String()
		if name == "" {
			t.Fatalf("kind %d has no name", k)
		}
		if prev, ok := seen[name]; ok {
			t.Fatalf("kinds %d and %d share name %q", prev, k, name)
		}
		seen[name] = k
		if k != KindNone && catalog[k].decode == nil {
			t.Fatalf("kind %s has no decoder", k)
		}
	}
}

func TestEveryKindHasRepresentative(t *testing.T) {
	t.Parallel()

	covered := map[Kind]bool{KindNone: true}
	for _, s := range representativeSamples() {
		covered[s.Kind()] = true
	}
	for _, k := range Kinds() {
		if !covered[k] {
			t.Fatalf("kind %s missing from representative samples", k)
		}
	}
}

func TestArityMatchesEncodedFields(t *testing.T) {
	t.Parallel()

	for _, s := range append(representativeSamples(), None{}) {
		want, err := ArityOf(Discriminant(s))
		if err != nil {
			t.Fatalf("ArityOf(%s) returned error: %v", s.Kind(), err)
		}
		f := EncodeFields(s)
		if got := len(f.Ints) + len(f.Floats); got != int(want) {
			t.Fatalf("%s: arity %d but %d encoded fields", s.Kind(), want, got)
		}
		if Arity(s) != want {
			t.Fatalf("%s: Arity()=%d, ArityOf()=%d", s.Kind(), Arity(s), want)
		}
	}
}

func TestArityKnownValues(t *testing.T) {
	t.Parallel()

	want := []uint8{0, 2, 1, 2, 2, 2, 2, 1, 2, 2, 6, 2}
	for i, w := range want {
		got, err := ArityOf(Kind(i))
		if err != nil {
			t.Fatalf("ArityOf(%d) returned error: %v", i, err)
		}
		if got != w {
			t.Fatalf("ArityOf(%d)=%d, want %d", i, got, w)
		}
	}
}

func TestArityUnknownDiscriminant(t *testing.T) {
	t.Parallel()

	if _, err := ArityOf(kindCount); !errors.Is(err, ErrUnknownDiscriminant) {
		t.Fatalf("expected ErrUnknownDiscriminant, got %v", err)
	}
	if _, err := Placeholder(Kind(200)); !errors.Is(err, ErrUnknownDiscriminant) {
		t.Fatalf("expected ErrUnknownDiscriminant from Placeholder, got %v", err)
	}
}

func TestPlaceholderWidth(t *testing.T) {
	t.Parallel()

	p, err := Placeholder(KindRGB)
	if err != nil {
		t.Fatalf("Placeholder returned error: %v", err)
	}
	if p.Width != 6 {
		t.Fatalf("expected width 6, got %d", p.Width)
	}
	if got := EncodeText(p); got != "null, null, null, null, null, null" {
		t.Fatalf("unexpected placeholder text %q", got)
	}
}

func TestDescriptions(t *testing.T) {
	t.Parallel()

	if Description(None{Width: 2}) != "" {
		t.Fatalf("None must not have a description")
	}
	if got := Description(Color{}); got != "right color, left color" {
		t.Fatalf("unexpected Color description %q", got)
	}
	if got := KindDistance.Description(); got != "dist" {
		t.Fatalf("unexpected Distance description %q", got)
	}
	if Kind(99).Description() != "" {
		t.Fatalf("unknown kind must have empty description")
	}
	for _, k := range Kinds()[1:] {
		if k.Description() == "" {
			t.Fatalf("kind %s has an empty description", k)
		}
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range append(representativeSamples(), None{Width: 3}) {
		got, err := DecodeFields(EncodeFields(s))
		if err != nil {
			t.Fatalf("%s: DecodeFields returned error: %v", s.Kind(), err)
		}
		if got != s {
			t.Fatalf("%s: round trip mismatch: got %#v want %#v", s.Kind(), got, s)
		}
	}
}

func TestDecodeFieldsRejectsBadShapes(t *testing.T) {
	t.Parallel()

	if _, err := DecodeFields(Fields{Kind: 42}); !errors.Is(err, ErrUnknownDiscriminant) {
		t.Fatalf("expected ErrUnknownDiscriminant, got %v", err)
	}
	if _, err := DecodeFields(Fields{Kind: KindColor, Ints: []int16{1}}); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for missing field, got %v", err)
	}
	if _, err := DecodeFields(Fields{Kind: KindDistance, Ints: []int16{1, 2}}); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for trailing field, got %v", err)
	}
	if _, err := DecodeFields(Fields{Kind: KindSyncError, Ints: []int16{1}}); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for wrong field type, got %v", err)
	}
}
