// Package sample defines the telemetry sample catalog and its text and
// binary field encodings.
package sample

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDiscriminant is returned when a discriminant is outside the catalog.
	ErrUnknownDiscriminant = errors.New("unknown sample discriminant")
	// ErrParse is returned for malformed sample fields.
	ErrParse = errors.New("malformed sample field")
)

// Kind is the stable discriminant of a sample variant. It doubles as the
// export column index, so values must never be reordered.
type Kind uint8

const (
	KindNone Kind = iota
	KindColor
	KindDistance
	KindCalcSpeed
	KindSyncSpeed
	KindRealSpeeds
	KindDrivenDistance
	KindSyncError
	KindCorrection
	KindAverageSpeed
	KindRGB
	KindCurTarSpeeds

	kindCount
)

type kindInfo struct {
	name        string
	description string
	arity       uint8
	decode      func(r fieldReader) Sample
}

// catalog is indexed by Kind. Arity is the number of scalar slots a
// variant occupies in a text row.
var catalog = [kindCount]kindInfo{
	KindNone: {
		name: "None",
	},
	KindColor: {
		name:        "Color",
		description: "right color, left color",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return Color{Right: r.nextInt(), Left: r.nextInt()}
		},
	},
	KindDistance: {
		name:        "Distance",
		description: "dist",
		arity:       1,
		decode: func(r fieldReader) Sample {
			return Distance{Value: r.nextInt()}
		},
	},
	KindCalcSpeed: {
		name:        "CalcSpeed",
		description: "right calculated v, left calculated v",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return CalcSpeed{Right: r.nextInt(), Left: r.nextInt()}
		},
	},
	KindSyncSpeed: {
		name:        "SyncSpeed",
		description: "right synced v, left synced v",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return SyncSpeed{Right: r.nextInt(), Left: r.nextInt()}
		},
	},
	KindRealSpeeds: {
		name:        "RealSpeeds",
		description: "right real v, left real v",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return RealSpeeds{Right: r.nextInt(), Left: r.nextInt()}
		},
	},
	KindDrivenDistance: {
		name:        "DrivenDistance",
		description: "right distance, left distance",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return DrivenDistance{Right: r.nextFloat(), Left: r.nextFloat()}
		},
	},
	KindSyncError: {
		name:        "SyncError",
		description: "sync error",
		arity:       1,
		decode: func(r fieldReader) Sample {
			return SyncError{Value: r.nextFloat()}
		},
	},
	KindCorrection: {
		name:        "Correction",
		description: "right correction, left correction",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return Correction{Right: r.nextFloat(), Left: r.nextFloat()}
		},
	},
	KindAverageSpeed: {
		name:        "AverageSpeed",
		description: "right average speed, left average speed",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return AverageSpeed{Right: r.nextFloat(), Left: r.nextFloat()}
		},
	},
	KindRGB: {
		name:        "RGB",
		description: "right r, right g, right b, left r, left g, left b",
		arity:       6,
		decode: func(r fieldReader) Sample {
			return RGB{
				Right: RGBValue{R: r.nextInt(), G: r.nextInt(), B: r.nextInt()},
				Left:  RGBValue{R: r.nextInt(), G: r.nextInt(), B: r.nextInt()},
			}
		},
	},
	KindCurTarSpeeds: {
		name:        "CurTarSpeeds",
		description: "current speed, target speed",
		arity:       2,
		decode: func(r fieldReader) Sample {
			return CurTarSpeeds{Current: r.nextInt(), Target: r.nextInt()}
		},
	},
}

// Kinds returns every catalog discriminant in ascending order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is part of the catalog.
func (k Kind) Valid() bool {
	return k < kindCount
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return catalog[k].name
}

// Description returns the export header label for k, or "" when the
// variant has no column label.
func (k Kind) Description() string {
	if !k.Valid() {
		return ""
	}
	return catalog[k].description
}

// ArityOf returns the number of scalar slots the variant k occupies.
func ArityOf(k Kind) (uint8, error) {
	if !k.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownDiscriminant, uint8(k))
	}
	return catalog[k].arity, nil
}

// Placeholder returns the None sample standing in for an empty k column.
func Placeholder(k Kind) (None, error) {
	width, err := ArityOf(k)
	if err != nil {
		return None{}, err
	}
	return None{Width: width}, nil
}
