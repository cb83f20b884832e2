package sample

// Sample is one telemetry value. The set of implementations is closed;
// every concrete type below has exactly one catalog entry.
type Sample interface {
	Kind() Kind
	encodeFields(w fieldWriter)
}

// Discriminant returns the catalog discriminant of s.
func Discriminant(s Sample) Kind {
	return s.Kind()
}

// Description returns the export header label for s.
func Description(s Sample) string {
	return s.Kind().Description()
}

// Arity returns the number of scalar slots s occupies in a text row.
func Arity(s Sample) uint8 {
	if n, ok := s.(None); ok {
		return n.Width
	}
	return catalog[s.Kind()].arity
}

// None is an export placeholder: Width slots with no recorded value.
type None struct {
	Width uint8
}

func (None) Kind() Kind                 { return KindNone }
func (None) encodeFields(_ fieldWriter) {}

// Color holds the right and left line sensor readings.
type Color struct {
	Right int16
	Left  int16
}

func (Color) Kind() Kind { return KindColor }
func (s Color) encodeFields(w fieldWriter) {
	w.putInt(s.Right)
	w.putInt(s.Left)
}

// Distance is a single ranging reading.
type Distance struct {
	Value int16
}

func (Distance) Kind() Kind { return KindDistance }
func (s Distance) encodeFields(w fieldWriter) {
	w.putInt(s.Value)
}

// CalcSpeed holds the calculated right and left wheel speeds.
type CalcSpeed struct {
	Right int16
	Left  int16
}

func (CalcSpeed) Kind() Kind { return KindCalcSpeed }
func (s CalcSpeed) encodeFields(w fieldWriter) {
	w.putInt(s.Right)
	w.putInt(s.Left)
}

// SyncSpeed holds the synchronised right and left wheel speeds.
type SyncSpeed struct {
	Right int16
	Left  int16
}

func (SyncSpeed) Kind() Kind { return KindSyncSpeed }
func (s SyncSpeed) encodeFields(w fieldWriter) {
	w.putInt(s.Right)
	w.putInt(s.Left)
}

// RealSpeeds holds the measured right and left wheel speeds.
type RealSpeeds struct {
	Right int16
	Left  int16
}

func (RealSpeeds) Kind() Kind { return KindRealSpeeds }
func (s RealSpeeds) encodeFields(w fieldWriter) {
	w.putInt(s.Right)
	w.putInt(s.Left)
}

// DrivenDistance holds the right and left odometer values. The store
// turns per-tick deltas into running totals when it is appended.
type DrivenDistance struct {
	Right float32
	Left  float32
}

func (DrivenDistance) Kind() Kind { return KindDrivenDistance }
func (s DrivenDistance) encodeFields(w fieldWriter) {
	w.putFloat(s.Right)
	w.putFloat(s.Left)
}

// SyncError is the wheel synchronisation error.
type SyncError struct {
	Value float32
}

func (SyncError) Kind() Kind { return KindSyncError }
func (s SyncError) encodeFields(w fieldWriter) {
	w.putFloat(s.Value)
}

// Correction holds the right and left controller corrections.
type Correction struct {
	Right float32
	Left  float32
}

func (Correction) Kind() Kind { return KindCorrection }
func (s Correction) encodeFields(w fieldWriter) {
	w.putFloat(s.Right)
	w.putFloat(s.Left)
}

// AverageSpeed holds the right and left averaged speeds.
type AverageSpeed struct {
	Right float32
	Left  float32
}

func (AverageSpeed) Kind() Kind { return KindAverageSpeed }
func (s AverageSpeed) encodeFields(w fieldWriter) {
	w.putFloat(s.Right)
	w.putFloat(s.Left)
}

// RGBValue is one raw colour sensor triple.
type RGBValue struct {
	R int16
	G int16
	B int16
}

// RGB holds the raw right and left colour sensor channels.
type RGB struct {
	Right RGBValue
	Left  RGBValue
}

func (RGB) Kind() Kind { return KindRGB }
func (s RGB) encodeFields(w fieldWriter) {
	for _, v := range [2]RGBValue{s.Right, s.Left} {
		w.putInt(v.R)
		w.putInt(v.G)
		w.putInt(v.B)
	}
}

// CurTarSpeeds pairs the current speed with the controller target.
type CurTarSpeeds struct {
	Current int16
	Target  int16
}

func (CurTarSpeeds) Kind() Kind { return KindCurTarSpeeds }
func (s CurTarSpeeds) encodeFields(w fieldWriter) {
	w.putInt(s.Current)
	w.putInt(s.Target)
}
