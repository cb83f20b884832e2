// Package sim drives a store with synthetic telemetry, standing in for
// the robot when exercising the link end to end.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/skobkin/phoenixrec/internal/sample"
	"github.com/skobkin/phoenixrec/internal/store"
)

// MissionComplete is the comment appended after the last step.
const MissionComplete = "mission complete"

// Step is one drive command and how many ticks it lasts.
type Step struct {
	Command store.Command
	Ticks   int
	// Speed is the target wheel speed in degrees per second.
	Speed int16
}

// DefaultMission is a short course touching every command kind.
func DefaultMission() []Step {
	return []Step{
		{Command: store.AlignLine{Distance: 10}, Ticks: 20, Speed: 200},
		{Command: store.DriveDist{Distance: 100}, Ticks: 50, Speed: 400},
		{Command: store.TurnRadius{Radius: 20, Angle: 90}, Ticks: 30, Speed: 300},
		{Command: store.DriveLine{Distance: 60}, Ticks: 40, Speed: 350},
		{Command: store.Turn{Angle: 180}, Ticks: 25, Speed: 250},
		{Command: store.TurnOneWheel{Angle: 45, Wheel: store.Right}, Ticks: 15, Speed: 200},
		{Command: store.AlignDist{Distance: 15}, Ticks: 20, Speed: 150},
	}
}

// Options tunes a Driver. Zero values select defaults.
type Options struct {
	Mission []Step
	// Seed makes the sensor noise reproducible.
	Seed   uint64
	Logger *slog.Logger
}

// Driver appends one record per tick to a store while it walks a mission.
type Driver struct {
	store    *store.Store
	interval time.Duration
	mission  []Step
	rng      *rand.Rand
	logger   *slog.Logger
}

// New builds a Driver that ticks every interval.
func New(st *store.Store, interval time.Duration, opts Options) (*Driver, error) {
	if st == nil {
		return nil, errors.New("sim: nil store")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sim: interval must be > 0, got %s", interval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mission := opts.Mission
	if len(mission) == 0 {
		mission = DefaultMission()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Driver{
		store:    st,
		interval: interval,
		mission:  append([]Step(nil), mission...),
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		logger:   logger.With("component", "sim"),
	}, nil
}

// Run walks the mission and returns once it is complete or ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("mission started", "steps", len(d.mission), "interval", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// The first call only arms the distance accumulator.
	d.store.UpdateTotals(0, 0)

	for i, step := range d.mission {
		d.store.AppendCommand(step.Command)
		rightFactor, leftFactor := wheelFactors(step.Command)

		var segRight, segLeft float32
		for tick := 0; tick < step.Ticks; tick++ {
			select {
			case <-ctx.Done():
				d.logger.Info("mission interrupted", "step", i, "reason", ctx.Err())
				return ctx.Err()
			case <-ticker.C:
			}

			samples := d.tick(step, tick, rightFactor, leftFactor, &segRight, &segLeft)
			if _, err := d.store.AppendRecord(samples...); err != nil {
				return fmt.Errorf("append record: %w", err)
			}
		}

		// Motor encoders reset between commands, fold the segment into the totals.
		d.store.UpdateTotals(segRight, segLeft)
		d.logger.Debug("step complete", "command", step.Command.String(), "right", segRight, "left", segLeft)
	}

	d.store.AppendComment(MissionComplete)
	d.logger.Info("mission complete", "entries", d.store.Len())
	return nil
}

func (d *Driver) tick(step Step, tick int, rightFactor, leftFactor float32, segRight, segLeft *float32) []sample.Sample {
	target := step.Speed
	ramp := math.Min(1, float64(tick+1)/5)
	current := int16(float64(target) * ramp)

	right := int16(float32(current)*rightFactor) + d.noise(4)
	left := int16(float32(current)*leftFactor) + d.noise(4)

	perTick := float32(d.interval.Seconds())
	*segRight += float32(right) * perTick / 360
	*segLeft += float32(left) * perTick / 360

	syncErr := float32(right-left)/100 + float32(d.noise(2))/100

	samples := []sample.Sample{
		sample.CalcSpeed{Right: int16(float32(target) * rightFactor), Left: int16(float32(target) * leftFactor)},
		sample.SyncSpeed{Right: (right + left) / 2, Left: (right + left) / 2},
		sample.RealSpeeds{Right: right, Left: left},
		sample.DrivenDistance{Right: *segRight, Left: *segLeft},
		sample.SyncError{Value: syncErr},
		sample.Correction{Right: -syncErr / 2, Left: syncErr / 2},
		sample.CurTarSpeeds{Current: current, Target: target},
	}

	switch step.Command.(type) {
	case store.AlignDist:
		samples = append(samples, sample.Distance{Value: int16(40-tick) + d.noise(1)})
	case store.AlignLine, store.DriveLine:
		samples = append(samples,
			sample.Color{Right: 30 + d.noise(10), Left: 30 + d.noise(10)},
			sample.RGB{
				Right: sample.RGBValue{R: 120 + d.noise(8), G: 110 + d.noise(8), B: 90 + d.noise(8)},
				Left:  sample.RGBValue{R: 118 + d.noise(8), G: 112 + d.noise(8), B: 92 + d.noise(8)},
			},
		)
	}
	if tick%10 == 9 {
		samples = append(samples, sample.AverageSpeed{Right: float32(right), Left: float32(left)})
	}
	return samples
}

func (d *Driver) noise(spread int) int16 {
	if spread <= 0 {
		return 0
	}
	return int16(d.rng.IntN(2*spread+1) - spread)
}

func wheelFactors(cmd store.Command) (right, left float32) {
	switch c := cmd.(type) {
	case store.Turn:
		return 1, -1
	case store.TurnRadius:
		return 1, 0.6
	case store.TurnOneWheel:
		if c.Wheel == store.Right {
			return 1, 0
		}
		return 0, 1
	default:
		return 1, 1
	}
}
