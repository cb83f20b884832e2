package store

import "fmt"

// Direction selects a wheel side.
type Direction uint8

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Right {
		return "Right"
	}
	return "Left"
}

// Command is a drive command issued to the robot. Its string form is
// recorded as a comment and used for the session name.
type Command interface {
	fmt.Stringer
	command()
}

// Turn rotates in place by Angle degrees.
type Turn struct{ Angle int16 }

// TurnRadius drives an arc of Radius for Angle degrees.
type TurnRadius struct{ Radius, Angle int16 }

// DriveDist drives straight for Distance.
type DriveDist struct{ Distance int16 }

// DriveLine follows the line for Distance.
type DriveLine struct{ Distance int16 }

// AlignDist aligns against an obstacle at Distance.
type AlignDist struct{ Distance int16 }

// AlignLine aligns on the line, then drives Distance.
type AlignLine struct{ Distance int16 }

// TurnOneWheel turns by Angle degrees using only the Wheel side.
type TurnOneWheel struct {
	Angle int16
	Wheel Direction
}

func (c Turn) String() string         { return fmt.Sprintf("Turn(%d)", c.Angle) }
func (c TurnRadius) String() string   { return fmt.Sprintf("TurnRadius(%d, %d)", c.Radius, c.Angle) }
func (c DriveDist) String() string    { return fmt.Sprintf("DriveDist(%d)", c.Distance) }
func (c DriveLine) String() string    { return fmt.Sprintf("DriveLine(%d)", c.Distance) }
func (c AlignDist) String() string    { return fmt.Sprintf("AlignDist(%d)", c.Distance) }
func (c AlignLine) String() string    { return fmt.Sprintf("AlignLine(%d)", c.Distance) }
func (c TurnOneWheel) String() string { return fmt.Sprintf("TurnOneWheel(%d, %s)", c.Angle, c.Wheel) }

func (Turn) command()         {}
func (TurnRadius) command()   {}
func (DriveDist) command()    {}
func (DriveLine) command()    {}
func (AlignDist) command()    {}
func (AlignLine) command()    {}
func (TurnOneWheel) command() {}
