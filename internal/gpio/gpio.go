// Package gpio provides sensor, button and LED pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "github.com/sweeney/sensor-player/internal/logic"

// Sample is one reading of every input, as raw pin levels.
// Inputs use pull-ups, so an occupied sensor or pressed button reads LOW.
type Sample struct {
	Sensors logic.Snapshot
	Button  logic.Level
}

// Reader reads the sensor bank and the button.
type Reader interface {
	// Read samples all inputs at once.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// LED identifies one of the indicator outputs.
type LED int

const (
	LEDStatus LED = iota // on while the controller runs
	LEDMode              // button feedback
	LEDState             // state blink pattern
)

func (l LED) String() string {
	switch l {
	case LEDStatus:
		return "status"
	case LEDMode:
		return "mode"
	case LEDState:
		return "state"
	default:
		return "unknown"
	}
}

// Writer drives the indicator outputs.
type Writer interface {
	// Write sets the level of an LED.
	Write(led LED, level logic.Level) error

	// Close releases GPIO resources.
	Close() error
}
