package driver

import (
	"github.com/sweeney/sensor-player/internal/gpio"
	"github.com/sweeney/sensor-player/internal/logic"
)

// Indicator timings.
const (
	FlashPeriodMs = 300 // startup chase period
	ModeBlinkMs   = 200 // mode LED half-period while awaiting release
	ReadyFlashMs  = 100 // half-period of the load-complete flashes
	ReadyFlashes  = 4
)

// LEDLevels holds one level per indicator, indexed by gpio.LED.
type LEDLevels [3]logic.Level

// Flasher returns the startup chase for the given time since power-on.
// The three LEDs light in sequence with overlapping windows.
func Flasher(elapsed uint32) LEDLevels {
	phase := elapsed % FlashPeriodMs
	var out LEDLevels
	out[gpio.LEDStatus] = logic.Level(phase > 0 && phase < 125)
	out[gpio.LEDMode] = logic.Level(phase > 100 && phase < 225)
	out[gpio.LEDState] = logic.Level(phase > 200)
	return out
}

// ReadyDurationMs is how long the load-complete signal lasts.
const ReadyDurationMs = ReadyFlashes * 2 * ReadyFlashMs

// Ready returns the load-complete signal: quick flashes of the mode LED.
func Ready(elapsed uint32) LEDLevels {
	var out LEDLevels
	if elapsed < ReadyDurationMs {
		out[gpio.LEDMode] = logic.Level((elapsed/ReadyFlashMs)%2 == 0)
	}
	return out
}

// ModeLED returns the mode indicator level for a button phase.
func ModeLED(phase logic.ButtonPhase, pressStart, now uint32) logic.Level {
	switch phase {
	case logic.PhasePressed:
		return logic.High
	case logic.PhaseAwaitingRelease:
		return logic.Level(((now-pressStart)/ModeBlinkMs)%2 == 0)
	default:
		return logic.Low
	}
}

// WriteAll drives every LED to levels.
func WriteAll(w gpio.Writer, levels LEDLevels) error {
	for led, level := range levels {
		if err := w.Write(gpio.LED(led), level); err != nil {
			return err
		}
	}
	return nil
}

// Sequence drives pattern on the LEDs for durationMs, calling wait between
// frames, and leaves every LED off.
func Sequence(w gpio.Writer, clock Clock, durationMs uint32, pattern func(elapsed uint32) LEDLevels, wait func()) error {
	start := clock.NowMs()
	for {
		elapsed := clock.NowMs() - start
		if elapsed >= durationMs {
			break
		}
		if err := WriteAll(w, pattern(elapsed)); err != nil {
			return err
		}
		wait()
	}
	return WriteAll(w, LEDLevels{})
}
