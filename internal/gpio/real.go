//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/sensor-player/internal/logic"
)

// RealReader reads the sensor bank and button from actual hardware using the
// Linux GPIO character device.
type RealReader struct {
	chip    *gpiocdev.Chip
	sensors *gpiocdev.Lines
	button  *gpiocdev.Line
	values  []int
}

// NewRealReader requests the sensor and button lines as inputs with pull-ups,
// matching the wiring where an occupied sensor or pressed button pulls LOW.
func NewRealReader(chipName string, sensorPins []int, buttonPin int) (*RealReader, error) {
	if len(sensorPins) != logic.NumSensors {
		return nil, fmt.Errorf("need %d sensor pins, got %d", logic.NumSensors, len(sensorPins))
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	sensors, err := chip.RequestLines(sensorPins, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sensor pins %v: %w", sensorPins, err)
	}

	button, err := chip.RequestLine(buttonPin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		sensors.Close()
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", buttonPin, err)
	}

	return &RealReader{
		chip:    chip,
		sensors: sensors,
		button:  button,
		values:  make([]int, len(sensorPins)),
	}, nil
}

// Read returns the raw levels of all sensors and the button.
func (r *RealReader) Read() (Sample, error) {
	var s Sample

	if err := r.sensors.Values(r.values); err != nil {
		return s, fmt.Errorf("read sensor pins: %w", err)
	}
	for i, v := range r.values {
		s.Sensors[i] = logic.Level(v != 0)
	}

	b, err := r.button.Value()
	if err != nil {
		return s, fmt.Errorf("read button pin: %w", err)
	}
	s.Button = logic.Level(b != 0)

	return s, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error

	if r.sensors != nil {
		if err := r.sensors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor pins: %w", err))
		}
	}
	if r.button != nil {
		if err := r.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealWriter drives the indicator LEDs.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines map[LED]*gpiocdev.Line
}

// NewRealWriter requests the LED lines as outputs, initially low.
func NewRealWriter(chipName string, status, mode, state int) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWriter{chip: chip, lines: make(map[LED]*gpiocdev.Line)}
	for led, pin := range map[LED]int{LEDStatus: status, LEDMode: mode, LEDState: state} {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request %s led pin %d: %w", led, pin, err)
		}
		w.lines[led] = line
	}
	return w, nil
}

// Write sets the level of an LED.
func (w *RealWriter) Write(led LED, level logic.Level) error {
	line, ok := w.lines[led]
	if !ok {
		return fmt.Errorf("unknown led %d", led)
	}
	v := 0
	if level == logic.High {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write %s led: %w", led, err)
	}
	return nil
}

// Close turns the LEDs off and releases GPIO resources. Lines are
// reconfigured as inputs with pull-down, matching Pi boot defaults.
func (w *RealWriter) Close() error {
	var errs []error

	for led, line := range w.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s led: %w", led, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s led: %w", led, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
