// Package driver runs the per-tick control cycle: sample inputs, debounce
// the button, evaluate transitions, then drive media and indicator LEDs.
package driver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sweeney/sensor-player/internal/gpio"
	"github.com/sweeney/sensor-player/internal/logic"
	"github.com/sweeney/sensor-player/internal/media"
)

// MediaRetryMs is how long the runner waits before starting media again
// after a failed start.
const MediaRetryMs = 1000

// Options tune a Runner. Zero values select the logic package defaults.
type Options struct {
	ConfirmMs uint32
	HoldMs    uint32
	Blink     logic.BlinkPattern
	Logger    *zap.SugaredLogger
}

// Result describes what one tick did.
type Result struct {
	Now     uint32
	Sampled bool // false when the inputs could not be read
	Sample  gpio.Sample

	Changed bool
	Change  logic.Change

	Button logic.ButtonEvent

	MediaStarted bool
	MediaRef     string
}

// Runner owns the machine, the debouncer and the pending flags, and is
// driven by calling Tick once per poll interval. It is not safe for
// concurrent use.
type Runner struct {
	machine   *logic.Machine
	debouncer *logic.Debouncer
	blink     logic.BlinkPattern
	flags     logic.Flags

	reader gpio.Reader
	leds   gpio.Writer
	player media.Player
	clock  Clock
	logger *zap.SugaredLogger

	entered  bool
	retry    bool   // the current state's media failed to start
	failedAt uint32 // time of the last failed start
	last     LEDLevels
	written bool
}

// New creates a Runner. The first Tick starts the current state's media.
func New(machine *logic.Machine, reader gpio.Reader, leds gpio.Writer, player media.Player, clock Clock, opts Options) *Runner {
	blink := opts.Blink
	if blink.BlinkMs == 0 && blink.WaitMs == 0 {
		blink = logic.DefaultBlink
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{
		machine:   machine,
		debouncer: logic.NewDebouncer(opts.ConfirmMs, opts.HoldMs),
		blink:     blink,
		reader:    reader,
		leds:      leds,
		player:    player,
		clock:     clock,
		logger:    logger,
	}
}

// Tick runs one control cycle. The order is fixed: sample, debounce,
// evaluate, media, LEDs. A read error aborts the tick before anything
// changes; media and LED errors are returned after the cycle completes.
func (r *Runner) Tick() (Result, error) {
	now := r.clock.NowMs()
	res := Result{Now: now}

	sample, err := r.reader.Read()
	if err != nil {
		return res, fmt.Errorf("read inputs: %w", err)
	}
	res.Sampled = true
	res.Sample = sample

	res.Button = r.debouncer.Update(sample.Button, now, &r.flags)
	if res.Button != logic.ButtonNone {
		r.logger.Infof("button: %s", res.Button)
	}

	res.Change, res.Changed = r.machine.Evaluate(sample.Sensors, &r.flags, r.player, now)
	if res.Changed {
		r.logger.Infof("state %d -> %d (transition %d)", res.Change.From, res.Change.To, res.Change.Transition)
	}

	var errs []error
	if err := r.updateMedia(&res, now); err != nil {
		errs = append(errs, err)
	}
	if err := r.updateLEDs(now); err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

func (r *Runner) updateMedia(res *Result, now uint32) error {
	st := r.machine.CurrentState()

	switch {
	case !r.entered || res.Changed:
		r.entered = true
		r.retry = false
		if err := r.player.Stop(); err != nil {
			r.logger.Warnf("stop media: %v", err)
		}
		if st.MediaRef == "" {
			return nil
		}
	case r.retry:
		if now-r.failedAt < MediaRetryMs {
			return nil
		}
		r.logger.Debugf("retrying %s", st.MediaRef)
	case st.Repeat && st.MediaRef != "" && r.player.IsFinished():
		r.logger.Debugf("repeating %s", st.MediaRef)
	default:
		return nil
	}

	if err := r.player.Start(st.MediaRef); err != nil {
		r.retry = true
		r.failedAt = now
		return fmt.Errorf("state %d: %w", st.ID, err)
	}
	r.retry = false
	res.MediaStarted = true
	res.MediaRef = st.MediaRef
	return nil
}

func (r *Runner) updateLEDs(now uint32) error {
	var levels LEDLevels
	levels[gpio.LEDStatus] = logic.High
	levels[gpio.LEDMode] = ModeLED(r.debouncer.Phase(), r.debouncer.PressStart(), now)
	levels[gpio.LEDState] = r.blink.At(r.machine.CurrentState().BlinkCount, r.machine.LastChange(), now)

	for led, level := range levels {
		if r.written && r.last[led] == level {
			continue
		}
		if err := r.leds.Write(gpio.LED(led), level); err != nil {
			r.written = false
			return fmt.Errorf("write %s led: %w", gpio.LED(led), err)
		}
		r.last[led] = level
	}
	r.written = true
	return nil
}

// Machine returns the state machine driven by the runner.
func (r *Runner) Machine() *logic.Machine {
	return r.machine
}

// Flags returns the pending one-shot flags.
func (r *Runner) Flags() logic.Flags {
	return r.flags
}

// ButtonPhase returns the debouncer phase.
func (r *Runner) ButtonPhase() logic.ButtonPhase {
	return r.debouncer.Phase()
}

// Shutdown stops media and turns the LEDs off.
func (r *Runner) Shutdown() error {
	var errs []error
	if err := r.player.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop media: %w", err))
	}
	if err := WriteAll(r.leds, LEDLevels{}); err != nil {
		errs = append(errs, fmt.Errorf("clear leds: %w", err))
	}
	r.written = false
	return errors.Join(errs...)
}
