package logic

// Default button timing.
const (
	DefaultConfirmMs = 50
	DefaultHoldMs    = 2000
)

// ButtonPhase is the Debouncer's sub-state.
type ButtonPhase int

const (
	// PhaseIdle: no press in progress. A candidate press may be confirming.
	PhaseIdle ButtonPhase = iota
	// PhasePressed: press confirmed, waiting for release or the hold threshold.
	PhasePressed
	// PhaseAwaitingRelease: long press reported, waiting for the button to be let go.
	PhaseAwaitingRelease
)

func (p ButtonPhase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhasePressed:
		return "PRESSED"
	case PhaseAwaitingRelease:
		return "AWAITING_RELEASE"
	default:
		return "UNKNOWN"
	}
}

// ButtonEvent is the gesture recognised on a tick, if any.
type ButtonEvent string

const (
	ButtonNone  ButtonEvent = ""
	ButtonSkip  ButtonEvent = "SKIP"
	ButtonReset ButtonEvent = "RESET"
)

// Debouncer turns the raw level of an active-low button into one-shot skip
// (short tap) and reset (long hold) flags.
type Debouncer struct {
	confirmMs uint32
	holdMs    uint32

	phase      ButtonPhase
	confirming bool   // a low level is being watched during the confirm window
	lowSince   uint32 // first low sample of the current candidate
	pressStart uint32
}

// NewDebouncer creates a Debouncer. Zero durations select the defaults.
func NewDebouncer(confirmMs, holdMs uint32) *Debouncer {
	if confirmMs == 0 {
		confirmMs = DefaultConfirmMs
	}
	if holdMs == 0 {
		holdMs = DefaultHoldMs
	}
	return &Debouncer{confirmMs: confirmMs, holdMs: holdMs}
}

// Update advances the debounce state with one button sample taken at now.
// It may set flags.Skip or flags.Reset but never clears either, and a single
// gesture sets at most one of them.
func (d *Debouncer) Update(level Level, now uint32, flags *Flags) ButtonEvent {
	switch d.phase {
	case PhaseIdle:
		if level == High {
			// Bounce back high re-arms the confirm window.
			d.confirming = false
			return ButtonNone
		}
		if !d.confirming {
			d.confirming = true
			d.lowSince = now
		}
		if now-d.lowSince >= d.confirmMs {
			d.confirming = false
			d.phase = PhasePressed
			d.pressStart = d.lowSince
		}
		// A press confirmed and held past the threshold on the same sample
		// falls through to the pressed checks on the next tick.
		return ButtonNone

	case PhasePressed:
		if now-d.pressStart >= d.holdMs {
			flags.Reset = true
			d.phase = PhaseAwaitingRelease
			return ButtonReset
		}
		if level == High {
			flags.Skip = true
			d.phase = PhaseIdle
			return ButtonSkip
		}
		return ButtonNone

	case PhaseAwaitingRelease:
		if level == High {
			d.phase = PhaseIdle
		}
		return ButtonNone
	}
	return ButtonNone
}

// Phase returns the current sub-state.
func (d *Debouncer) Phase() ButtonPhase {
	return d.phase
}

// PressStart returns the timestamp of the confirmed press. Only meaningful
// outside PhaseIdle.
func (d *Debouncer) PressStart() uint32 {
	return d.pressStart
}
