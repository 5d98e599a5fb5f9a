package logic

// Default blink timing: 200 ms on, 200 ms off per blink, then a 1300 ms pause.
const (
	DefaultBlinkMs = 200
	DefaultWaitMs  = 1300
)

// BlinkPattern drives the state LED as count blinks followed by a pause.
type BlinkPattern struct {
	BlinkMs uint32 // length of each on and each off phase
	WaitMs  uint32 // pause after the last blink
}

// DefaultBlink is the pattern used when none is configured.
var DefaultBlink = BlinkPattern{BlinkMs: DefaultBlinkMs, WaitMs: DefaultWaitMs}

// Output returns the LED level elapsed ms after state entry. The result only
// depends on (count, elapsed), so any query time yields the right phase.
func (p BlinkPattern) Output(count uint8, elapsed uint32) Level {
	if count == 0 || p.BlinkMs == 0 {
		return Low
	}
	// uint64 so long phases cannot wrap the period to zero.
	blink := uint64(p.BlinkMs)
	active := uint64(count) * 2 * blink
	t := uint64(elapsed) % (active + uint64(p.WaitMs))
	if t >= active {
		return Low
	}
	return t%(2*blink) < blink
}

// At returns the LED level at now for a state entered at entry.
func (p BlinkPattern) At(count uint8, entry, now uint32) Level {
	return p.Output(count, now-entry)
}

// BlinkOutput evaluates the default pattern.
func BlinkOutput(count uint8, elapsed uint32) Level {
	return DefaultBlink.Output(count, elapsed)
}
