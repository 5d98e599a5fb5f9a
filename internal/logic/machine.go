package logic

import (
	"errors"
	"fmt"
)

// ErrNoStates is returned when a configuration declares no states.
var ErrNoStates = errors.New("configuration has no states")

// ConfigError reports a configuration that violates the machine invariants.
// Indices are -1 when they do not apply.
type ConfigError struct {
	State      int
	Transition int
	Condition  int
	Reason     string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Condition >= 0:
		return fmt.Sprintf("state %d transition %d condition %d: %s", e.State, e.Transition, e.Condition, e.Reason)
	case e.Transition >= 0:
		return fmt.Sprintf("state %d transition %d: %s", e.State, e.Transition, e.Reason)
	case e.State >= 0:
		return fmt.Sprintf("state %d: %s", e.State, e.Reason)
	default:
		return e.Reason
	}
}

// Validate checks that states form a consistent machine: ids are dense and
// match their position, every target exists, every transition has at least
// one condition and every sensor pin is in range.
func Validate(states []State) error {
	if len(states) == 0 {
		return ErrNoStates
	}
	for i, s := range states {
		if s.ID != i {
			return &ConfigError{State: i, Transition: -1, Condition: -1,
				Reason: fmt.Sprintf("id %d does not match position %d", s.ID, i)}
		}
		for j, t := range s.Transitions {
			if t.Target < 0 || t.Target >= len(states) {
				return &ConfigError{State: i, Transition: j, Condition: -1,
					Reason: fmt.Sprintf("target state %d does not exist", t.Target)}
			}
			if len(t.Conditions) == 0 {
				return &ConfigError{State: i, Transition: j, Condition: -1, Reason: "no conditions"}
			}
			for k, c := range t.Conditions {
				switch c := c.(type) {
				case nil:
					return &ConfigError{State: i, Transition: j, Condition: k, Reason: "nil condition"}
				case Sensor:
					if int(c.Pin) >= NumSensors {
						return &ConfigError{State: i, Transition: j, Condition: k,
							Reason: fmt.Sprintf("sensor pin %d out of range 0..%d", c.Pin, NumSensors-1)}
					}
				}
			}
		}
	}
	return nil
}

// Machine is the runtime state of the configured controller. States are
// read-only after NewMachine; the current state and its entry timestamp are
// only changed by Evaluate when a transition commits.
type Machine struct {
	states     []State
	current    int
	lastChange uint32
}

// NewMachine validates states and returns a Machine in state 0, entered at now.
// The states slice is copied so later changes by the caller are not observed.
func NewMachine(states []State, now uint32) (*Machine, error) {
	if err := Validate(states); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cp := make([]State, len(states))
	for i, s := range states {
		cp[i] = s
		cp[i].Transitions = make([]Transition, len(s.Transitions))
		for j, t := range s.Transitions {
			cp[i].Transitions[j] = Transition{
				Target:     t.Target,
				Conditions: append([]Condition(nil), t.Conditions...),
			}
		}
	}
	return &Machine{states: cp, lastChange: now}, nil
}

// Evaluate checks the current state's transitions in declared order against
// one sensor snapshot. The first transition whose conditions all hold is
// committed: the machine moves to its target, the entry timestamp becomes
// now, and the flags that transition tested are cleared. Conditions are only
// checked, never consumed, until the whole transition is known to match.
// When nothing matches Evaluate changes nothing and returns false.
func (m *Machine) Evaluate(snap Snapshot, flags *Flags, audio AudioStatus, now uint32) (Change, bool) {
	if flags == nil {
		flags = &Flags{}
	}
	for i, t := range m.states[m.current].Transitions {
		if !m.holds(t, snap, flags, audio, now) {
			continue
		}
		change := Change{
			From:       m.current,
			To:         t.Target,
			Transition: i,
			Timestamp:  now,
			Consumed:   consumedBy(t),
		}
		if change.Consumed.Skip {
			flags.Skip = false
		}
		if change.Consumed.Reset {
			flags.Reset = false
		}
		m.current = t.Target
		m.lastChange = now
		return change, true
	}
	return Change{}, false
}

// holds reports whether every condition of t is satisfied. It has no side effects.
func (m *Machine) holds(t Transition, snap Snapshot, flags *Flags, audio AudioStatus, now uint32) bool {
	for _, c := range t.Conditions {
		switch c := c.(type) {
		case Sensor:
			if snap[c.Pin] != c.Level {
				return false
			}
		case TimeElapsed:
			if now-m.lastChange < c.DurationMs {
				return false
			}
		case AudioFinished:
			if audio == nil || !audio.IsFinished() {
				return false
			}
		case SkipFlag:
			if !flags.Skip {
				return false
			}
		case ResetFlag:
			if !flags.Reset {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func consumedBy(t Transition) Flags {
	var f Flags
	for _, c := range t.Conditions {
		switch c.(type) {
		case SkipFlag:
			f.Skip = true
		case ResetFlag:
			f.Reset = true
		}
	}
	return f
}

// Current returns the current state id.
func (m *Machine) Current() int {
	return m.current
}

// CurrentState returns the current state definition.
func (m *Machine) CurrentState() State {
	return m.states[m.current]
}

// LastChange returns the timestamp at which the current state was entered.
func (m *Machine) LastChange() uint32 {
	return m.lastChange
}

// Elapsed returns the time spent in the current state, tolerant of clock wraparound.
func (m *Machine) Elapsed(now uint32) uint32 {
	return now - m.lastChange
}

// NumStates returns the number of configured states.
func (m *Machine) NumStates() int {
	return len(m.states)
}

// State returns the definition of state id.
func (m *Machine) State(id int) (State, bool) {
	if id < 0 || id >= len(m.states) {
		return State{}, false
	}
	return m.states[id], true
}
