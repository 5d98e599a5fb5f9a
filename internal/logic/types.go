// Package logic contains the pure state-machine engine for the sensor player.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable as uint32 milliseconds that wrap around.
package logic

import "fmt"

// NumSensors is the number of sensor positions sampled every tick.
const NumSensors = 8

// Level is a digital pin level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Snapshot is the set of sensor levels sampled once per tick.
type Snapshot [NumSensors]Level

// Flags holds the one-shot button events. The Debouncer sets them and only
// the Machine clears them, when a committed transition consumed them.
type Flags struct {
	Skip  bool
	Reset bool
}

// ConditionKind identifies a Condition variant.
type ConditionKind string

const (
	KindSensor        ConditionKind = "SENSOR"
	KindTimeElapsed   ConditionKind = "TIME_PASSED"
	KindAudioFinished ConditionKind = "AUDIO_FINISHED"
	KindSkipFlag      ConditionKind = "SKIP_FLAG"
	KindResetFlag     ConditionKind = "RESET_FLAG"
)

// Condition is one term of a transition's conjunction. The set of
// implementations is closed: Sensor, TimeElapsed, AudioFinished, SkipFlag
// and ResetFlag.
type Condition interface {
	Kind() ConditionKind
	String() string
	condition()
}

// Sensor holds when the sampled level of Pin equals Level.
type Sensor struct {
	Pin   uint8
	Level Level
}

// TimeElapsed holds once at least Duration ms have passed since the last
// state change.
type TimeElapsed struct {
	DurationMs uint32
}

// AudioFinished holds when the media player reports the current media done.
type AudioFinished struct{}

// SkipFlag holds while the skip flag is set. A committed transition clears it.
type SkipFlag struct{}

// ResetFlag holds while the reset flag is set. A committed transition clears it.
type ResetFlag struct{}

func (Sensor) Kind() ConditionKind        { return KindSensor }
func (TimeElapsed) Kind() ConditionKind   { return KindTimeElapsed }
func (AudioFinished) Kind() ConditionKind { return KindAudioFinished }
func (SkipFlag) Kind() ConditionKind      { return KindSkipFlag }
func (ResetFlag) Kind() ConditionKind     { return KindResetFlag }

func (c Sensor) String() string      { return fmt.Sprintf("SENSOR(pin=%d, %s)", c.Pin, c.Level) }
func (c TimeElapsed) String() string { return fmt.Sprintf("TIME_PASSED(%dms)", c.DurationMs) }
func (AudioFinished) String() string { return string(KindAudioFinished) }
func (SkipFlag) String() string      { return string(KindSkipFlag) }
func (ResetFlag) String() string     { return string(KindResetFlag) }

func (Sensor) condition()        {}
func (TimeElapsed) condition()   {}
func (AudioFinished) condition() {}
func (SkipFlag) condition()      {}
func (ResetFlag) condition()     {}

// Transition moves the machine to Target when every condition holds.
type Transition struct {
	Target     int
	Conditions []Condition
}

// State is one node of the configured machine. Transitions are evaluated in
// declared order and the first full match wins.
type State struct {
	ID          int
	MediaRef    string
	Repeat      bool
	BlinkCount  uint8
	Transitions []Transition
}

// AudioStatus reports whether the current media finished playing.
type AudioStatus interface {
	IsFinished() bool
}

// Change describes a committed state transition.
type Change struct {
	From       int
	To         int
	Transition int // index within the source state's transitions
	Timestamp  uint32
	Consumed   Flags // flags cleared by this transition
}
