// Package status provides a thread-safe status tracker for the player daemon.
// It is written by the control loop and read by HTTP handlers and MQTT
// lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sensor-player/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	StatesFile  string
	PollMs      int64
	ConfirmMs   int64
	HoldMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Counts are running totals since startup.
type Counts struct {
	Transitions int
	Skips       int
	Resets      int
	MediaStarts int
	Errors      int
}

// Tick is what the control loop reports after each cycle.
type Tick struct {
	State       int
	Media       string
	MediaActive bool
	Flags       logic.Flags
	Button      logic.ButtonPhase
	Sensors     logic.Snapshot

	Transitioned bool
	Gesture      logic.ButtonEvent
	MediaStarted bool
	Failed       bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Loaded        bool
	NumStates     int
	State         int
	Media         string
	MediaActive   bool
	Flags         logic.Flags
	Button        logic.ButtonPhase
	Sensors       logic.Snapshot
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetLoaded records that the state document was loaded with n states.
func (t *Tracker) SetLoaded(n int) {
	t.mu.Lock()
	t.snap.Loaded = true
	t.snap.NumStates = n
	t.mu.Unlock()
}

// Update records the outcome of one control cycle.
func (t *Tracker) Update(tick Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.snap
	s.State = tick.State
	s.Media = tick.Media
	s.MediaActive = tick.MediaActive
	s.Flags = tick.Flags
	s.Button = tick.Button
	s.Sensors = tick.Sensors

	if tick.Transitioned {
		s.Counts.Transitions++
	}
	switch tick.Gesture {
	case logic.ButtonSkip:
		s.Counts.Skips++
	case logic.ButtonReset:
		s.Counts.Resets++
	}
	if tick.MediaStarted {
		s.Counts.MediaStarts++
	}
	if tick.Failed {
		s.Counts.Errors++
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
