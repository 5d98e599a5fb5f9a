package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/sweeney/sensor-player/internal/logic"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SENSOR_PLAYER_"

// Settings holds the daemon configuration read from the TOML settings file.
type Settings struct {
	States  string          `toml:"states"`
	GPIO    GPIOSettings    `toml:"gpio"`
	Timing  TimingSettings  `toml:"timing"`
	Media   MediaSettings   `toml:"media"`
	MQTT    MQTTSettings    `toml:"mqtt"`
	HTTP    HTTPSettings    `toml:"http"`
	Logging LoggingSettings `toml:"logging"`
}

// GPIOSettings names the chip and BCM line offsets.
type GPIOSettings struct {
	Chip      string `toml:"chip"`
	Sensors   []int  `toml:"sensors"`
	Button    int    `toml:"button"`
	LEDStatus int    `toml:"led_status"`
	LEDMode   int    `toml:"led_mode"`
	LEDState  int    `toml:"led_state"`
}

// TimingSettings holds loop and indicator timings in milliseconds.
type TimingSettings struct {
	PollMs            int64 `toml:"poll_ms"`
	ConfirmMs         int64 `toml:"confirm_ms"`
	HoldMs            int64 `toml:"hold_ms"`
	BlinkMs           int64 `toml:"blink_ms"`
	WaitMs            int64 `toml:"wait_ms"`
	StartupMs         int64 `toml:"startup_ms"`
	HeartbeatMs       int64 `toml:"heartbeat_ms"`
	ButtonTransitions bool  `toml:"button_transitions"`
}

// MediaSettings configures the external audio player.
type MediaSettings struct {
	Dir     string   `toml:"dir"`
	Command []string `toml:"command"`
}

// MQTTSettings configures telemetry. An empty broker disables it.
type MQTTSettings struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
}

// HTTPSettings configures the status server. An empty address disables it.
type HTTPSettings struct {
	Addr string `toml:"addr"`
}

// LoggingSettings configures the zap logger.
type LoggingSettings struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultSettings returns the settings used when nothing overrides them.
// Pin numbers follow the wiring of the original board.
func DefaultSettings() Settings {
	return Settings{
		States: "/boot/fsm_config.json",
		GPIO: GPIOSettings{
			Chip:      "gpiochip0",
			Sensors:   []int{5, 6, 12, 13, 19, 20, 21, 26},
			Button:    22,
			LEDStatus: 10,
			LEDMode:   9,
			LEDState:  8,
		},
		Timing: TimingSettings{
			PollMs:            5,
			ConfirmMs:         logic.DefaultConfirmMs,
			HoldMs:            logic.DefaultHoldMs,
			BlinkMs:           logic.DefaultBlinkMs,
			WaitMs:            logic.DefaultWaitMs,
			StartupMs:         3000,
			HeartbeatMs:       int64(15 * time.Minute / time.Millisecond),
			ButtonTransitions: true,
		},
		Media: MediaSettings{
			Dir:     "/media/audio",
			Command: []string{"mpg123", "-q", "{file}"},
		},
		MQTT: MQTTSettings{
			ClientID: "sensor-player",
			Topic:    "sensor-player",
		},
		HTTP: HTTPSettings{
			Addr: ":80",
		},
		Logging: LoggingSettings{
			Level:  "INFO",
			Format: "CONSOLE",
		},
	}
}

// LoadSettings returns the defaults overlaid with the TOML file at path and
// then with SENSOR_PLAYER_* environment variables. A missing file is not an
// error; an unparsable one is.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return s, fmt.Errorf("read settings: %w", err)
		default:
			if err := toml.Unmarshal(data, &s); err != nil {
				return s, fmt.Errorf("parse settings %s: %w", path, err)
			}
		}
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return s, err
	}
	return s, s.Validate()
}

// applyEnv overrides fields from the environment. Keys are the TOML paths
// upper-cased with dots replaced by underscores, e.g. SENSOR_PLAYER_MQTT_BROKER.
func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STATES":         &s.States,
		"GPIO_CHIP":      &s.GPIO.Chip,
		"MEDIA_DIR":      &s.Media.Dir,
		"MQTT_BROKER":    &s.MQTT.Broker,
		"MQTT_CLIENT_ID": &s.MQTT.ClientID,
		"MQTT_TOPIC":     &s.MQTT.Topic,
		"HTTP_ADDR":      &s.HTTP.Addr,
		"LOGGING_LEVEL":  &s.Logging.Level,
		"LOGGING_FORMAT": &s.Logging.Format,
	}
	for key, p := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*p = v
		}
	}

	ints := map[string]*int64{
		"TIMING_POLL_MS":      &s.Timing.PollMs,
		"TIMING_CONFIRM_MS":   &s.Timing.ConfirmMs,
		"TIMING_HOLD_MS":      &s.Timing.HoldMs,
		"TIMING_BLINK_MS":     &s.Timing.BlinkMs,
		"TIMING_WAIT_MS":      &s.Timing.WaitMs,
		"TIMING_STARTUP_MS":   &s.Timing.StartupMs,
		"TIMING_HEARTBEAT_MS": &s.Timing.HeartbeatMs,
	}
	for key, p := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*p = n
		}
	}

	if v, ok := lookup(EnvPrefix + "TIMING_BUTTON_TRANSITIONS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTIMING_BUTTON_TRANSITIONS: %w", EnvPrefix, err)
		}
		s.Timing.ButtonTransitions = b
	}

	if v, ok := lookup(EnvPrefix + "GPIO_SENSORS"); ok {
		pins, err := parsePins(v)
		if err != nil {
			return fmt.Errorf("%sGPIO_SENSORS: %w", EnvPrefix, err)
		}
		s.GPIO.Sensors = pins
	}
	if v, ok := lookup(EnvPrefix + "MEDIA_COMMAND"); ok {
		s.Media.Command = strings.Fields(v)
	}
	return nil
}

func parsePins(v string) ([]int, error) {
	parts := strings.Split(v, ",")
	pins := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		pins = append(pins, n)
	}
	return pins, nil
}

// Validate checks values the daemon cannot run with.
func (s Settings) Validate() error {
	if len(s.GPIO.Sensors) != logic.NumSensors {
		return fmt.Errorf("gpio.sensors: need %d pins, got %d", logic.NumSensors, len(s.GPIO.Sensors))
	}
	if s.Timing.PollMs <= 0 {
		return fmt.Errorf("timing.poll_ms must be positive, got %d", s.Timing.PollMs)
	}
	for name, v := range map[string]int64{
		"timing.confirm_ms": s.Timing.ConfirmMs,
		"timing.hold_ms":    s.Timing.HoldMs,
		"timing.blink_ms":   s.Timing.BlinkMs,
		"timing.wait_ms":    s.Timing.WaitMs,
	} {
		if v < 0 || v > int64(^uint32(0)) {
			return fmt.Errorf("%s out of range: %d", name, v)
		}
	}
	for name, v := range map[string]int64{
		"timing.startup_ms":   s.Timing.StartupMs,
		"timing.heartbeat_ms": s.Timing.HeartbeatMs,
	} {
		if v < 0 || v > int64(^uint32(0)) {
			return fmt.Errorf("%s out of range: %d", name, v)
		}
	}
	if s.Timing.BlinkMs > 0 && s.Timing.WaitMs+int64(^uint8(0))*2*s.Timing.BlinkMs > int64(^uint32(0)) {
		return fmt.Errorf("timing.blink_ms (%d) and timing.wait_ms (%d) exceed the 32-bit blink period", s.Timing.BlinkMs, s.Timing.WaitMs)
	}
	if s.Timing.HoldMs != 0 && s.Timing.HoldMs <= s.Timing.ConfirmMs {
		return fmt.Errorf("timing.hold_ms (%d) must exceed timing.confirm_ms (%d)", s.Timing.HoldMs, s.Timing.ConfirmMs)
	}
	if len(s.Media.Command) == 0 {
		return errors.New("media.command is empty")
	}
	return nil
}

// Poll returns the polling interval.
func (s Settings) Poll() time.Duration {
	return time.Duration(s.Timing.PollMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; zero disables it.
func (s Settings) Heartbeat() time.Duration {
	return time.Duration(s.Timing.HeartbeatMs) * time.Millisecond
}

// Blink returns the configured state LED pattern.
func (s Settings) Blink() logic.BlinkPattern {
	return logic.BlinkPattern{BlinkMs: uint32(s.Timing.BlinkMs), WaitMs: uint32(s.Timing.WaitMs)}
}

// DocumentOptions returns the options used to load the state document.
func (s Settings) DocumentOptions() Options {
	return Options{ButtonTransitions: s.Timing.ButtonTransitions}
}
