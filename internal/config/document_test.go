package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sweeney/sensor-player/internal/logic"
)

const sampleJSON = `{
  "states": [
    {
      "id": 0, "audioFile": "idle.mp3", "repeat": true, "blinkCount": 1,
      "transitions": [
        {"targetState": 1, "conditions": [
          {"type": "SENSOR", "data": {"sensorPin": 0, "state": false}},
          {"type": "SENSOR", "data": {"sensorPin": 1, "state": true}}
        ]},
        {"targetState": 2, "conditions": [
          {"type": "TIME_PASSED", "data": {"duration": 30000}}
        ]}
      ]
    },
    {
      "id": 1, "audioFile": "story.mp3", "repeat": false, "blinkCount": 2,
      "transitions": [
        {"targetState": 0, "conditions": [{"type": "AUDIO_FINISHED"}]}
      ]
    },
    {
      "id": 2, "audioFile": "", "repeat": false, "blinkCount": 0,
      "transitions": [
        {"targetState": 0, "conditions": [{"type": "SKIP_FLAG"}]},
        {"targetState": 0, "conditions": [{"type": "RESET_FLAG"}]}
      ]
    }
  ]
}`

const sampleYAML = `
states:
  - id: 0
    mediaRef: idle.mp3
    repeat: true
    blinkCount: 1
    transitions:
      - targetState: 1
        conditions:
          - type: SENSOR
            data: {sensorPin: 0, state: false}
          - type: SENSOR
            data: {sensorPin: 1, state: true}
      - targetState: 2
        conditions:
          - type: TIME_PASSED
            data: {duration: 30000}
  - id: 1
    audioFile: story.mp3
    blinkCount: 2
    transitions:
      - targetState: 0
        conditions:
          - type: AUDIO_FINISHED
  - id: 2
    transitions:
      - targetState: 0
        conditions:
          - type: SKIP_FLAG
      - targetState: 0
        conditions:
          - type: RESET_FLAG
`

func checkSample(t *testing.T, states []logic.State) {
	t.Helper()

	if len(states) != 3 {
		t.Fatalf("expected 3 states, got %d", len(states))
	}
	wantTransitions := []int{2, 1, 2}
	for i, s := range states {
		if s.ID != i {
			t.Errorf("state %d: id %d", i, s.ID)
		}
		if len(s.Transitions) != wantTransitions[i] {
			t.Errorf("state %d: expected %d transitions, got %d", i, wantTransitions[i], len(s.Transitions))
		}
	}

	s0 := states[0]
	if s0.MediaRef != "idle.mp3" || !s0.Repeat || s0.BlinkCount != 1 {
		t.Errorf("state 0 fields: %+v", s0)
	}
	if got := s0.Transitions[0].Conditions; len(got) != 2 ||
		got[0] != (logic.Sensor{Pin: 0, Level: logic.Low}) ||
		got[1] != (logic.Sensor{Pin: 1, Level: logic.High}) {
		t.Errorf("state 0 transition 0 conditions: %v", got)
	}
	if s0.Transitions[0].Target != 1 || s0.Transitions[1].Target != 2 {
		t.Errorf("state 0 targets out of order: %d, %d", s0.Transitions[0].Target, s0.Transitions[1].Target)
	}
	if got := s0.Transitions[1].Conditions[0]; got != (logic.TimeElapsed{DurationMs: 30000}) {
		t.Errorf("state 0 transition 1 condition: %v", got)
	}

	if _, ok := states[1].Transitions[0].Conditions[0].(logic.AudioFinished); !ok {
		t.Errorf("state 1 condition: %v", states[1].Transitions[0].Conditions[0])
	}
	if _, ok := states[2].Transitions[0].Conditions[0].(logic.SkipFlag); !ok {
		t.Errorf("state 2 transition 0: %v", states[2].Transitions[0].Conditions[0])
	}
	if _, ok := states[2].Transitions[1].Conditions[0].(logic.ResetFlag); !ok {
		t.Errorf("state 2 transition 1: %v", states[2].Transitions[1].Conditions[0])
	}
}

func TestParseJSONRoundTrip(t *testing.T) {
	states, err := Parse([]byte(sampleJSON), FormatJSON, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkSample(t, states)
}

func TestParseYAMLRoundTrip(t *testing.T) {
	states, err := Parse([]byte(sampleYAML), FormatYAML, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkSample(t, states)
}

func TestParseBuildsMachine(t *testing.T) {
	states, err := Parse([]byte(sampleJSON), FormatJSON, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := logic.NewMachine(states, 0)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if m.NumStates() != 3 {
		t.Errorf("expected 3 states, got %d", m.NumStates())
	}
}

func TestParseButtonTransitions(t *testing.T) {
	states, err := Parse([]byte(sampleJSON), FormatJSON, Options{ButtonTransitions: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, s := range states {
		n := len(s.Transitions)
		skip := s.Transitions[n-2]
		reset := s.Transitions[n-1]
		if _, ok := skip.Conditions[0].(logic.SkipFlag); !ok || skip.Target != (i+1)%3 {
			t.Errorf("state %d: bad skip transition %+v", i, skip)
		}
		if _, ok := reset.Conditions[0].(logic.ResetFlag); !ok || reset.Target != 0 {
			t.Errorf("state %d: bad reset transition %+v", i, reset)
		}
	}
	// Declared transitions stay first.
	if states[0].Transitions[0].Target != 1 || len(states[0].Transitions) != 4 {
		t.Errorf("declared transitions lost precedence: %+v", states[0].Transitions)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantConfig bool
	}{
		{"malformed", `{"states": [`, false},
		{"unknown field", `{"states": [{"id": 0, "colour": "red"}]}`, false},
		{"no states", `{"states": []}`, false},
		{"dangling target", `{"states": [{"id": 0, "transitions": [
			{"targetState": 3, "conditions": [{"type": "SKIP_FLAG"}]}]}]}`, true},
		{"empty conditions", `{"states": [{"id": 0, "transitions": [
			{"targetState": 0, "conditions": []}]}]}`, true},
		{"unknown condition", `{"states": [{"id": 0, "transitions": [
			{"targetState": 0, "conditions": [{"type": "MOON_PHASE"}]}]}]}`, true},
		{"sensor without pin", `{"states": [{"id": 0, "transitions": [
			{"targetState": 0, "conditions": [{"type": "SENSOR", "data": {"state": true}}]}]}]}`, true},
		{"sensor pin out of range", `{"states": [{"id": 0, "transitions": [
			{"targetState": 0, "conditions": [{"type": "SENSOR", "data": {"sensorPin": 9, "state": true}}]}]}]}`, true},
		{"time without duration", `{"states": [{"id": 0, "transitions": [
			{"targetState": 0, "conditions": [{"type": "TIME_PASSED"}]}]}]}`, true},
		{"id out of order", `{"states": [{"id": 1}]}`, true},
		{"media disagreement", `{"states": [{"id": 0, "audioFile": "a.mp3", "mediaRef": "b.mp3"}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON, Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *logic.ConfigError
			if got := errors.As(err, &ce); got != tt.wantConfig {
				t.Errorf("ConfigError = %v, want %v (err: %v)", got, tt.wantConfig, err)
			}
		})
	}
}

func TestParseUnknownFormat(t *testing.T) {
	if _, err := Parse([]byte(sampleJSON), Format("xml"), Options{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"FSM_Config.json", FormatJSON, false},
		{"/etc/player/states.YAML", FormatYAML, false},
		{"states.yml", FormatYAML, false},
		{"states.toml", "", true},
		{"states", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	states, err := LoadFile(path, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkSample(t, states)

	if _, err := LoadFile(filepath.Join(dir, "missing.json"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}
