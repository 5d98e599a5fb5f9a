// Package config loads the state document and the daemon settings.
//
// The state document uses the layout of the original SD-card file:
//
//	{"states": [{"id": 0, "audioFile": "intro.mp3", "repeat": true, "blinkCount": 1,
//	  "transitions": [{"targetState": 1, "conditions": [
//	    {"type": "SENSOR", "data": {"sensorPin": 0, "state": false}}]}]}]}
//
// JSON and YAML encodings share the same keys.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/sensor-player/internal/logic"
)

// Format is a state document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is the decoded state document before conversion.
type Document struct {
	States []StateDoc `json:"states" yaml:"states"`
}

// StateDoc is one entry of the states array.
type StateDoc struct {
	ID          int             `json:"id" yaml:"id"`
	AudioFile   string          `json:"audioFile" yaml:"audioFile"`
	MediaRef    string          `json:"mediaRef,omitempty" yaml:"mediaRef,omitempty"`
	Repeat      bool            `json:"repeat" yaml:"repeat"`
	BlinkCount  uint8           `json:"blinkCount" yaml:"blinkCount"`
	Transitions []TransitionDoc `json:"transitions" yaml:"transitions"`
}

// TransitionDoc is one entry of a state's transitions array.
type TransitionDoc struct {
	TargetState int            `json:"targetState" yaml:"targetState"`
	Conditions  []ConditionDoc `json:"conditions" yaml:"conditions"`
}

// ConditionDoc is one entry of a transition's conditions array.
type ConditionDoc struct {
	Type string        `json:"type" yaml:"type"`
	Data ConditionData `json:"data,omitempty" yaml:"data,omitempty"`
}

// ConditionData carries the payload of SENSOR and TIME_PASSED conditions.
type ConditionData struct {
	SensorPin *int    `json:"sensorPin,omitempty" yaml:"sensorPin,omitempty"`
	State     *bool   `json:"state,omitempty" yaml:"state,omitempty"`
	Duration  *uint32 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Options control how a document becomes a state list.
type Options struct {
	// ButtonTransitions appends, after each state's declared transitions,
	// a SKIP_FLAG transition to the next state (wrapping to 0) and a
	// RESET_FLAG transition to state 0.
	ButtonTransitions bool
}

// FormatFromPath picks the document format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported state document extension %q", filepath.Ext(path))
	}
}

// LoadFile reads, decodes and validates the state document at path.
func LoadFile(path string, opts Options) ([]logic.State, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state document: %w", err)
	}
	states, err := Parse(data, format, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return states, nil
}

// Parse decodes a state document and converts it into validated states.
// Declared transition and condition order is preserved.
func Parse(data []byte, format Format, opts Options) ([]logic.State, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return doc.ToStates(opts)
}

// Decode decodes a state document without converting it.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return &doc, nil
}

// ToStates converts the document into validated states.
func (d *Document) ToStates(opts Options) ([]logic.State, error) {
	n := len(d.States)
	states := make([]logic.State, n)
	for i, sd := range d.States {
		media := sd.AudioFile
		if sd.MediaRef != "" {
			if media != "" && media != sd.MediaRef {
				return nil, &logic.ConfigError{State: i, Transition: -1, Condition: -1,
					Reason: fmt.Sprintf("audioFile %q and mediaRef %q disagree", media, sd.MediaRef)}
			}
			media = sd.MediaRef
		}
		st := logic.State{
			ID:          sd.ID,
			MediaRef:    media,
			Repeat:      sd.Repeat,
			BlinkCount:  sd.BlinkCount,
			Transitions: make([]logic.Transition, 0, len(sd.Transitions)+2),
		}
		for j, td := range sd.Transitions {
			tr := logic.Transition{
				Target:     td.TargetState,
				Conditions: make([]logic.Condition, 0, len(td.Conditions)),
			}
			for k, cd := range td.Conditions {
				c, err := cd.condition()
				if err != nil {
					return nil, &logic.ConfigError{State: i, Transition: j, Condition: k, Reason: err.Error()}
				}
				tr.Conditions = append(tr.Conditions, c)
			}
			st.Transitions = append(st.Transitions, tr)
		}
		if opts.ButtonTransitions && n > 0 {
			st.Transitions = append(st.Transitions,
				logic.Transition{Target: (i + 1) % n, Conditions: []logic.Condition{logic.SkipFlag{}}},
				logic.Transition{Target: 0, Conditions: []logic.Condition{logic.ResetFlag{}}},
			)
		}
		states[i] = st
	}
	if err := logic.Validate(states); err != nil {
		return nil, err
	}
	return states, nil
}

func (cd ConditionDoc) condition() (logic.Condition, error) {
	switch logic.ConditionKind(strings.ToUpper(strings.TrimSpace(cd.Type))) {
	case logic.KindSensor:
		if cd.Data.SensorPin == nil || cd.Data.State == nil {
			return nil, fmt.Errorf("SENSOR requires data.sensorPin and data.state")
		}
		pin := *cd.Data.SensorPin
		if pin < 0 || pin >= logic.NumSensors {
			return nil, fmt.Errorf("sensor pin %d out of range 0..%d", pin, logic.NumSensors-1)
		}
		return logic.Sensor{Pin: uint8(pin), Level: logic.Level(*cd.Data.State)}, nil
	case logic.KindTimeElapsed:
		if cd.Data.Duration == nil {
			return nil, fmt.Errorf("TIME_PASSED requires data.duration")
		}
		return logic.TimeElapsed{DurationMs: *cd.Data.Duration}, nil
	case logic.KindAudioFinished:
		return logic.AudioFinished{}, nil
	case logic.KindSkipFlag:
		return logic.SkipFlag{}, nil
	case logic.KindResetFlag:
		return logic.ResetFlag{}, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", cd.Type)
	}
}
