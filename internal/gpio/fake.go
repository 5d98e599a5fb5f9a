package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/sensor-player/internal/logic"
)

// FakeReader is a test double that returns scripted samples.
type FakeReader struct {
	// Samples contains scripted readings to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Idle returns a sample with every sensor free and the button released.
func Idle() Sample {
	var s Sample
	for i := range s.Sensors {
		s.Sensors[i] = logic.High
	}
	s.Button = logic.High
	return s
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (Sample, error) {
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeWriter records LED writes for test assertions.
type FakeWriter struct {
	// Levels holds the last level written to each LED.
	Levels map[LED]logic.Level

	// Writes counts calls to Write per LED.
	Writes map[LED]int

	// WriteError, if set, will be returned by Write.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates a FakeWriter with every LED low.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{
		Levels: make(map[LED]logic.Level),
		Writes: make(map[LED]int),
	}
}

// Write records the level.
func (f *FakeWriter) Write(led LED, level logic.Level) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if led < LEDStatus || led > LEDState {
		return fmt.Errorf("unknown led %d", led)
	}
	f.Levels[led] = level
	f.Writes[led]++
	return nil
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}
