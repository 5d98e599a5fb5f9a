package media

import "sync"

// FakePlayer records calls for testing.
type FakePlayer struct {
	mu sync.Mutex

	Started  []string
	Stops    int
	Active   bool
	Finished bool

	// StartError, if set, is returned by Start.
	StartError error
}

// NewFakePlayer creates an idle fake player.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{}
}

// Start records ref and marks the player active.
func (f *FakePlayer) Start(ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Active = false
	f.Finished = false
	if f.StartError != nil {
		return f.StartError
	}
	f.Started = append(f.Started, ref)
	f.Active = true
	return nil
}

// Stop records the call.
func (f *FakePlayer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stops++
	f.Active = false
	f.Finished = false
	return nil
}

// Finish simulates the current media reaching its end.
func (f *FakePlayer) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Active = false
	f.Finished = true
}

func (f *FakePlayer) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Active
}

func (f *FakePlayer) IsFinished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Finished
}

// StartCount returns the number of successful starts.
func (f *FakePlayer) StartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Started)
}

// Last returns the most recently started ref, or "".
func (f *FakePlayer) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Started) == 0 {
		return ""
	}
	return f.Started[len(f.Started)-1]
}
