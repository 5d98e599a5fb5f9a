package driver

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sweeney/sensor-player/internal/gpio"
	"github.com/sweeney/sensor-player/internal/logic"
	"github.com/sweeney/sensor-player/internal/media"
)

type fakeClock struct {
	now uint32
}

func (c *fakeClock) NowMs() uint32 { return c.now }

// testStates: 0 loops idle.mp3 and moves on when sensor 0 is occupied or on
// skip; 1 plays story.mp3 once and returns on finish or reset; 2 is silent.
func testStates() []logic.State {
	return []logic.State{
		{ID: 0, MediaRef: "idle.mp3", Repeat: true, BlinkCount: 1, Transitions: []logic.Transition{
			{Target: 1, Conditions: []logic.Condition{logic.Sensor{Pin: 0, Level: logic.Low}}},
			{Target: 1, Conditions: []logic.Condition{logic.SkipFlag{}}},
			{Target: 2, Conditions: []logic.Condition{logic.ResetFlag{}}},
		}},
		{ID: 1, MediaRef: "story.mp3", BlinkCount: 2, Transitions: []logic.Transition{
			{Target: 0, Conditions: []logic.Condition{logic.AudioFinished{}}},
			{Target: 0, Conditions: []logic.Condition{logic.ResetFlag{}}},
		}},
		{ID: 2, MediaRef: "", BlinkCount: 0, Transitions: []logic.Transition{
			{Target: 0, Conditions: []logic.Condition{logic.TimeElapsed{DurationMs: 1000}}},
		}},
	}
}

type harness struct {
	runner *Runner
	clock  *fakeClock
	reader *gpio.FakeReader
	leds   *gpio.FakeWriter
	player *media.FakePlayer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m, err := logic.NewMachine(testStates(), 0)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	h := &harness{
		clock:  &fakeClock{},
		reader: gpio.NewFakeReader([]gpio.Sample{gpio.Idle()}),
		leds:   gpio.NewFakeWriter(),
		player: media.NewFakePlayer(),
	}
	h.runner = New(m, h.reader, h.leds, h.player, h.clock, Options{})
	return h
}

func (h *harness) tick(t *testing.T, at uint32, s gpio.Sample) Result {
	t.Helper()
	h.clock.now = at
	h.reader.Samples = []gpio.Sample{s}
	h.reader.Reset()
	res, err := h.runner.Tick()
	if err != nil {
		t.Fatalf("tick at %d: %v", at, err)
	}
	return res
}

func occupied(pins ...int) gpio.Sample {
	s := gpio.Idle()
	for _, p := range pins {
		s.Sensors[p] = logic.Low
	}
	return s
}

func pressed() gpio.Sample {
	s := gpio.Idle()
	s.Button = logic.Low
	return s
}

func TestFirstTickStartsInitialMedia(t *testing.T) {
	h := newHarness(t)

	res := h.tick(t, 0, gpio.Idle())
	if !res.MediaStarted || res.MediaRef != "idle.mp3" {
		t.Errorf("first tick: started=%v ref=%q", res.MediaStarted, res.MediaRef)
	}
	if res.Changed {
		t.Error("first tick should not report a transition")
	}
	if h.player.Stops != 1 {
		t.Errorf("expected stop before start, got %d stops", h.player.Stops)
	}

	res = h.tick(t, 5, gpio.Idle())
	if res.MediaStarted {
		t.Error("idle tick should not restart media")
	}
	if h.player.StartCount() != 1 {
		t.Errorf("expected 1 start, got %v", h.player.Started)
	}
}

func TestSensorTransitionStartsMedia(t *testing.T) {
	h := newHarness(t)
	h.tick(t, 0, gpio.Idle())

	res := h.tick(t, 10, occupied(0))
	if !res.Changed || res.Change.From != 0 || res.Change.To != 1 {
		t.Fatalf("expected 0 -> 1, got changed=%v %+v", res.Changed, res.Change)
	}
	if res.Change.Timestamp != 10 {
		t.Errorf("timestamp = %d, want 10", res.Change.Timestamp)
	}
	if !res.MediaStarted || res.MediaRef != "story.mp3" {
		t.Errorf("media: started=%v ref=%q", res.MediaStarted, res.MediaRef)
	}
	if want := []string{"idle.mp3", "story.mp3"}; !reflect.DeepEqual(h.player.Started, want) {
		t.Errorf("started = %v, want %v", h.player.Started, want)
	}
	if h.player.Stops != 2 {
		t.Errorf("stops = %d, want 2", h.player.Stops)
	}
}

func TestRepeatRestartsFinishedMedia(t *testing.T) {
	h := newHarness(t)
	h.tick(t, 0, gpio.Idle())

	h.player.Finish()
	res := h.tick(t, 5, gpio.Idle())
	if res.Changed {
		t.Fatal("repeat should not change state")
	}
	if !res.MediaStarted || res.MediaRef != "idle.mp3" {
		t.Errorf("expected idle.mp3 restart, got started=%v ref=%q", res.MediaStarted, res.MediaRef)
	}
	if h.player.StartCount() != 2 {
		t.Errorf("starts = %v", h.player.Started)
	}
}

func TestAudioFinishedTransition(t *testing.T) {
	h := newHarness(t)
	h.tick(t, 0, gpio.Idle())
	h.tick(t, 10, occupied(0))

	// story.mp3 does not repeat; finishing it takes the AUDIO_FINISHED transition.
	h.player.Finish()
	res := h.tick(t, 20, gpio.Idle())
	if !res.Changed || res.Change.To != 0 {
		t.Fatalf("expected 1 -> 0, got changed=%v %+v", res.Changed, res.Change)
	}
	if res.MediaRef != "idle.mp3" {
		t.Errorf("ref = %q, want idle.mp3", res.MediaRef)
	}
}

func TestTapSkipsOnSameTick(t *testing.T) {
	h := newHarness(t)
	h.tick(t, 0, gpio.Idle())

	h.tick(t, 100, pressed())
	h.tick(t, 150, pressed())
	if h.runner.ButtonPhase() != logic.PhasePressed {
		t.Fatalf("phase = %s, want PRESSED", h.runner.ButtonPhase())
	}

	res := h.tick(t, 200, gpio.Idle())
	if res.Button != logic.ButtonSkip {
		t.Errorf("button = %q, want SKIP", res.Button)
	}
	if !res.Changed || res.Change.To != 1 || !res.Change.Consumed.Skip {
		t.Errorf("expected skip transition to 1, got changed=%v %+v", res.Changed, res.Change)
	}
	if f := h.runner.Flags(); f.Skip || f.Reset {
		t.Errorf("flags should be consumed, got %+v", f)
	}
}

func TestUnconsumedFlagPersists(t *testing.T) {
	h := newHarness(t)
	h.tick(t, 0, gpio.Idle())
	h.tick(t, 10, occupied(0)) // into state 1, which has no skip transition

	h.tick(t, 100, pressed())
	h.tick(t, 150, pressed())
	res := h.tick(t, 200, gpio.Idle())
	if res.Button != logic.ButtonSkip || res.Changed {
		t.Fatalf("button=%q changed=%v", res.Button, res.Changed)
	}
	if !h.runner.Flags().Skip {
		t.Error("skip flag should stay pending")
	}
}

func TestLongPressResets(t *testing.T) {
	h := newHarness(t)
	h.tick(t, 0, gpio.Idle())

	h.tick(t, 100, pressed())
	h.tick(t, 150, pressed())
	res := h.tick(t, 2100, pressed())
	if res.Button != logic.ButtonReset {
		t.Fatalf("button = %q, want RESET", res.Button)
	}
	if !res.Changed || res.Change.To != 2 {
		t.Fatalf("expected reset transition to 2, got %+v", res.Change)
	}
	// State 2 has no media: stop only.
	if res.MediaStarted {
		t.Error("empty media ref should not start playback")
	}
	if h.player.IsActive() {
		t.Error("player should be stopped")
	}
	if h.runner.ButtonPhase() != logic.PhaseAwaitingRelease {
		t.Errorf("phase = %s", h.runner.ButtonPhase())
	}

	// Mode LED blinks while the button is still held.
	h.tick(t, 2100+ModeBlinkMs, pressed())
	if h.leds.Levels[gpio.LEDMode] != logic.Low {
		t.Error("mode LED should be in its off half")
	}

	res = h.tick(t, 2500, gpio.Idle())
	if res.Button != logic.ButtonNone {
		t.Errorf("release after reset should be silent, got %q", res.Button)
	}

	// TimeElapsed back to 0 after 1000ms in state 2.
	res = h.tick(t, 3100, gpio.Idle())
	if !res.Changed || res.Change.To != 0 {
		t.Errorf("expected timed return to 0, got %+v", res.Change)
	}
}

func TestReadErrorAbortsTick(t *testing.T) {
	h := newHarness(t)
	h.reader.ReadError = errors.New("line busy")

	_, err := h.runner.Tick()
	if err == nil {
		t.Fatal("expected error")
	}
	if h.player.StartCount() != 0 || h.player.Stops != 0 {
		t.Error("media must not be touched on read failure")
	}
	if len(h.leds.Writes) != 0 {
		t.Error("LEDs must not be touched on read failure")
	}

	h.reader.ReadError = nil
	res := h.tick(t, 5, gpio.Idle())
	if !res.MediaStarted {
		t.Error("next good tick should start the initial media")
	}
}

func TestMediaErrorStillDrivesLEDs(t *testing.T) {
	h := newHarness(t)
	h.player.StartError = errors.New("no sound card")

	h.clock.now = 0
	_, err := h.runner.Tick()
	if err == nil {
		t.Fatal("expected media error")
	}
	if h.leds.Levels[gpio.LEDStatus] != logic.High {
		t.Error("status LED should be on")
	}
}

func TestFailedMediaStartIsRetried(t *testing.T) {
	h := newHarness(t)
	h.player.StartError = errors.New("device busy")

	h.clock.now = 0
	if _, err := h.runner.Tick(); err == nil {
		t.Fatal("expected media error")
	}
	h.player.StartError = nil

	if res := h.tick(t, MediaRetryMs-1, gpio.Idle()); res.MediaStarted {
		t.Error("start retried before the backoff elapsed")
	}
	res := h.tick(t, MediaRetryMs, gpio.Idle())
	if !res.MediaStarted || res.MediaRef != "idle.mp3" {
		t.Errorf("retry: started=%v ref=%q", res.MediaStarted, res.MediaRef)
	}
	if res := h.tick(t, MediaRetryMs+5, gpio.Idle()); res.MediaStarted {
		t.Error("successful start should end the retries")
	}
	if h.player.StartCount() != 1 {
		t.Errorf("expected 1 start, got %v", h.player.Started)
	}
}

func TestTransitionCancelsMediaRetry(t *testing.T) {
	h := newHarness(t)
	h.player.StartError = errors.New("device busy")

	h.clock.now = 0
	h.runner.Tick()
	h.player.StartError = nil

	// Enter state 1 before the backoff ends; its media starts on entry.
	res := h.tick(t, 10, occupied(0))
	if !res.Changed || res.MediaRef != "story.mp3" {
		t.Fatalf("expected entry into state 1 with story.mp3, got %+v", res)
	}
	if res := h.tick(t, MediaRetryMs+10, occupied(0)); res.MediaStarted {
		t.Error("retry for the old state must not fire after a transition")
	}
}

func TestLEDs(t *testing.T) {
	h := newHarness(t)

	h.tick(t, 0, gpio.Idle())
	if h.leds.Levels[gpio.LEDStatus] != logic.High {
		t.Error("status LED should be on")
	}
	if h.leds.Levels[gpio.LEDState] != logic.High {
		t.Error("state LED should start a blink at entry")
	}
	if h.leds.Levels[gpio.LEDMode] != logic.Low {
		t.Error("mode LED should be off when idle")
	}

	h.tick(t, 250, gpio.Idle())
	if h.leds.Levels[gpio.LEDState] != logic.Low {
		t.Error("state LED should be off after the blink")
	}

	// Unchanged levels are not rewritten.
	writes := h.leds.Writes[gpio.LEDStatus]
	h.tick(t, 260, gpio.Idle())
	if h.leds.Writes[gpio.LEDStatus] != writes {
		t.Errorf("status LED rewritten: %d -> %d", writes, h.leds.Writes[gpio.LEDStatus])
	}

	// Pressed lights the mode LED.
	h.tick(t, 300, pressed())
	h.tick(t, 350, pressed())
	if h.leds.Levels[gpio.LEDMode] != logic.High {
		t.Error("mode LED should be on while pressed")
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	h.tick(t, 0, gpio.Idle())

	if err := h.runner.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if h.player.IsActive() {
		t.Error("media should be stopped")
	}
	for _, led := range []gpio.LED{gpio.LEDStatus, gpio.LEDMode, gpio.LEDState} {
		if h.leds.Levels[led] != logic.Low {
			t.Errorf("%s LED should be off", led)
		}
	}
}

func TestFlasher(t *testing.T) {
	tests := []struct {
		elapsed uint32
		want    LEDLevels
	}{
		{0, LEDLevels{logic.Low, logic.Low, logic.Low}},
		{50, LEDLevels{logic.High, logic.Low, logic.Low}},
		{110, LEDLevels{logic.High, logic.High, logic.Low}},
		{150, LEDLevels{logic.Low, logic.High, logic.Low}},
		{210, LEDLevels{logic.Low, logic.High, logic.High}},
		{250, LEDLevels{logic.Low, logic.Low, logic.High}},
		{350, LEDLevels{logic.High, logic.Low, logic.Low}},
	}
	for _, tt := range tests {
		if got := Flasher(tt.elapsed); got != tt.want {
			t.Errorf("Flasher(%d) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestReady(t *testing.T) {
	highs := 0
	for ms := uint32(0); ms < ReadyDurationMs; ms += ReadyFlashMs {
		levels := Ready(ms)
		if levels[gpio.LEDStatus] != logic.Low || levels[gpio.LEDState] != logic.Low {
			t.Fatalf("only the mode LED should flash, got %v at %d", levels, ms)
		}
		if levels[gpio.LEDMode] == logic.High {
			highs++
		}
	}
	if highs != ReadyFlashes {
		t.Errorf("got %d flashes, want %d", highs, ReadyFlashes)
	}
	if Ready(ReadyDurationMs) != (LEDLevels{}) {
		t.Error("signal should be over")
	}
}

func TestSequence(t *testing.T) {
	clock := &fakeClock{now: ^uint32(0) - 100} // runs across wraparound
	leds := gpio.NewFakeWriter()
	frames := 0

	err := Sequence(leds, clock, 300, Flasher, func() {
		frames++
		clock.now += 5
	})
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	if frames != 60 {
		t.Errorf("frames = %d, want 60", frames)
	}
	for _, led := range []gpio.LED{gpio.LEDStatus, gpio.LEDMode, gpio.LEDState} {
		if leds.Levels[led] != logic.Low {
			t.Errorf("%s LED left on", led)
		}
		if leds.Writes[led] != 61 {
			t.Errorf("%s LED writes = %d, want 61", led, leds.Writes[led])
		}
	}

	leds.WriteError = errors.New("line gone")
	if err := Sequence(leds, clock, 300, Flasher, func() { clock.now += 5 }); err == nil {
		t.Error("expected write error")
	}
}

func TestModeLED(t *testing.T) {
	if ModeLED(logic.PhaseIdle, 0, 100) != logic.Low {
		t.Error("idle should be off")
	}
	if ModeLED(logic.PhasePressed, 0, 100) != logic.High {
		t.Error("pressed should be on")
	}
	// Wraps cleanly when the press started just before the clock rolled over.
	start := ^uint32(0) - 50
	if ModeLED(logic.PhaseAwaitingRelease, start, 100) != logic.High {
		t.Error("151ms after the press should be in the on half")
	}
	if ModeLED(logic.PhaseAwaitingRelease, start, 200) != logic.Low {
		t.Error("251ms after the press should be in the off half")
	}
}

func TestSystemClock(t *testing.T) {
	c := NewSystemClock()
	a := c.NowMs()
	b := c.NowMs()
	if b-a > 1000 {
		t.Errorf("clock jumped: %d -> %d", a, b)
	}
}
