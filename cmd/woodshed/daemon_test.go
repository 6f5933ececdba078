package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

// mockEngine is a test double for the playback engine. It records every call
// so scenarios can assert the exact command sequence the core loop issued.
type mockEngine struct {
	mu    sync.Mutex
	calls []string

	loadMeta TrackMeta
	loadErr  error

	// loadGate, when non-nil, blocks Load until released. Used to simulate a
	// slow decode that gets superseded by a newer import.
	loadGate chan struct{}
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		loadMeta: TrackMeta{URL: "/music/take-five.mp3", Name: "take-five.mp3", DurationSec: 324.0},
	}
}

func (m *mockEngine) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockEngine) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockEngine) Load(url string) (TrackMeta, error) {
	m.mu.Lock()
	gate := m.loadGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	m.record(fmt.Sprintf("Load(%s)", url))
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return TrackMeta{}, m.loadErr
	}
	meta := m.loadMeta
	meta.URL = url
	return meta, nil
}

func (m *mockEngine) Play(fromSec float64) error {
	m.record(fmt.Sprintf("Play(%.1f)", fromSec))
	return nil
}

func (m *mockEngine) Pause() error {
	m.record("Pause()")
	return nil
}

func (m *mockEngine) Seek(sec float64) error {
	m.record(fmt.Sprintf("Seek(%.1f)", sec))
	return nil
}

func (m *mockEngine) SetRate(rate float64) error {
	m.record(fmt.Sprintf("SetRate(%.2f)", rate))
	return nil
}

func (m *mockEngine) SetPitchSemitones(semitones float64) error {
	m.record(fmt.Sprintf("SetPitch(%.1f)", semitones))
	return nil
}

func (m *mockEngine) SetLoop(aSec, bSec *float64, enabled bool) error {
	a, b := "nil", "nil"
	if aSec != nil {
		a = fmt.Sprintf("%.1f", *aSec)
	}
	if bSec != nil {
		b = fmt.Sprintf("%.1f", *bSec)
	}
	m.record(fmt.Sprintf("SetLoop(%s,%s,%v)", a, b, enabled))
	return nil
}

func (m *mockEngine) Close() error {
	m.record("Close()")
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// step reduces one action and runs every emitted effect, like the core loop does.
func step(t *testing.T, state *AppState, action Action, cfg ReducerConfig, runner *Runner) *AppState {
	t.Helper()
	rr := Reduce(state, action, cfg)
	for _, e := range rr.Effects {
		runner.Run(e)
	}
	return rr.State
}

// waitAction receives one action from the runner with a deadline.
func waitAction(t *testing.T, actions <-chan Action) Action {
	t.Helper()
	select {
	case a := <-actions:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runner action")
		return nil
	}
}

func TestCoreFlow_ScrubCommitWhilePlaying(t *testing.T) {
	engine := newMockEngine()
	actions := make(chan Action, 16)
	runner := NewRunner(engine, nil, actions, testLogger())
	cfg := testReducerConfig()

	state := loadedState(324)
	state = step(t, state, user(TogglePlay{}, time.Now()), cfg, runner)
	state = step(t, state, PositionTicked{Sec: 30.0, At: time.Now()}, cfg, runner)
	state = step(t, state, user(ScrubChanged{AtSec: 45.0}, time.Now()), cfg, runner)
	state = step(t, state, user(ScrubEnded{AtSec: 45.0}, time.Now()), cfg, runner)

	want := []string{"Play(0.0)", "Play(45.0)"}
	got := engine.callLog()
	if len(got) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if state.Transport.CurrentTimeSec != 45.0 {
		t.Errorf("expected final position 45.0, got %f", state.Transport.CurrentTimeSec)
	}
}

func TestCoreFlow_LoopRoundTrip(t *testing.T) {
	engine := newMockEngine()
	actions := make(chan Action, 16)
	runner := NewRunner(engine, nil, actions, testLogger())
	cfg := testReducerConfig()

	state := loadedState(324)
	state = step(t, state, user(SetLoopStart{AtSec: 62.5}, time.Now()), cfg, runner)
	state = step(t, state, user(SetLoopEnd{AtSec: 71.0}, time.Now()), cfg, runner)
	state = step(t, state, user(SetLoopEnabled{Enabled: true}, time.Now()), cfg, runner)
	state = step(t, state, user(TogglePlay{}, time.Now()), cfg, runner)

	// The engine saw each loop mirror plus the play.
	want := []string{
		"SetLoop(62.5,nil,false)",
		"SetLoop(62.5,71.0,false)",
		"SetLoop(62.5,71.0,true)",
		"Play(0.0)",
	}
	got := engine.callLog()
	if len(got) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	// Engine reports crossing B: the core restarts from A.
	state = step(t, state, PositionTicked{Sec: 71.1, At: time.Now()}, cfg, runner)
	got = engine.callLog()
	if got[len(got)-1] != "Play(62.5)" {
		t.Errorf("expected wrap restart Play(62.5), got %s", got[len(got)-1])
	}
	if state.Transport.CurrentTimeSec != 62.5 {
		t.Errorf("expected position at A after wrap, got %f", state.Transport.CurrentTimeSec)
	}
}

func TestRunner_LoadSuccess(t *testing.T) {
	engine := newMockEngine()
	actions := make(chan Action, 16)
	runner := NewRunner(engine, nil, actions, testLogger())

	runner.Run(EffectLoad{URL: "/music/solo.flac"})

	a := waitAction(t, actions)
	done, ok := a.(ImportSucceeded)
	if !ok {
		t.Fatalf("expected ImportSucceeded, got %T", a)
	}
	if done.Track.URL != "/music/solo.flac" {
		t.Errorf("expected loaded URL passed through, got %s", done.Track.URL)
	}
	if done.Track.DurationSec != 324.0 {
		t.Errorf("expected duration 324.0, got %f", done.Track.DurationSec)
	}
}

func TestRunner_LoadFailure(t *testing.T) {
	engine := newMockEngine()
	engine.loadErr = errors.New("unsupported audio format: .aiff")
	actions := make(chan Action, 16)
	runner := NewRunner(engine, nil, actions, testLogger())

	runner.Run(EffectLoad{URL: "/music/broken.aiff"})

	a := waitAction(t, actions)
	failed, ok := a.(ImportFailed)
	if !ok {
		t.Fatalf("expected ImportFailed, got %T", a)
	}
	if failed.Message != "unsupported audio format: .aiff" {
		t.Errorf("unexpected failure message: %q", failed.Message)
	}
}

func TestRunner_SupersededLoadDropped(t *testing.T) {
	engine := newMockEngine()
	gate := make(chan struct{})
	engine.loadGate = gate
	actions := make(chan Action, 16)
	runner := NewRunner(engine, nil, actions, testLogger())

	// First load is stuck decoding when the second one arrives.
	runner.Run(EffectLoad{URL: "/music/first.mp3"})
	runner.Run(EffectLoad{URL: "/music/second.mp3"})
	close(gate)

	// Only the second load's completion may reach the core loop.
	a := waitAction(t, actions)
	done, ok := a.(ImportSucceeded)
	if !ok {
		t.Fatalf("expected ImportSucceeded, got %T", a)
	}
	if done.Track.URL != "/music/second.mp3" {
		t.Errorf("expected second load to win, got %s", done.Track.URL)
	}

	select {
	case extra := <-actions:
		t.Fatalf("expected stale load dropped, got %T", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunner_PeaksCachedAfterCompute(t *testing.T) {
	engine := newMockEngine()
	actions := make(chan Action, 16)
	computed := make(chan struct{})
	peaksFn := func(url string, buckets int) (WaveformPeaks, error) {
		defer close(computed)
		if buckets != 100 {
			t.Errorf("expected 100 buckets, got %d", buckets)
		}
		return WaveformPeaks{Min: []float32{-0.5}, Max: []float32{0.5}}, nil
	}
	runner := NewRunner(engine, peaksFn, actions, testLogger())

	runner.Run(EffectLoad{URL: "/music/solo.flac"})
	waitAction(t, actions) // consume ImportSucceeded
	runner.Run(EffectComputePeaks{Buckets: 100})

	select {
	case <-computed:
	case <-time.After(2 * time.Second):
		t.Fatal("peaks computation never ran")
	}

	// Caching happens just after the compute function returns; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		p := runner.Peaks()
		if len(p.Min) == 1 && p.Min[0] == -0.5 && p.Max[0] == 0.5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("peaks never cached: %+v", p)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunner_PublishSnapshotNonBlocking(t *testing.T) {
	engine := newMockEngine()
	actions := make(chan Action, 16)
	runner := NewRunner(engine, nil, actions, testLogger())

	reply := make(chan StateSnapshot, 1)
	snap := StateSnapshot{TrackName: "take-five.mp3", HasTrack: true}

	runner.Run(EffectPublishSnapshot{Snapshot: snap, Reply: reply})

	select {
	case got := <-reply:
		if got.TrackName != "take-five.mp3" {
			t.Errorf("unexpected snapshot: %+v", got)
		}
	default:
		t.Fatal("expected snapshot delivered to reply channel")
	}

	// A full reply channel must not wedge the runner.
	reply <- StateSnapshot{}
	runner.Run(EffectPublishSnapshot{Snapshot: snap, Reply: reply})

	// A nil reply channel is tolerated too.
	runner.Run(EffectPublishSnapshot{Snapshot: snap, Reply: nil})
}
