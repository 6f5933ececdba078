package main

import "testing"

func TestNormalizedLoop(t *testing.T) {
	s := loadedState(100)
	if _, _, ok := NormalizedLoop(s); ok {
		t.Error("expected no loop with both bounds unset")
	}

	a := 30.0
	s.Loop.ASec = &a
	if _, _, ok := NormalizedLoop(s); ok {
		t.Error("expected no loop with one bound unset")
	}

	b := 20.0
	s.Loop.BSec = &b
	lo, hi, ok := NormalizedLoop(s)
	if !ok {
		t.Fatal("expected normalized loop with both bounds set")
	}
	if lo != 20.0 || hi != 30.0 {
		t.Errorf("expected [20, 30], got [%f, %f]", lo, hi)
	}

	if _, _, ok := NormalizedLoop(nil); ok {
		t.Error("expected nil state to have no loop")
	}
}

func TestCanEnableLoop(t *testing.T) {
	s := loadedState(100)
	if CanEnableLoop(s) {
		t.Error("expected loop not enableable without bounds")
	}
	a, b := 10.0, 20.0
	s.Loop = LoopPoints{ASec: &a, BSec: &b}
	if !CanEnableLoop(s) {
		t.Error("expected loop enableable with both bounds")
	}
}

func TestLoopOverlayVisible(t *testing.T) {
	s := loadedState(100)
	a, b := 10.0, 20.0
	s.Loop = LoopPoints{ASec: &a, BSec: &b, Enabled: false}
	if LoopOverlayVisible(s) {
		t.Error("expected overlay hidden while disabled")
	}
	s.Loop.Enabled = true
	if !LoopOverlayVisible(s) {
		t.Error("expected overlay visible when enabled with bounds")
	}
}

func TestPlaybackProgress(t *testing.T) {
	if PlaybackProgress(NewAppState()) != 0 {
		t.Error("expected zero progress without a track")
	}

	s := loadedState(200)
	s.Transport.CurrentTimeSec = 50
	if got := PlaybackProgress(s); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}

	// Out-of-range positions clamp rather than overflow.
	s.Transport.CurrentTimeSec = 500
	if got := PlaybackProgress(s); got != 1.0 {
		t.Errorf("expected clamp to 1.0, got %f", got)
	}
}

func TestPositionForFraction(t *testing.T) {
	s := loadedState(200)
	if got := PositionForFraction(s, 0.5); got != 100.0 {
		t.Errorf("expected 100.0, got %f", got)
	}
	if got := PositionForFraction(s, 1.5); got != 200.0 {
		t.Errorf("expected fraction clamped to duration, got %f", got)
	}
	if got := PositionForFraction(NewAppState(), 0.5); got != 0 {
		t.Errorf("expected 0 without a track, got %f", got)
	}
}

func TestViewportFraction(t *testing.T) {
	s := loadedState(100)
	s.Viewport = Viewport{StartSec: 20, EndSec: 40}

	if got := ViewportFraction(s, 30); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
	if got := ViewportFraction(s, 20); got != 0.0 {
		t.Errorf("expected 0.0 at left edge, got %f", got)
	}
	// Outside the window falls outside [0, 1]; callers decide whether to draw.
	if got := ViewportFraction(s, 50); got != 1.5 {
		t.Errorf("expected 1.5 past right edge, got %f", got)
	}
}
