package main

// Pure, side-effect-free derived queries over AppState. Nothing here caches
// or mutates; callers pass the state they already hold.

// NormalizedLoop returns the loop range with a <= b, or ok=false when either
// bound is unset.
func NormalizedLoop(s *AppState) (a, b float64, ok bool) {
	if s == nil || !s.Loop.bothSet() {
		return 0, 0, false
	}
	a, b = *s.Loop.ASec, *s.Loop.BSec
	if a > b {
		a, b = b, a
	}
	return a, b, true
}

// CanEnableLoop reports whether the loop toggle would be accepted.
func CanEnableLoop(s *AppState) bool {
	return s != nil && s.Loop.bothSet()
}

// LoopOverlayVisible reports whether the loop overlay should render: enabled
// AND both bounds set.
func LoopOverlayVisible(s *AppState) bool {
	return s != nil && s.Loop.Enabled && s.Loop.bothSet()
}

// HasTrack reports whether a track is loaded.
func HasTrack(s *AppState) bool {
	return s != nil && s.Track != nil
}

// PlaybackProgress returns the position as a fraction of the track duration,
// in [0, 1]. Zero when no track is loaded or the duration is zero.
func PlaybackProgress(s *AppState) float64 {
	if s == nil || s.Track == nil || s.Track.DurationSec <= 0 {
		return 0
	}
	return clamp(s.Transport.CurrentTimeSec/s.Track.DurationSec, 0, 1)
}

// PositionForFraction maps a normalized input (0..1) to a track time.
func PositionForFraction(s *AppState, f float64) float64 {
	if s == nil || s.Track == nil {
		return 0
	}
	return clamp(f, 0, 1) * s.Track.DurationSec
}

// ViewportFraction maps a track time to its position within the viewport,
// 0 at the left edge and 1 at the right. Values outside the viewport fall
// outside [0, 1].
func ViewportFraction(s *AppState, t float64) float64 {
	if s == nil {
		return 0
	}
	width := s.Viewport.EndSec - s.Viewport.StartSec
	if width <= 0 {
		return 0
	}
	return (t - s.Viewport.StartSec) / width
}
