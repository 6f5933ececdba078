package main

import "time"

// AppState is the single session-state aggregate owned by the core loop.
//
// Goals:
//   - Keep all reducer-owned state in one place (pure reducer, no external mutation).
//   - Replace the value wholesale on every reduced action; nothing else holds a
//     writable reference.
//
// Large derived data (waveform peaks) deliberately lives outside this value, in
// the effect runner, so the aggregate stays cheap to copy and snapshot.
type AppState struct {
	// Track is the loaded audio identity; nil until an import succeeds.
	Track *TrackMeta

	Transport Transport
	Loop      LoopPoints
	Mode      InteractionMode

	// Markers is an append-ordered list of user bookmarks.
	Markers []Marker

	// Viewport is a rendering hint only; recomputed on successful import.
	Viewport Viewport

	// IsLoading is true between importPicked and its success/failure.
	IsLoading bool

	// Toast, if non-nil, is a transient user-facing message.
	Toast *ToastState

	// IsScrubbing gates the engine's position feed: while a drag is in
	// progress, position ticks are dropped so they cannot clobber the drag.
	IsScrubbing bool
}

// TrackMeta identifies the loaded audio. Set only on successful import.
type TrackMeta struct {
	URL         string  `json:"url"`
	Name        string  `json:"name"`
	DurationSec float64 `json:"duration_sec"`
}

// Transport is the playback status.
type Transport struct {
	IsPlaying      bool
	CurrentTimeSec float64
	Speed          float64
	PitchSemitones float64
}

// LoopPoints are the A/B loop markers. When both bounds are set they are
// normalized on write so ASec <= BSec. Enabled may only become true with both
// bounds set.
type LoopPoints struct {
	ASec    *float64
	BSec    *float64
	Enabled bool
}

// Marker is a user bookmark. Immutable once created; deleted only by ID.
type Marker struct {
	ID      string  `json:"id"`
	TimeSec float64 `json:"time_sec"`
}

// InteractionMode decides how a waveform tap is interpreted.
type InteractionMode string

const (
	ModeSeek      InteractionMode = "seek"
	ModeMarker    InteractionMode = "marker"
	ModeLoopStart InteractionMode = "loop_start"
	ModeLoopEnd   InteractionMode = "loop_end"
)

// ValidMode reports whether m is one of the defined interaction modes.
func ValidMode(m InteractionMode) bool {
	switch m {
	case ModeSeek, ModeMarker, ModeLoopStart, ModeLoopEnd:
		return true
	}
	return false
}

// Viewport is the visible time window. EndSec > StartSec always.
type Viewport struct {
	StartSec float64
	EndSec   float64
}

// ToastState is a transient message with an absolute expiry.
type ToastState struct {
	Message   string
	ExpiresAt time.Time
}

// NewAppState returns the startup state: no track, paused at zero, unity
// speed, zero pitch, loop unset/disabled, no markers, default viewport.
func NewAppState() *AppState {
	return &AppState{
		Transport: Transport{
			Speed:          1.0,
			PitchSemitones: 0.0,
		},
		Mode: ModeSeek,
		Viewport: Viewport{
			StartSec: 0,
			EndSec:   defaultViewportSec,
		},
	}
}

// normalizeLoop swaps the loop bounds in place if both are set and A > B.
func (l *LoopPoints) normalize() {
	if l.ASec != nil && l.BSec != nil && *l.ASec > *l.BSec {
		l.ASec, l.BSec = l.BSec, l.ASec
	}
}

// bothSet reports whether both loop bounds are present.
func (l LoopPoints) bothSet() bool {
	return l.ASec != nil && l.BSec != nil
}

// duration returns the loaded track duration, or 0 when no track is loaded.
func (s *AppState) duration() float64 {
	if s.Track == nil {
		return 0
	}
	return s.Track.DurationSec
}

// clampToTrack clamps t into [0, duration].
func (s *AppState) clampToTrack(t float64) float64 {
	if t < 0 {
		return 0
	}
	if d := s.duration(); t > d {
		return d
	}
	return t
}

// setToast installs a transient message expiring toastTTL after now.
func (s *AppState) setToast(message string, now time.Time) {
	s.Toast = &ToastState{
		Message:   message,
		ExpiresAt: now.Add(toastTTL),
	}
}

// ============================================================================
// Snapshots
// ============================================================================

// StateSnapshot is a read-only copy of the session state, safe to hand to
// other goroutines (WS init messages, IPC queries). Built only by the core
// loop.
type StateSnapshot struct {
	TrackName   string  `json:"track_name"`
	DurationSec float64 `json:"duration_sec"`
	HasTrack    bool    `json:"has_track"`

	IsPlaying      bool    `json:"is_playing"`
	CurrentTimeSec float64 `json:"current_time_sec"`
	Speed          float64 `json:"speed"`
	PitchSemitones float64 `json:"pitch_semitones"`

	LoopASec    *float64 `json:"loop_a_sec"`
	LoopBSec    *float64 `json:"loop_b_sec"`
	LoopEnabled bool     `json:"loop_enabled"`

	Mode    InteractionMode `json:"mode"`
	Markers []Marker        `json:"markers"`

	ViewportStartSec float64 `json:"viewport_start_sec"`
	ViewportEndSec   float64 `json:"viewport_end_sec"`

	IsLoading    bool   `json:"is_loading"`
	IsScrubbing  bool   `json:"is_scrubbing"`
	ToastMessage string `json:"toast_message,omitempty"`

	At time.Time `json:"at"`
}

// Snapshot copies the current state into a detached snapshot.
// Pointer fields are duplicated so the receiver cannot reach reducer-owned memory.
func (s *AppState) Snapshot(now time.Time) StateSnapshot {
	snap := StateSnapshot{
		IsPlaying:      s.Transport.IsPlaying,
		CurrentTimeSec: s.Transport.CurrentTimeSec,
		Speed:          s.Transport.Speed,
		PitchSemitones: s.Transport.PitchSemitones,

		LoopEnabled: s.Loop.Enabled,

		Mode:    s.Mode,
		Markers: append([]Marker(nil), s.Markers...),

		ViewportStartSec: s.Viewport.StartSec,
		ViewportEndSec:   s.Viewport.EndSec,

		IsLoading:   s.IsLoading,
		IsScrubbing: s.IsScrubbing,

		At: now,
	}
	if s.Track != nil {
		snap.HasTrack = true
		snap.TrackName = s.Track.Name
		snap.DurationSec = s.Track.DurationSec
	}
	if s.Loop.ASec != nil {
		a := *s.Loop.ASec
		snap.LoopASec = &a
	}
	if s.Loop.BSec != nil {
		b := *s.Loop.BSec
		snap.LoopBSec = &b
	}
	if s.Toast != nil {
		snap.ToastMessage = s.Toast.Message
	}
	return snap
}
