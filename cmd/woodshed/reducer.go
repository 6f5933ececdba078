package main

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// This file implements the reducer-style architecture building blocks:
//
//   - Actions: inputs to the reducer (user intent, engine callbacks, async
//     load/compute completions, toast sweep), defined in actions.go
//   - Effects: side effects requested by the reducer (engine commands, async
//     load and peak computation)
//   - Reduce(): computes next state + effects + broadcasts, without performing I/O
//
// The reducer must be pure. Time and marker-ID generation are injected
// (TimedAction timestamps, ReducerConfig.NewID); the reducer never touches the
// wall clock, the engine, or the filesystem.
//
// The core loop is responsible for executing Effects and feeding completions
// back as Actions.

// ============================================================================
// Effects (side effects)
// ============================================================================

// Effect represents an external side effect to be executed by the core loop's
// runner, in the order emitted. The engine is stateless with respect to
// transport position: every play carries an explicit start time.
type Effect interface {
	effectMarker()
	String() string
}

// EffectPause stops engine output. The core keeps the resume position.
type EffectPause struct{}

func (EffectPause) effectMarker() {}
func (EffectPause) String() string { return "EffectPause()" }

// EffectPlayFrom starts (or restarts) playback at an explicit position.
type EffectPlayFrom struct {
	FromSec float64
}

func (EffectPlayFrom) effectMarker() {}
func (e EffectPlayFrom) String() string {
	return fmt.Sprintf("EffectPlayFrom(from_sec=%.3f)", e.FromSec)
}

// EffectSeek repositions the engine without starting playback.
type EffectSeek struct {
	ToSec float64
}

func (EffectSeek) effectMarker() {}
func (e EffectSeek) String() string { return fmt.Sprintf("EffectSeek(to_sec=%.3f)", e.ToSec) }

// EffectSetRate applies a playback speed.
type EffectSetRate struct {
	Rate float64
}

func (EffectSetRate) effectMarker() {}
func (e EffectSetRate) String() string { return fmt.Sprintf("EffectSetRate(rate=%.3f)", e.Rate) }

// EffectSetPitch applies a pitch shift in semitones.
type EffectSetPitch struct {
	Semitones float64
}

func (EffectSetPitch) effectMarker() {}
func (e EffectSetPitch) String() string {
	return fmt.Sprintf("EffectSetPitch(semitones=%.2f)", e.Semitones)
}

// EffectSetLoop mirrors the model's loop points to the engine. This is a
// best-effort hint: loop wrap correctness is owned by the reducer's tick
// handling, never by the engine.
type EffectSetLoop struct {
	ASec    *float64
	BSec    *float64
	Enabled bool
}

func (EffectSetLoop) effectMarker() {}
func (e EffectSetLoop) String() string {
	a, b := "nil", "nil"
	if e.ASec != nil {
		a = fmt.Sprintf("%.3f", *e.ASec)
	}
	if e.BSec != nil {
		b = fmt.Sprintf("%.3f", *e.BSec)
	}
	return fmt.Sprintf("EffectSetLoop(a=%s, b=%s, enabled=%v)", a, b, e.Enabled)
}

// EffectLoad asks the engine to load a file. Executed asynchronously; the
// result comes back as ImportSucceeded or ImportFailed.
type EffectLoad struct {
	URL string
}

func (EffectLoad) effectMarker() {}
func (e EffectLoad) String() string { return fmt.Sprintf("EffectLoad(url=%s)", e.URL) }

// EffectComputePeaks asks the runner to compute waveform peaks for the most
// recently loaded URL. Executed asynchronously; failure degrades silently to
// empty peaks.
type EffectComputePeaks struct {
	Buckets int
}

func (EffectComputePeaks) effectMarker() {}
func (e EffectComputePeaks) String() string {
	return fmt.Sprintf("EffectComputePeaks(buckets=%d)", e.Buckets)
}

// EffectPublishSnapshot delivers a reducer-produced snapshot to a requester.
// Moving the channel send into the effects layer keeps the reducer pure.
type EffectPublishSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan StateSnapshot
}

func (EffectPublishSnapshot) effectMarker() {}
func (EffectPublishSnapshot) String() string { return "EffectPublishSnapshot()" }

// ============================================================================
// Broadcasts (reducer-emitted UI notifications)
// ============================================================================

// StateBroadcast is a notification fanned out to state-WS clients by the
// broadcaster goroutine. Broadcasts never mutate anything.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastPositionChanged fires when the rounded playback position moves.
// Internal state keeps full precision; the payload is rounded so bursty ticks
// don't flood clients.
type BroadcastPositionChanged struct {
	Sec float64
	At  time.Time
}

// BroadcastTransportChanged fires on play/pause flips and speed/pitch changes.
type BroadcastTransportChanged struct {
	IsPlaying      bool
	Speed          float64
	PitchSemitones float64
	At             time.Time
}

// BroadcastTrackLoaded fires on successful import.
type BroadcastTrackLoaded struct {
	Name        string
	DurationSec float64
	At          time.Time
}

// BroadcastLoopChanged fires whenever loop bounds or enablement change.
type BroadcastLoopChanged struct {
	ASec    *float64
	BSec    *float64
	Enabled bool
	At      time.Time
}

// BroadcastMarkersChanged fires whenever the marker list changes.
type BroadcastMarkersChanged struct {
	Markers []Marker
	At      time.Time
}

// BroadcastToast fires when a transient message is shown.
type BroadcastToast struct {
	Message string
	At      time.Time
}

func (BroadcastPositionChanged) broadcastMarker()  {}
func (BroadcastTransportChanged) broadcastMarker() {}
func (BroadcastTrackLoaded) broadcastMarker()      {}
func (BroadcastLoopChanged) broadcastMarker()      {}
func (BroadcastMarkersChanged) broadcastMarker()   {}
func (BroadcastToast) broadcastMarker()            {}

// ============================================================================
// Reducer input/output
// ============================================================================

// ReducerConfig carries the reducer's injected dependencies. Keeping ID
// generation here (rather than calling uuid directly inside Reduce) makes the
// reducer deterministic under test.
type ReducerConfig struct {
	// NewID mints marker IDs. Defaults to uuid.NewString.
	NewID func() string

	// PeakBuckets is the waveform resolution requested after a load.
	// Zero means the built-in default.
	PeakBuckets int
}

// DefaultReducerConfig returns the production configuration.
func DefaultReducerConfig() ReducerConfig {
	return ReducerConfig{NewID: uuid.NewString, PeakBuckets: defaultPeakBuckets}
}

func (c ReducerConfig) newID() string {
	if c.NewID == nil {
		return uuid.NewString()
	}
	return c.NewID()
}

func (c ReducerConfig) peakBuckets() int {
	if c.PeakBuckets <= 0 {
		return defaultPeakBuckets
	}
	return c.PeakBuckets
}

// ReduceResult is the output of Reduce(): next state plus Effects to execute
// (in order) and Broadcasts to fan out to state-WS clients.
type ReduceResult struct {
	State      *AppState
	Effects    []Effect
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
//   - Must not perform I/O
//   - Must not block
//   - Must not mutate anything outside the returned state
//
// The core loop must:
//   - execute Effects in order
//   - translate engine callbacks and async completions into Actions
//   - feed those Actions back into Reduce()
func Reduce(s *AppState, action Action, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = NewAppState()
	}

	var effects []Effect
	var bcasts []StateBroadcast

	switch a := action.(type) {
	case TimedAction:
		effects, bcasts = reduceUser(s, a.Action, a.At, cfg)

	case PositionTicked:
		// The scrub gate: while a drag is in progress the engine's position
		// feed is dropped entirely so it cannot clobber the drag.
		if s.IsScrubbing {
			break
		}
		prev := roundToStep(s.Transport.CurrentTimeSec)
		if s.Loop.Enabled && s.Loop.bothSet() && a.Sec >= *s.Loop.BSec {
			// Loop wrap is a forced restart from A. The engine's own loop
			// hint is best-effort only; this is the authoritative path.
			s.Transport.CurrentTimeSec = *s.Loop.ASec
			effects = append(effects, EffectPlayFrom{FromSec: *s.Loop.ASec})
		} else {
			s.Transport.CurrentTimeSec = a.Sec
		}
		if cur := roundToStep(s.Transport.CurrentTimeSec); cur != prev {
			bcasts = append(bcasts, BroadcastPositionChanged{Sec: cur, At: a.At})
		}

	case PlaybackFinished:
		// Natural end-of-media is a terminal transport event, not an error.
		// Position stays where the engine left it.
		if s.Transport.IsPlaying {
			s.Transport.IsPlaying = false
			bcasts = append(bcasts, transportBroadcast(s, a.At))
		}

	case ImportSucceeded:
		track := a.Track
		s.Track = &track
		s.IsLoading = false
		s.IsScrubbing = false
		s.Markers = nil
		s.Loop = LoopPoints{}
		s.Transport.IsPlaying = false
		s.Transport.CurrentTimeSec = 0
		s.Viewport = Viewport{StartSec: 0, EndSec: track.DurationSec}
		effects = append(effects, EffectComputePeaks{Buckets: cfg.peakBuckets()})
		bcasts = append(bcasts, BroadcastTrackLoaded{
			Name:        track.Name,
			DurationSec: track.DurationSec,
			At:          a.At,
		})

	case ImportFailed:
		s.IsLoading = false
		msg := a.Message
		if msg == "" {
			msg = defaultToastImportFailed
		}
		s.setToast(msg, a.At)
		bcasts = append(bcasts, BroadcastToast{Message: msg, At: a.At})

	case ClearToastIfExpired:
		if s.Toast != nil && !a.Now.Before(s.Toast.ExpiresAt) {
			s.Toast = nil
		}

	case RequestStateSnapshot:
		effects = append(effects, EffectPublishSnapshot{
			Snapshot: s.Snapshot(a.At),
			Reply:    a.Reply,
		})

	default:
		// Unknown action type: no-op.
	}

	return ReduceResult{
		State:      s,
		Effects:    effects,
		Broadcasts: bcasts,
	}
}

// reduceUser handles externally-submitted actions (unwrapped from TimedAction).
func reduceUser(s *AppState, action Action, at time.Time, cfg ReducerConfig) ([]Effect, []StateBroadcast) {
	var effects []Effect
	var bcasts []StateBroadcast

	switch a := action.(type) {
	case ImportPicked:
		s.IsLoading = true
		s.IsScrubbing = false
		s.Markers = nil
		s.Loop = LoopPoints{}
		s.Transport.IsPlaying = false
		s.Transport.CurrentTimeSec = 0
		// Pause before load so no stale "playing" state is observed against a
		// track mid-replacement.
		effects = append(effects, EffectPause{}, EffectLoad{URL: a.URL})

	case SelectMode:
		if ValidMode(a.Mode) {
			s.Mode = a.Mode
		}

	case TapWaveform:
		s.IsScrubbing = false
		switch s.Mode {
		case ModeLoopStart:
			effects, bcasts = setLoopBound(s, a.AtSec, true, at)
		case ModeLoopEnd:
			effects, bcasts = setLoopBound(s, a.AtSec, false, at)
		case ModeMarker:
			bcasts = appendMarker(s, a.AtSec, at, cfg)
		default: // seek
			t := s.clampToTrack(a.AtSec)
			s.Transport.CurrentTimeSec = t
			if s.Transport.IsPlaying {
				// The engine keeps no resume position of its own; a jump
				// while playing must re-issue play with the new start.
				effects = append(effects, EffectPlayFrom{FromSec: t})
			}
			bcasts = append(bcasts, BroadcastPositionChanged{Sec: roundToStep(t), At: at})
		}

	case ScrubChanged:
		s.IsScrubbing = true
		t := s.clampToTrack(a.AtSec)
		s.Transport.CurrentTimeSec = t
		if !s.Transport.IsPlaying {
			// Audible feedback while dragging. If playing, audio continues
			// uninterrupted and only the visual position tracks the drag.
			effects = append(effects, EffectSeek{ToSec: t})
		}
		bcasts = append(bcasts, BroadcastPositionChanged{Sec: roundToStep(t), At: at})

	case ScrubEnded:
		s.IsScrubbing = false
		t := s.clampToTrack(a.AtSec)
		s.Transport.CurrentTimeSec = t
		if s.Transport.IsPlaying {
			effects = append(effects, EffectPlayFrom{FromSec: t})
		} else {
			effects = append(effects, EffectSeek{ToSec: t})
		}
		bcasts = append(bcasts, BroadcastPositionChanged{Sec: roundToStep(t), At: at})

	case TogglePlay:
		if s.Track == nil {
			break
		}
		s.Transport.IsPlaying = !s.Transport.IsPlaying
		if s.Transport.IsPlaying {
			effects = append(effects, EffectPlayFrom{FromSec: s.Transport.CurrentTimeSec})
		} else {
			effects = append(effects, EffectPause{})
		}
		bcasts = append(bcasts, transportBroadcast(s, at))

	case SpeedDelta:
		next := clamp(s.Transport.Speed+a.Delta, minSpeed, maxSpeed)
		s.Transport.Speed = next
		msg := fmt.Sprintf("Speed %.2fx", next)
		s.setToast(msg, at)
		effects = append(effects, EffectSetRate{Rate: next})
		bcasts = append(bcasts, transportBroadcast(s, at), BroadcastToast{Message: msg, At: at})

	case PitchDelta:
		next := clamp(s.Transport.PitchSemitones+a.Delta, minPitchSemitones, maxPitchSemitones)
		s.Transport.PitchSemitones = next
		msg := fmt.Sprintf("Pitch %+.1f", next)
		s.setToast(msg, at)
		effects = append(effects, EffectSetPitch{Semitones: next})
		bcasts = append(bcasts, transportBroadcast(s, at), BroadcastToast{Message: msg, At: at})

	case AddMarker:
		bcasts = appendMarker(s, a.AtSec, at, cfg)

	case DeleteMarker:
		kept := s.Markers[:0:0]
		for _, m := range s.Markers {
			if m.ID != a.ID {
				kept = append(kept, m)
			}
		}
		if len(kept) != len(s.Markers) {
			s.Markers = kept
			bcasts = append(bcasts, BroadcastMarkersChanged{
				Markers: append([]Marker(nil), s.Markers...),
				At:      at,
			})
		}

	case SetLoopStart:
		effects, bcasts = setLoopBound(s, a.AtSec, true, at)

	case SetLoopEnd:
		effects, bcasts = setLoopBound(s, a.AtSec, false, at)

	case SetLoopEnabled:
		if a.Enabled && !s.Loop.bothSet() {
			// Rejected with a toast, not an error. The loop hint below still
			// mirrors the (unchanged) model so the engine never disagrees.
			msg := "Set A and B first"
			s.setToast(msg, at)
			bcasts = append(bcasts, BroadcastToast{Message: msg, At: at})
		} else {
			s.Loop.Enabled = a.Enabled
		}
		effects = append(effects, loopHint(s.Loop))
		bcasts = append(bcasts, loopBroadcast(s.Loop, at))

	default:
		// no-op
	}

	return effects, bcasts
}

// setLoopBound sets one loop bound, normalizes, and emits the loop hint.
func setLoopBound(s *AppState, t float64, isStart bool, at time.Time) ([]Effect, []StateBroadcast) {
	v := s.clampToTrack(t)
	if isStart {
		s.Loop.ASec = &v
	} else {
		s.Loop.BSec = &v
	}
	s.Loop.normalize()
	return []Effect{loopHint(s.Loop)}, []StateBroadcast{loopBroadcast(s.Loop, at)}
}

// appendMarker mints a new marker at a track time.
func appendMarker(s *AppState, t float64, at time.Time, cfg ReducerConfig) []StateBroadcast {
	s.Markers = append(s.Markers, Marker{
		ID:      cfg.newID(),
		TimeSec: s.clampToTrack(t),
	})
	return []StateBroadcast{BroadcastMarkersChanged{
		Markers: append([]Marker(nil), s.Markers...),
		At:      at,
	}}
}

// loopHint builds the engine's best-effort loop mirror from the current model.
// Bounds are copied so the effect never aliases reducer-owned memory.
func loopHint(l LoopPoints) EffectSetLoop {
	return EffectSetLoop{
		ASec:    copyFloat(l.ASec),
		BSec:    copyFloat(l.BSec),
		Enabled: l.Enabled,
	}
}

func loopBroadcast(l LoopPoints, at time.Time) BroadcastLoopChanged {
	return BroadcastLoopChanged{
		ASec:    copyFloat(l.ASec),
		BSec:    copyFloat(l.BSec),
		Enabled: l.Enabled,
		At:      at,
	}
}

func transportBroadcast(s *AppState, at time.Time) BroadcastTransportChanged {
	return BroadcastTransportChanged{
		IsPlaying:      s.Transport.IsPlaying,
		Speed:          s.Transport.Speed,
		PitchSemitones: s.Transport.PitchSemitones,
		At:             at,
	}
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundToStep rounds a position to the broadcast granularity.
func roundToStep(sec float64) float64 {
	return math.Round(sec/broadcastPositionStepSec) * broadcastPositionStepSec
}
