package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Action Types
// ============================================================================
// Actions represent everything that can happen to the session: user intent
// (IPC, UI, CLI), engine callbacks, async load/compute completions, and the
// core loop's own toast sweep. The core loop is the only consumer; every
// mutation funnels through it.
// ============================================================================

// Action is the input to the reducer.
type Action interface {
	actionMarker()
}

// TimedAction wraps an externally-submitted action with the time the core
// loop received it. The reducer never reads the clock itself.
type TimedAction struct {
	Action Action
	At     time.Time
}

func (TimedAction) actionMarker() {}

// ============================================================================
// User actions (externally submittable; covered by the JSON envelope)
// ============================================================================

// ImportPicked means the user chose a file to load.
type ImportPicked struct {
	URL string `json:"url"`
}

// SelectMode switches how waveform taps are interpreted.
type SelectMode struct {
	Mode InteractionMode `json:"mode"`
}

// TapWaveform is a single tap at a track time. Interpretation depends on the
// current interaction mode.
type TapWaveform struct {
	AtSec float64 `json:"at_sec"`
}

// ScrubChanged is a frame of an in-progress drag along the waveform.
type ScrubChanged struct {
	AtSec float64 `json:"at_sec"`
}

// ScrubEnded commits a drag at its final position.
type ScrubEnded struct {
	AtSec float64 `json:"at_sec"`
}

// TogglePlay flips play/pause.
type TogglePlay struct{}

// SpeedDelta nudges playback speed; the result is clamped, never rejected.
type SpeedDelta struct {
	Delta float64 `json:"delta"`
}

// PitchDelta nudges pitch in semitones; the result is clamped, never rejected.
type PitchDelta struct {
	Delta float64 `json:"delta"`
}

// AddMarker drops a bookmark at a track time.
type AddMarker struct {
	AtSec float64 `json:"at_sec"`
}

// DeleteMarker removes a bookmark by ID. No-op if absent.
type DeleteMarker struct {
	ID string `json:"id"`
}

// SetLoopStart sets the loop A bound.
type SetLoopStart struct {
	AtSec float64 `json:"at_sec"`
}

// SetLoopEnd sets the loop B bound.
type SetLoopEnd struct {
	AtSec float64 `json:"at_sec"`
}

// SetLoopEnabled requests the loop on or off. Turning it on with either bound
// unset is rejected with a toast, not an error.
type SetLoopEnabled struct {
	Enabled bool `json:"enabled"`
}

func (ImportPicked) actionMarker()   {}
func (SelectMode) actionMarker()     {}
func (TapWaveform) actionMarker()    {}
func (ScrubChanged) actionMarker()   {}
func (ScrubEnded) actionMarker()     {}
func (TogglePlay) actionMarker()     {}
func (SpeedDelta) actionMarker()     {}
func (PitchDelta) actionMarker()     {}
func (AddMarker) actionMarker()      {}
func (DeleteMarker) actionMarker()   {}
func (SetLoopStart) actionMarker()   {}
func (SetLoopEnd) actionMarker()     {}
func (SetLoopEnabled) actionMarker() {}

// ============================================================================
// Engine / runner actions (internal; produced by callbacks and async effects)
// ============================================================================

// PositionTicked is the engine's periodic position callback.
type PositionTicked struct {
	Sec float64
	At  time.Time
}

// PlaybackFinished is the engine's end-of-media notification.
type PlaybackFinished struct {
	At time.Time
}

// ImportSucceeded is the async completion of EffectLoad.
type ImportSucceeded struct {
	Track TrackMeta
	At    time.Time
}

// ImportFailed is the async failure of EffectLoad.
type ImportFailed struct {
	Message string
	At      time.Time
}

// ClearToastIfExpired is injected by the core loop's sweep ticker while a
// toast is present.
type ClearToastIfExpired struct {
	Now time.Time
}

// RequestStateSnapshot asks for a detached copy of the current state. The
// reply is delivered by the effects layer so the reducer stays pure.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
	At    time.Time
}

func (PositionTicked) actionMarker()       {}
func (PlaybackFinished) actionMarker()     {}
func (ImportSucceeded) actionMarker()      {}
func (ImportFailed) actionMarker()         {}
func (ClearToastIfExpired) actionMarker()  {}
func (RequestStateSnapshot) actionMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// ActionEnvelope wraps user actions for transport over IPC and WS. Since Go
// doesn't have union types, we use a type discriminator. Internal actions
// (engine callbacks, toast sweep, snapshot requests) are never marshaled.
// ============================================================================

// ActionEnvelope wraps an action with a type discriminator for JSON marshaling
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalAction deserializes a JSON action envelope into a concrete Action
func UnmarshalAction(data []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "import_picked":
		var a ImportPicked
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ImportPicked: %w", err)
		}
		return a, nil

	case "select_mode":
		var a SelectMode
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SelectMode: %w", err)
		}
		if !ValidMode(a.Mode) {
			return nil, fmt.Errorf("invalid mode: %q", a.Mode)
		}
		return a, nil

	case "tap_waveform":
		var a TapWaveform
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal TapWaveform: %w", err)
		}
		return a, nil

	case "scrub_changed":
		var a ScrubChanged
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ScrubChanged: %w", err)
		}
		return a, nil

	case "scrub_ended":
		var a ScrubEnded
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ScrubEnded: %w", err)
		}
		return a, nil

	case "toggle_play":
		return TogglePlay{}, nil

	case "speed_delta":
		var a SpeedDelta
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SpeedDelta: %w", err)
		}
		return a, nil

	case "pitch_delta":
		var a PitchDelta
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal PitchDelta: %w", err)
		}
		return a, nil

	case "add_marker":
		var a AddMarker
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal AddMarker: %w", err)
		}
		return a, nil

	case "delete_marker":
		var a DeleteMarker
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal DeleteMarker: %w", err)
		}
		return a, nil

	case "set_loop_start":
		var a SetLoopStart
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetLoopStart: %w", err)
		}
		return a, nil

	case "set_loop_end":
		var a SetLoopEnd
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetLoopEnd: %w", err)
		}
		return a, nil

	case "set_loop_enabled":
		var a SetLoopEnabled
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetLoopEnabled: %w", err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown action type: %q", env.Type)
	}
}

// MarshalAction serializes a user action into a JSON envelope with type
// discriminator. Internal actions are rejected.
func MarshalAction(action Action) ([]byte, error) {
	var env ActionEnvelope

	switch a := action.(type) {
	case ImportPicked:
		env.Type = "import_picked"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal ImportPicked: %w", err)
		}
		env.Data = data

	case SelectMode:
		env.Type = "select_mode"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SelectMode: %w", err)
		}
		env.Data = data

	case TapWaveform:
		env.Type = "tap_waveform"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal TapWaveform: %w", err)
		}
		env.Data = data

	case ScrubChanged:
		env.Type = "scrub_changed"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal ScrubChanged: %w", err)
		}
		env.Data = data

	case ScrubEnded:
		env.Type = "scrub_ended"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal ScrubEnded: %w", err)
		}
		env.Data = data

	case TogglePlay:
		env.Type = "toggle_play"

	case SpeedDelta:
		env.Type = "speed_delta"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SpeedDelta: %w", err)
		}
		env.Data = data

	case PitchDelta:
		env.Type = "pitch_delta"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal PitchDelta: %w", err)
		}
		env.Data = data

	case AddMarker:
		env.Type = "add_marker"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal AddMarker: %w", err)
		}
		env.Data = data

	case DeleteMarker:
		env.Type = "delete_marker"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal DeleteMarker: %w", err)
		}
		env.Data = data

	case SetLoopStart:
		env.Type = "set_loop_start"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SetLoopStart: %w", err)
		}
		env.Data = data

	case SetLoopEnd:
		env.Type = "set_loop_end"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SetLoopEnd: %w", err)
		}
		env.Data = data

	case SetLoopEnabled:
		env.Type = "set_loop_enabled"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SetLoopEnabled: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported action type: %T", action)
	}

	return json.Marshal(env)
}
