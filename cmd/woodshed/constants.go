package main

import "time"

// Transport bounds. Deltas are always clamped into these ranges, never rejected.
const (
	minSpeed = 0.25
	maxSpeed = 2.0

	minPitchSemitones = -12.0
	maxPitchSemitones = 12.0
)

// Toast behavior
const (
	// toastTTL is how long a transient message stays visible.
	toastTTL = 2 * time.Second

	// toastSweepInterval is the cadence of the core loop's expiry check.
	// The check is only injected while a toast is present.
	toastSweepInterval = 100 * time.Millisecond
)

// defaultViewportSec is the visible window before any track is loaded.
const defaultViewportSec = 60.0

// defaultToastImportFailed is shown when the engine reports a load failure
// without a usable message.
const defaultToastImportFailed = "Unable to open audio file"

// Waveform peak computation defaults
const (
	defaultPeakBuckets = 800
)

// Engine defaults
const (
	defaultEngineSampleRate = 44100
	defaultEngineBufferMS   = 100

	// enginePositionInterval is the cadence of the engine's position callback.
	enginePositionInterval = 100 * time.Millisecond
)

// broadcastPositionStepSec is the rounding step for position broadcasts.
// Internal state keeps full precision; broadcasts only fire when the rounded
// value changes.
const broadcastPositionStepSec = 0.1
