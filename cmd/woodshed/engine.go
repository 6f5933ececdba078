package main

// Engine is the audio playback capability the core drives. Implementations
// are stateless with respect to transport position: they retain no notion of
// "where to resume", so every Play carries an explicit start time and the
// core alone remembers the resume point.
//
// Engines emit two asynchronous callbacks, wired once at construction:
// a periodic position callback and an end-of-media notification. Both arrive
// on engine-owned goroutines and must be routed back into the core loop as
// actions, never applied to state directly.
type Engine interface {
	// Load decodes a file and returns its identity. Any previously loaded
	// track is replaced.
	Load(url string) (TrackMeta, error)

	// Play starts output at an explicit position in seconds.
	Play(fromSec float64) error

	// Pause stops output. The engine forgets the position.
	Pause() error

	// Seek repositions without changing play/pause status.
	Seek(sec float64) error

	SetRate(rate float64) error
	SetPitchSemitones(semitones float64) error

	// SetLoop is a best-effort hint; the core does not rely on it for loop
	// wrap correctness.
	SetLoop(aSec, bSec *float64, enabled bool) error

	Close() error
}

// WaveformPeaks is the downsampled min/max envelope of a track, sized for
// rendering. Empty peaks are a valid degraded result.
type WaveformPeaks struct {
	// Min and Max hold one value per bucket, in [-1, 1].
	Min []float32 `json:"min"`
	Max []float32 `json:"max"`
}

// PeaksFunc computes waveform peaks for a file. The production implementation
// is computeWaveformPeaks; tests substitute their own.
type PeaksFunc func(url string, buckets int) (WaveformPeaks, error)
