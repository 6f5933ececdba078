package main

import (
	"log/slog"
	"sync"
	"time"
)

// Runner executes reducer-emitted Effects against the engine and the peak
// computer, and converts their results back into Actions.
//
// Design rules:
//   - The runner is allowed to perform I/O.
//   - It must never call Reduce() or touch AppState; completions re-enter the
//     core loop as actions via send.
//   - Load and peak computation run on their own goroutines (the reducer only
//     schedules them); engine transport commands are quick and run inline so
//     the effect order emitted by one Reduce call is preserved.
//
// The runner holds the only long-lived state outside the reducer: the cached
// waveform peaks and the most recently loaded URL. Peaks stay out of AppState
// so the wholesale-replaced aggregate never carries large buffers.
type Runner struct {
	engine Engine
	peaks  PeaksFunc
	send   chan<- Action
	logger *slog.Logger

	mu       sync.Mutex
	lastURL  string
	cached   WaveformPeaks
	loadGen  uint64 // bumped per load; stale completions are dropped
}

// NewRunner wires a runner to the engine and the core loop's action channel.
func NewRunner(engine Engine, peaks PeaksFunc, send chan<- Action, logger *slog.Logger) *Runner {
	return &Runner{
		engine: engine,
		peaks:  peaks,
		send:   send,
		logger: logger,
	}
}

// Peaks returns the cached waveform peaks for the current track. This is a
// read-only side channel for rendering; it never feeds back into the reducer.
func (r *Runner) Peaks() WaveformPeaks {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cached
}

// Run executes a single Effect.
func (r *Runner) Run(effect Effect) {
	switch e := effect.(type) {
	case EffectPause:
		if err := r.engine.Pause(); err != nil {
			r.logger.Error("engine pause failed", "error", err)
		}

	case EffectPlayFrom:
		if err := r.engine.Play(e.FromSec); err != nil {
			r.logger.Error("engine play failed", "error", err, "from_sec", e.FromSec)
		}

	case EffectSeek:
		if err := r.engine.Seek(e.ToSec); err != nil {
			r.logger.Error("engine seek failed", "error", err, "to_sec", e.ToSec)
		}

	case EffectSetRate:
		if err := r.engine.SetRate(e.Rate); err != nil {
			r.logger.Error("engine set rate failed", "error", err, "rate", e.Rate)
		}

	case EffectSetPitch:
		if err := r.engine.SetPitchSemitones(e.Semitones); err != nil {
			r.logger.Error("engine set pitch failed", "error", err, "semitones", e.Semitones)
		}

	case EffectSetLoop:
		if err := r.engine.SetLoop(e.ASec, e.BSec, e.Enabled); err != nil {
			r.logger.Error("engine set loop failed", "error", err)
		}

	case EffectLoad:
		r.runLoad(e.URL)

	case EffectComputePeaks:
		r.runComputePeaks(e.Buckets)

	case EffectPublishSnapshot:
		if e.Reply == nil {
			r.logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the core loop on a snapshot requester.
		select {
		case e.Reply <- e.Snapshot:
		default:
			r.logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		r.logger.Warn("unknown effect type", "effect", effect.String())
	}
}

// runLoad starts an async engine load. A newer load supersedes an older one:
// the stale completion is dropped rather than fed back as an action.
func (r *Runner) runLoad(url string) {
	r.mu.Lock()
	r.loadGen++
	gen := r.loadGen
	r.lastURL = url
	r.cached = WaveformPeaks{}
	r.mu.Unlock()

	go func() {
		track, err := r.engine.Load(url)
		now := time.Now()

		r.mu.Lock()
		stale := gen != r.loadGen
		r.mu.Unlock()
		if stale {
			r.logger.Debug("dropping superseded load result", "url", url)
			return
		}

		if err != nil {
			r.logger.Warn("engine load failed", "url", url, "error", err)
			r.send <- ImportFailed{Message: loadErrorMessage(err), At: now}
			return
		}
		r.logger.Info("track loaded", "name", track.Name, "duration_sec", track.DurationSec)
		r.send <- ImportSucceeded{Track: track, At: now}
	}()
}

// runComputePeaks computes peaks for the most recently loaded URL. Failure is
// soft: a missing waveform is cosmetic, so peaks silently fall back to empty.
func (r *Runner) runComputePeaks(buckets int) {
	r.mu.Lock()
	url := r.lastURL
	gen := r.loadGen
	r.mu.Unlock()

	if url == "" || r.peaks == nil {
		return
	}
	if buckets <= 0 {
		buckets = defaultPeakBuckets
	}

	go func() {
		peaks, err := r.peaks(url, buckets)
		if err != nil {
			r.logger.Warn("peak computation failed, using empty waveform", "url", url, "error", err)
			peaks = WaveformPeaks{}
		}

		r.mu.Lock()
		if gen == r.loadGen {
			r.cached = peaks
		}
		r.mu.Unlock()
	}()
}

// loadErrorMessage extracts a user-facing message from a load error.
// An empty message falls back to a default inside the reducer.
func loadErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
