package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// beepEngine implements Engine on top of the beep speaker.
//
// The whole track is decoded into a beep.Buffer on load so any Play(from) is
// a cheap random-access restart, which is exactly the shape the stateless
// contract wants: Pause drops the current streamer entirely and the next Play
// builds a fresh one at the requested offset.
//
// Rate and pitch both map onto the output resampler ratio. That couples tempo
// and pitch the way varispeed does; a dedicated time-stretcher could replace
// the resampler here without touching the interface.
type beepEngine struct {
	logger  *slog.Logger
	outRate beep.SampleRate

	onPosition func(sec float64, at time.Time)
	onFinished func(at time.Time)

	mu       sync.Mutex
	buf      *beep.Buffer
	fileRate beep.SampleRate
	rate     float64
	pitch    float64
	playing  *beepPlayback
	playGen  uint64

	// Best-effort loop hint; wrap correctness is owned by the caller.
	loopA, loopB *float64
	loopOn       bool

	done chan struct{}
}

type beepPlayback struct {
	streamer    beep.StreamSeeker
	resampler   *beep.Resampler
	startSample int
	gen         uint64
}

// NewBeepEngine initializes the speaker and starts the position feed.
// The callbacks fire on engine-owned goroutines.
func NewBeepEngine(cfg AudioConfig, onPosition func(sec float64, at time.Time), onFinished func(at time.Time), logger *slog.Logger) (*beepEngine, error) {
	outRate := beep.SampleRate(cfg.SampleRate)
	bufSize := outRate.N(time.Duration(cfg.BufferMS) * time.Millisecond)
	if err := speaker.Init(outRate, bufSize); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	e := &beepEngine{
		logger:     logger,
		outRate:    outRate,
		onPosition: onPosition,
		onFinished: onFinished,
		rate:       1.0,
		done:       make(chan struct{}),
	}
	go e.positionLoop()
	return e, nil
}

// positionLoop emits the periodic position callback while playing.
func (e *beepEngine) positionLoop() {
	ticker := time.NewTicker(enginePositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case now := <-ticker.C:
			sec, ok := e.currentPosition()
			if ok && e.onPosition != nil {
				e.onPosition(sec, now)
			}
		}
	}
}

func (e *beepEngine) currentPosition() (float64, bool) {
	e.mu.Lock()
	pb := e.playing
	fileRate := e.fileRate
	e.mu.Unlock()

	if pb == nil || fileRate == 0 {
		return 0, false
	}

	speaker.Lock()
	pos := pb.streamer.Position()
	speaker.Unlock()

	return float64(pb.startSample+pos) / float64(fileRate), true
}

// Load decodes a file into a buffer and replaces any previous track.
func (e *beepEngine) Load(url string) (TrackMeta, error) {
	f, err := os.Open(ExpandPath(url))
	if err != nil {
		return TrackMeta{}, fmt.Errorf("open audio file: %w", err)
	}
	// Decoders take ownership of the reader; closing the streamer closes f.

	streamer, format, err := decodeAudio(f, url)
	if err != nil {
		f.Close()
		return TrackMeta{}, err
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return TrackMeta{}, fmt.Errorf("decode audio: %w", err)
	}

	track := TrackMeta{
		URL:         url,
		Name:        filepath.Base(url),
		DurationSec: float64(buf.Len()) / float64(format.SampleRate),
	}

	speaker.Clear()
	e.mu.Lock()
	e.buf = buf
	e.fileRate = format.SampleRate
	e.playing = nil
	e.mu.Unlock()

	return track, nil
}

// decodeAudio picks a decoder by file extension.
func decodeAudio(f *os.File, url string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(url)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".wav":
		return wav.Decode(f)
	case ".flac":
		return flac.Decode(f)
	case ".ogg", ".oga":
		return vorbis.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format: %q", filepath.Ext(url))
	}
}

// Play restarts output at an explicit position.
func (e *beepEngine) Play(fromSec float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buf == nil {
		return fmt.Errorf("no track loaded")
	}

	start := int(fromSec * float64(e.fileRate))
	if start < 0 {
		start = 0
	}
	if start > e.buf.Len() {
		start = e.buf.Len()
	}

	streamer := e.buf.Streamer(start, e.buf.Len())
	resampler := beep.ResampleRatio(4, e.playRatioLocked(), streamer)

	e.playGen++
	gen := e.playGen
	e.playing = &beepPlayback{
		streamer:    streamer,
		resampler:   resampler,
		startSample: start,
		gen:         gen,
	}

	finished := beep.Callback(func() {
		// Fired only on natural end-of-media; Clear() drops streamers
		// without draining them. Hop off the speaker goroutine before
		// touching engine state or the action channel.
		go e.finishPlayback(gen)
	})

	speaker.Clear()
	speaker.Play(beep.Seq(resampler, finished))
	return nil
}

func (e *beepEngine) finishPlayback(gen uint64) {
	e.mu.Lock()
	current := e.playing != nil && e.playing.gen == gen
	if current {
		e.playing = nil
	}
	e.mu.Unlock()

	if current && e.onFinished != nil {
		e.onFinished(time.Now())
	}
}

// Pause stops output. The engine forgets the position; the core remembers it.
func (e *beepEngine) Pause() error {
	speaker.Clear()
	e.mu.Lock()
	e.playing = nil
	e.mu.Unlock()
	return nil
}

// Seek repositions the active streamer, if any. With nothing playing this is
// a no-op: the next Play carries its own start time.
func (e *beepEngine) Seek(sec float64) error {
	e.mu.Lock()
	pb := e.playing
	fileRate := e.fileRate
	e.mu.Unlock()

	if pb == nil || fileRate == 0 {
		return nil
	}

	rel := int(sec*float64(fileRate)) - pb.startSample
	if rel < 0 {
		rel = 0
	}
	if rel > pb.streamer.Len() {
		rel = pb.streamer.Len()
	}

	speaker.Lock()
	err := pb.streamer.Seek(rel)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

func (e *beepEngine) SetRate(rate float64) error {
	e.mu.Lock()
	e.rate = rate
	e.applyRatioLocked()
	e.mu.Unlock()
	return nil
}

func (e *beepEngine) SetPitchSemitones(semitones float64) error {
	e.mu.Lock()
	e.pitch = semitones
	e.applyRatioLocked()
	e.mu.Unlock()
	return nil
}

// SetLoop records the loop hint. The engine does not act on it; the control
// loop re-issues Play at the loop start on wrap.
func (e *beepEngine) SetLoop(aSec, bSec *float64, enabled bool) error {
	e.mu.Lock()
	e.loopA, e.loopB, e.loopOn = aSec, bSec, enabled
	e.mu.Unlock()
	return nil
}

func (e *beepEngine) Close() error {
	close(e.done)
	speaker.Clear()
	return nil
}

// playRatioLocked combines file/output rate conversion with the speed and
// pitch settings. Callers hold e.mu.
func (e *beepEngine) playRatioLocked() float64 {
	ratio := e.rate * math.Pow(2, e.pitch/12.0)
	if e.fileRate != 0 && e.outRate != 0 {
		ratio *= float64(e.fileRate) / float64(e.outRate)
	}
	return ratio
}

func (e *beepEngine) applyRatioLocked() {
	if e.playing == nil {
		return
	}
	ratio := e.playRatioLocked()
	speaker.Lock()
	e.playing.resampler.SetRatio(ratio)
	speaker.Unlock()
}
