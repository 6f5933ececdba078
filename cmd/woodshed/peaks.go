package main

import (
	"fmt"
	"os"
)

// computeWaveformPeaks downsamples a track into a fixed number of min/max
// buckets for rendering. Samples are mixed to mono before bucketing.
//
// This runs off the core loop (scheduled by EffectComputePeaks) and re-reads
// the file instead of sharing the engine's buffer, so a failure here can
// never disturb playback.
func computeWaveformPeaks(url string, buckets int) (WaveformPeaks, error) {
	if buckets <= 0 {
		return WaveformPeaks{}, fmt.Errorf("bucket count must be positive, got %d", buckets)
	}

	f, err := os.Open(ExpandPath(url))
	if err != nil {
		return WaveformPeaks{}, fmt.Errorf("open audio file: %w", err)
	}

	streamer, _, err := decodeAudio(f, url)
	if err != nil {
		f.Close()
		return WaveformPeaks{}, err
	}
	defer streamer.Close()

	total := streamer.Len()
	if total <= 0 {
		return WaveformPeaks{}, nil
	}
	if buckets > total {
		buckets = total
	}

	peaks := WaveformPeaks{
		Min: make([]float32, buckets),
		Max: make([]float32, buckets),
	}
	for i := range peaks.Min {
		peaks.Min[i] = 1
		peaks.Max[i] = -1
	}

	var (
		chunk [2048][2]float64
		read  int
	)
	for {
		n, ok := streamer.Stream(chunk[:])
		for i := 0; i < n; i++ {
			mono := (chunk[i][0] + chunk[i][1]) / 2

			bucket := (read + i) * buckets / total
			if bucket >= buckets {
				bucket = buckets - 1
			}
			v := float32(mono)
			if v < peaks.Min[bucket] {
				peaks.Min[bucket] = v
			}
			if v > peaks.Max[bucket] {
				peaks.Max[bucket] = v
			}
		}
		read += n
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return WaveformPeaks{}, fmt.Errorf("decode audio: %w", err)
	}

	// Buckets that saw no samples collapse to silence.
	for i := range peaks.Min {
		if peaks.Min[i] > peaks.Max[i] {
			peaks.Min[i], peaks.Max[i] = 0, 0
		}
	}

	return peaks, nil
}
