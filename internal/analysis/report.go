// SPDX-License-Identifier: MIT
/*
Package analysis computes level metrics and averaged spectra from audio
buffers. Nothing here caches results or mutates the buffer it is given:
every call recomputes from the samples.

Level metrics use the whole interleaved signal. Spectral analysis works on
the channel-mean down-mix.
*/
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"refmaster/internal/audio"
)

// FloorDB is reported for a level that is exactly zero.
const FloorDB = -100.0

// Report is the scalar summary of a buffer.
type Report struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Channels        int     `json:"channel_count"`
	SampleRate      int     `json:"sample_rate"`
	PeakDB          float64 `json:"peak_db"`
	RMSDB           float64 `json:"rms_db"`
}

// CrestFactorDB is the peak-to-RMS ratio in dB.
func (r Report) CrestFactorDB() float64 {
	return r.PeakDB - r.RMSDB
}

func (r Report) String() string {
	return fmt.Sprintf("Sample Rate: %d Hz\nChannels: %d\nDuration: %.2f s\nPeak: %.1f dB\nRMS: %.1f dB",
		r.SampleRate, r.Channels, r.DurationSeconds, r.PeakDB, r.RMSDB)
}

// AmplitudeToDB converts a linear amplitude to dB, returning FloorDB for
// zero or negative input.
func AmplitudeToDB(v float64) float64 {
	if v > 0 {
		return 20 * math.Log10(v)
	}
	return FloorDB
}

// Analyze computes duration, channel count, peak and RMS of buf. An empty
// or nil buffer reports zero duration and floor levels.
func Analyze(buf *audio.Buffer) Report {
	if buf == nil {
		return Report{PeakDB: FloorDB, RMSDB: FloorDB}
	}

	r := Report{
		Channels:   1,
		SampleRate: buf.SampleRate,
		PeakDB:     FloorDB,
		RMSDB:      FloorDB,
	}
	if buf.Channels > 1 {
		r.Channels = 2
	}
	if buf.SampleRate > 0 {
		r.DurationSeconds = float64(buf.Frames()) / float64(buf.SampleRate)
	}
	if len(buf.Data) == 0 {
		return r
	}

	samples := toFloat64(buf.Data)
	rms := math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
	peak := math.Max(math.Abs(floats.Max(samples)), math.Abs(floats.Min(samples)))

	r.RMSDB = AmplitudeToDB(rms)
	r.PeakDB = AmplitudeToDB(peak)
	return r
}

func toFloat64(data []float32) []float64 {
	out := make([]float64, len(data))
	for i, s := range data {
		out[i] = float64(s)
	}
	return out
}
