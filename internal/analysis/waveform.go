// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"refmaster/internal/audio"
)

// Waveform is a time-domain overview of the down-mixed signal.
type Waveform struct {
	Times      []float64 `json:"times"`
	Amplitudes []float64 `json:"amplitudes"`
}

// WaveformOverview reduces buf to at most points samples for plotting. The
// down-mix is peak normalized first. Each point keeps the largest-magnitude
// sample of its slice, sign included, so transients survive decimation.
// points <= 0 returns every frame.
func WaveformOverview(buf *audio.Buffer, points int) Waveform {
	if buf.Empty() || buf.SampleRate <= 0 {
		return Waveform{}
	}
	mono := buf.Mono()
	peakNormalize(mono)
	rate := float64(buf.SampleRate)

	if points <= 0 || len(mono) <= points {
		w := Waveform{Times: make([]float64, len(mono)), Amplitudes: mono}
		for i := range mono {
			w.Times[i] = float64(i) / rate
		}
		return w
	}

	w := Waveform{Times: make([]float64, points), Amplitudes: make([]float64, points)}
	for p := range points {
		start := p * len(mono) / points
		end := (p + 1) * len(mono) / points
		best := mono[start]
		for _, v := range mono[start+1 : end] {
			if math.Abs(v) > math.Abs(best) {
				best = v
			}
		}
		w.Times[p] = float64(start) / rate
		w.Amplitudes[p] = best
	}
	return w
}
