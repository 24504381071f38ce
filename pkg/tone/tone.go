// SPDX-License-Identifier: MIT

// Package tone generates synthetic test signals.
package tone

import (
	"math"

	"refmaster/internal/audio"
)

// Sine returns a sine at frequency Hz with the given peak amplitude, the same
// signal on every channel.
func Sine(seconds float64, sampleRate int, frequency, amplitude float64, channels int) *audio.Buffer {
	return generate(seconds, sampleRate, channels, func(t float64) float64 {
		return amplitude * math.Sin(2*math.Pi*frequency*t)
	})
}

// Complex returns a 440 Hz fundamental with its 2nd and 3rd harmonics at
// 0.5, 0.3 and 0.2 of amplitude.
func Complex(seconds float64, sampleRate int, amplitude float64, channels int) *audio.Buffer {
	return generate(seconds, sampleRate, channels, func(t float64) float64 {
		signal := math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
		return amplitude * signal
	})
}

func generate(seconds float64, sampleRate, channels int, at func(t float64) float64) *audio.Buffer {
	channels = max(channels, 1)
	frames := int(seconds * float64(sampleRate))
	data := make([]float32, max(frames, 0)*channels)
	for i := range frames {
		v := float32(at(float64(i) / float64(sampleRate)))
		for ch := range channels {
			data[i*channels+ch] = v
		}
	}
	return &audio.Buffer{Data: data, SampleRate: sampleRate, Channels: channels}
}

// PeakBin returns the index of the largest value in values[startBin:endBin+1],
// with the bounds clamped to the slice.
func PeakBin(values []float64, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}
	startBin = max(startBin, 0)
	endBin = min(endBin, len(values)-1)

	peakBin := startBin
	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > values[peakBin] {
			peakBin = bin
		}
	}
	return peakBin
}
