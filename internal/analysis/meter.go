// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync"
)

// BlockProcessor analyzes consecutive blocks of interleaved samples. It is
// called from the audio callback, so implementations must not block.
type BlockProcessor interface {
	Process(block []float32)
}

// Meter tracks the levels of the most recent block plus the running peak.
// Process and the readers may run on different goroutines.
type Meter struct {
	mu      sync.Mutex
	rms     float64
	peak    float64
	maxPeak float64
	blocks  int
}

var _ BlockProcessor = (*Meter)(nil)

// Process measures block.
func (m *Meter) Process(block []float32) {
	rms, peak := blockLevels(block)

	m.mu.Lock()
	m.rms = rms
	m.peak = peak
	m.maxPeak = math.Max(m.maxPeak, peak)
	m.blocks++
	m.mu.Unlock()
}

// Levels returns the last block's peak and RMS in dB.
func (m *Meter) Levels() (peakDB, rmsDB float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AmplitudeToDB(m.peak), AmplitudeToDB(m.rms)
}

// MaxPeakDB is the highest block peak seen since the last Reset.
func (m *Meter) MaxPeakDB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AmplitudeToDB(m.maxPeak)
}

// Blocks is the number of blocks processed since the last Reset.
func (m *Meter) Blocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks
}

func (m *Meter) Reset() {
	m.mu.Lock()
	m.rms, m.peak, m.maxPeak, m.blocks = 0, 0, 0, 0
	m.mu.Unlock()
}

func blockLevels(block []float32) (rms, peak float64) {
	if len(block) == 0 {
		return 0, 0
	}
	var sumSquare float64
	for _, s := range block {
		v := float64(s)
		sumSquare += v * v
		peak = math.Max(peak, math.Abs(v))
	}
	return math.Sqrt(sumSquare / float64(len(block))), peak
}
