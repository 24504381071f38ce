// SPDX-License-Identifier: MIT
/*
Package audio holds the in-memory audio model used across the mastering
pipeline:
- Buffer stores interleaved single-precision samples plus sample rate
- Load decodes WAV, MP3 and FLAC files and peak-normalizes down to unity
- Save/SaveAs write lossless WAV at 16, 24 or 32 bits (integer or float)

A Buffer is treated as immutable once loaded. Callers that need a modified
copy use Clone or Mono; nothing in this package rescales a buffer after Load.
*/
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrLoad is returned for unreadable, corrupt, unsupported or empty sources.
	ErrLoad = errors.New("audio: load failed")
	// ErrSave is returned when a destination cannot be written.
	ErrSave = errors.New("audio: save failed")
)

// Buffer is a decoded audio signal.
type Buffer struct {
	Data       []float32 // Interleaved samples, nominally in [-1.0, 1.0]
	SampleRate int       // Native sample rate in Hz
	Channels   int       // 1 for mono, 2 for stereo
}

// NewBuffer validates and wraps interleaved sample data. The slice is not
// copied.
func NewBuffer(data []float32, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("channel count must be at least 1, got %d", channels)
	}
	if len(data)%channels != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(data), channels)
	}
	return &Buffer{Data: data, SampleRate: sampleRate, Channels: channels}, nil
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels < 1 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Empty reports whether the buffer holds no samples.
func (b *Buffer) Empty() bool {
	return b == nil || len(b.Data) == 0
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Mono down-mixes to a single channel by averaging the channels of each
// frame. A mono buffer is converted to float64 without averaging.
func (b *Buffer) Mono() []float64 {
	frames := b.Frames()
	mono := make([]float64, frames)
	if b.Channels == 1 {
		for i, s := range b.Data {
			mono[i] = float64(s)
		}
		return mono
	}

	inv := 1.0 / float64(b.Channels)
	for i := range frames {
		var sum float64
		frame := b.Data[i*b.Channels : (i+1)*b.Channels]
		for _, s := range frame {
			sum += float64(s)
		}
		mono[i] = sum * inv
	}
	return mono
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	data := make([]float32, len(b.Data))
	copy(data, b.Data)
	return &Buffer{Data: data, SampleRate: b.SampleRate, Channels: b.Channels}
}

// PeakAbs returns the largest absolute sample value.
func (b *Buffer) PeakAbs() float64 {
	var peak float64
	for _, s := range b.Data {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// normalize applies the load-time rule: samples above full scale are divided
// by the peak so the loudest sample lands on exactly 1.0. Quieter signals are
// never amplified.
func normalize(data []float32) {
	var peak float32
	for _, s := range data {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak <= 1.0 {
		return
	}
	for i, s := range data {
		data[i] = s / peak
	}
}
