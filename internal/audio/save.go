// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "refmaster/internal/log"
)

// Format selects the sample encoding of a written WAV file.
type Format struct {
	BitDepth int  // 16, 24 or 32
	Float    bool // IEEE float; only valid with 32 bits
}

// Common output formats.
var (
	FormatPCM16   = Format{BitDepth: 16}
	FormatPCM24   = Format{BitDepth: 24}
	FormatPCM32   = Format{BitDepth: 32}
	FormatFloat32 = Format{BitDepth: 32, Float: true}
)

// PCMFormat returns the integer PCM format for a bit depth.
func PCMFormat(bitDepth int) (Format, error) {
	f := Format{BitDepth: bitDepth}
	return f, f.validate()
}

func (f Format) validate() error {
	if f.Float {
		if f.BitDepth != 32 {
			return fmt.Errorf("float WAV must be 32-bit, got %d", f.BitDepth)
		}
		return nil
	}
	switch f.BitDepth {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("unsupported bit depth %d (supported: 16, 24, 32)", f.BitDepth)
	}
}

func (f Format) String() string {
	if f.Float {
		return fmt.Sprintf("%d-bit float", f.BitDepth)
	}
	return fmt.Sprintf("%d-bit PCM", f.BitDepth)
}

// Save writes buf to path as 24-bit PCM WAV at the buffer's own sample rate.
func Save(buf *Buffer, path string) error {
	return SaveAs(buf, path, FormatPCM24)
}

// SaveAs writes buf to path in the given format. A partially written file is
// removed on failure. All failures wrap ErrSave.
func SaveAs(buf *Buffer, path string, format Format) (err error) {
	if buf.Empty() {
		return fmt.Errorf("%w: %s: buffer is empty", ErrSave, path)
	}
	if err := format.validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSave, path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %s: %w", ErrSave, path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	audioFormat := wavFormatPCM
	if format.Float {
		audioFormat = wavFormatFloat
	}
	encoder := wav.NewEncoder(file, buf.SampleRate, format.BitDepth, buf.Channels, audioFormat)

	intBuf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           quantize(buf.Data, format),
		SourceBitDepth: format.BitDepth,
	}

	if err := encoder.Write(intBuf); err != nil {
		return fmt.Errorf("%w: %s: data writing error: %w", ErrSave, path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSave, path, err)
	}

	applog.Debugf("Audio: Wrote %s (%s, %d Hz, %d ch)", path, format, buf.SampleRate, buf.Channels)
	return nil
}

// quantize converts float samples into the integer words the WAV encoder
// writes. Float output carries the IEEE bit pattern in each word.
func quantize(data []float32, format Format) []int {
	out := make([]int, len(data))
	if format.Float {
		for i, s := range data {
			out[i] = int(int32(math.Float32bits(s)))
		}
		return out
	}

	full := float64(int64(1) << (format.BitDepth - 1))
	lo, hi := -full, full-1
	for i, s := range data {
		v := math.Round(float64(s) * full)
		if v < lo {
			v = lo
		} else if v > hi {
			v = hi
		}
		out[i] = int(v)
	}
	return out
}
