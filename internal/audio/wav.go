// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// WAVE format tags from the fmt chunk.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

func decodeWAV(f *os.File) ([]float32, int, int, error) {
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, 0, errors.New("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("could not read PCM buffer: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, 0, errors.New("WAV file has no format information")
	}

	bitDepth := int(decoder.BitDepth)
	isFloat := decoder.WavAudioFormat == wavFormatFloat
	if isFloat && bitDepth != 32 {
		return nil, 0, 0, fmt.Errorf("unsupported %d-bit float WAV", bitDepth)
	}

	data := make([]float32, len(buf.Data))
	switch {
	case isFloat:
		// The integer decoder hands back the raw 32-bit words; reinterpret them.
		for i, v := range buf.Data {
			data[i] = math.Float32frombits(uint32(int32(v)))
		}
	case bitDepth == 8:
		// 8-bit WAV is unsigned with a 128 midpoint.
		for i, v := range buf.Data {
			data[i] = float32(v-128) / 128
		}
	case bitDepth > 8 && bitDepth <= 32:
		scale := 1.0 / float64(int64(1)<<(bitDepth-1))
		for i, v := range buf.Data {
			data[i] = float32(float64(v) * scale)
		}
	default:
		return nil, 0, 0, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}

	return data, buf.Format.SampleRate, buf.Format.NumChannels, nil
}
