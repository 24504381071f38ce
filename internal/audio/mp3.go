// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// The MP3 decoder always produces 16-bit little-endian stereo.
const mp3Channels = 2

func decodeMP3(f *os.File) ([]float32, int, int, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	// Drop a trailing partial frame, if any.
	frameBytes := 2 * mp3Channels
	raw = raw[:len(raw)-len(raw)%frameBytes]

	data := make([]float32, len(raw)/2)
	for i := range data {
		sample16 := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		data[i] = float32(sample16) / 32768
	}

	return data, decoder.SampleRate(), mp3Channels, nil
}
