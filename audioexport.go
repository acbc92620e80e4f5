package plughost

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWav encodes the buffer as an integer PCM .wav file. bitDepth is 16 or
// 24. Samples are clamped to [-1, 1].
func WriteWav(w io.WriteSeeker, buffer AudioBuffer, sampleRate, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return ConfigErrorf("unsupported wav bit depth %d", bitDepth)
	}
	channels := buffer.Channels()
	if channels == 0 {
		return ConfigErrorf("cannot write a wav file with no channels")
	}
	frames := buffer.Frames()
	scale := float64(int(1)<<(bitDepth-1) - 1)
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := math.Max(-1, math.Min(1, float64(buffer[c][i])))
			data[i*channels+c] = int(v * scale)
		}
	}
	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, 1)
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("could not write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finish wav file: %w", err)
	}
	return nil
}

// Raw returns the buffer as interleaved little-endian samples, either
// float32 or, if pcm16 is set, signed 16-bit integers.
func Raw(buffer AudioBuffer, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	interleaved := buffer.Interleave(nil)
	var err error
	if pcm16 {
		int16data := make([]int16, len(interleaved))
		for i, v := range interleaved {
			int16data[i] = int16(clamp(int(v*math.MaxInt16), math.MinInt16, math.MaxInt16))
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, interleaved)
	}
	if err != nil {
		return nil, fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
