package oto

import (
	"encoding/binary"
	"math"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
)

// AppendFloat32LE appends the buffer as interleaved little-endian float32
// frames.
func AppendFloat32LE(dst []byte, b plughost.AudioBuffer) []byte {
	for i := range b.Frames() {
		for _, ch := range b {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(ch[i]))
		}
	}
	return dst
}

// AppendInt16LE appends the buffer as interleaved little-endian 16-bit
// frames, clipping to [-1, 1].
func AppendInt16LE(dst []byte, b plughost.AudioBuffer) []byte {
	for i := range b.Frames() {
		for _, ch := range b {
			v := min(max(ch[i], -1), 1)
			dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(v*math.MaxInt16)))
		}
	}
	return dst
}
