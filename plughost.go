// Package plughost holds the contracts shared by the timeline, the chain
// engine and the grain engine: audio buffers, the hosted processing unit
// interface, the per-block process context, and the error classes that the
// control-thread APIs return.
package plughost

// AudioBuffer is a channel-major block of audio: AudioBuffer[channel][frame].
// All channels of one buffer have the same length.
type AudioBuffer [][]float32

// MakeAudioBuffer allocates a buffer with the given number of channels and
// frames.
func MakeAudioBuffer(channels, frames int) AudioBuffer {
	ret := make(AudioBuffer, channels)
	backing := make([]float32, channels*frames)
	for c := range ret {
		ret[c] = backing[c*frames : (c+1)*frames : (c+1)*frames]
	}
	return ret
}

// Channels returns the number of channels in the buffer.
func (b AudioBuffer) Channels() int { return len(b) }

// Frames returns the number of frames in the buffer, i.e. the length of the
// first channel, or 0 for a buffer with no channels.
func (b AudioBuffer) Frames() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

// Clear zeroes all channels.
func (b AudioBuffer) Clear() {
	for _, ch := range b {
		clear(ch)
	}
}

// CopyFrom copies src into b channel by channel. Channels of b that have no
// counterpart in src are zeroed. Frames beyond the shorter buffer are left
// untouched.
func (b AudioBuffer) CopyFrom(src AudioBuffer) {
	for c, ch := range b {
		if c < len(src) {
			copy(ch, src[c])
		} else {
			clear(ch)
		}
	}
}

// Slice returns the frames [from, to) of every channel into dst, reusing the
// capacity of dst. It does not copy samples, so it is safe to call on the
// audio thread as long as dst has enough capacity.
func (b AudioBuffer) Slice(dst AudioBuffer, from, to int) AudioBuffer {
	dst = dst[:0]
	for _, ch := range b {
		dst = append(dst, ch[from:to])
	}
	return dst
}

// Interleave writes the buffer as interleaved frames into dst, reusing its
// capacity.
func (b AudioBuffer) Interleave(dst []float32) []float32 {
	channels := len(b)
	frames := b.Frames()
	dst = dst[:0]
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			dst = append(dst, b[c][i])
		}
	}
	return dst
}
