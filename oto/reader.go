package oto

import "github.com/Xenakios/AudioPluginHost-II-sub001"

// Reader is an io.Reader that renders audio on demand. Every Read that finds
// no pending bytes asks fill for at most maxFrames frames; bytes that do not
// fit into the caller's slice are kept for the next Read. After the first
// Read, it does not allocate.
type Reader struct {
	fill     func(out plughost.AudioBuffer)
	buf      plughost.AudioBuffer
	view     plughost.AudioBuffer
	staging  []byte
	pending  []byte
	pcm16    bool
	frameLen int
}

func NewReader(fill func(out plughost.AudioBuffer), channels, maxFrames int, pcm16 bool) *Reader {
	sampleLen := 4
	if pcm16 {
		sampleLen = 2
	}
	return &Reader{
		fill:     fill,
		buf:      plughost.MakeAudioBuffer(channels, maxFrames),
		view:     make(plughost.AudioBuffer, 0, channels),
		staging:  make([]byte, 0, channels*maxFrames*sampleLen),
		pcm16:    pcm16,
		frameLen: channels * sampleLen,
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.pending) == 0 {
		frames := min(max(len(p)/r.frameLen, 1), r.buf.Frames())
		r.view = r.buf.Slice(r.view, 0, frames)
		r.fill(r.view)
		if r.pcm16 {
			r.pending = AppendInt16LE(r.staging[:0], r.view)
		} else {
			r.pending = AppendFloat32LE(r.staging[:0], r.view)
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
