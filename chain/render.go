package chain

import (
	"context"
	"errors"
	"math"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
)

// Render runs the chain offline for the given length in seconds and returns
// the output. The engine must be idle. A unit that fails aborts the render
// with ErrProcessingFailure; in a live context the same failure would only
// keep the unit's previous output.
func (e *Engine) Render(ctx context.Context, sampleRate float64, blockSize, channels int, length float64) (plughost.AudioBuffer, error) {
	frames := int(math.Ceil(length * sampleRate))
	if frames <= 0 || channels <= 0 {
		return nil, plughost.ConfigErrorf("invalid render length %v s or channel count %d", length, channels)
	}
	e.ctl.Lock()
	e.offline = true
	e.ctl.Unlock()
	defer func() {
		e.ctl.Lock()
		e.offline = false
		e.ctl.Unlock()
	}()
	if err := e.Activate(sampleRate, blockSize); err != nil {
		return nil, err
	}
	out := plughost.MakeAudioBuffer(channels, frames)
	silence := plughost.MakeAudioBuffer(channels, blockSize)
	inView := make(plughost.AudioBuffer, 0, channels)
	outView := make(plughost.AudioBuffer, 0, channels)
	var renderErr error
	for off := 0; off < frames; off += blockSize {
		if err := ctx.Err(); err != nil {
			renderErr = err
			break
		}
		n := min(blockSize, frames-off)
		if e.ProcessAudio(silence.Slice(inView, 0, n), out.Slice(outView, off, off+n)) == plughost.StatusError {
			renderErr = plughost.ProcessingErrorf("%s failed at sample %d", e.failedUnit(), e.position)
			break
		}
	}
	e.RequestStop()
	e.ProcessAudio(silence.Slice(inView, 0, 0), outView[:0])
	if err := e.Stop(context.WithoutCancel(ctx)); err != nil {
		renderErr = errors.Join(renderErr, err)
	}
	if renderErr != nil {
		return nil, renderErr
	}
	return out, nil
}
