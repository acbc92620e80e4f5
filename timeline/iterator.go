package timeline

import "math"

type (
	// Iterator reads a sorted timeline forward in windows of seconds.
	Iterator struct {
		tl      *Timeline
		current float64
		index   int
	}

	// SampleIterator reads a sorted timeline forward in windows of frames.
	// Timestamps are converted to integer sample positions before comparing,
	// so many small reads never drift the way summed float durations do.
	SampleIterator struct {
		tl         *Timeline
		sampleRate float64
		position   int64
		index      int
	}
)

// NewIterator returns an iterator positioned at time 0.
func (t *Timeline) NewIterator() *Iterator {
	it := &Iterator{tl: t}
	it.SetTime(0)
	return it
}

// SetTime moves the iterator to time t. The cached index is walked backward
// and then forward from where it was, so seeking near the previous position
// is cheap.
func (it *Iterator) SetTime(t float64) {
	ev := it.tl.events
	it.index = min(it.index, len(ev))
	for it.index > 0 && ev[it.index-1].Time >= t {
		it.index--
	}
	for it.index < len(ev) && ev[it.index].Time < t {
		it.index++
	}
	it.current = t
}

func (it *Iterator) Time() float64 { return it.current }

// ReadNext returns the events in [Time(), Time()+duration) and advances the
// iterator by duration. The returned slice aliases the timeline; it is valid
// until the timeline is modified and must not be written.
func (it *Iterator) ReadNext(duration float64) []Event {
	end := it.current + duration
	if !it.tl.sorted {
		assertSorted()
		it.current = end
		return nil
	}
	ev := it.tl.events
	start := min(it.index, len(ev))
	for start < len(ev) && ev[start].Time < it.current {
		start++
	}
	stop := start
	for stop < len(ev) && ev[stop].Time < end {
		stop++
	}
	it.index = stop
	it.current = end
	return ev[start:stop:stop]
}

// NewSampleIterator returns an iterator at sample position 0.
func (t *Timeline) NewSampleIterator(sampleRate float64) *SampleIterator {
	it := &SampleIterator{tl: t, sampleRate: sampleRate}
	it.SetPosition(0)
	return it
}

// SampleOf returns the sample position of an event at this iterator's
// sample rate.
func (it *SampleIterator) SampleOf(e Event) int64 {
	return TimeToSamples(e.Time, it.sampleRate)
}

// SetTime moves the iterator to the sample nearest to t. Events are
// compared by their exact timestamps, so an event earlier than t is skipped
// even when it falls on the same sample as t.
func (it *SampleIterator) SetTime(t float64) {
	ev := it.tl.events
	it.index = min(it.index, len(ev))
	for it.index > 0 && ev[it.index-1].Time >= t {
		it.index--
	}
	for it.index < len(ev) && ev[it.index].Time < t {
		it.index++
	}
	it.position = TimeToSamples(t, it.sampleRate)
}

// SetPosition moves the iterator to sample position pos, walking the cached
// index like Iterator.SetTime.
func (it *SampleIterator) SetPosition(pos int64) {
	ev := it.tl.events
	it.index = min(it.index, len(ev))
	for it.index > 0 && it.SampleOf(ev[it.index-1]) >= pos {
		it.index--
	}
	for it.index < len(ev) && it.SampleOf(ev[it.index]) < pos {
		it.index++
	}
	it.position = pos
}

func (it *SampleIterator) Position() int64 { return it.position }

func (it *SampleIterator) SampleRate() float64 { return it.sampleRate }

// ReadNext returns the events whose sample position is in
// [Position(), Position()+frames) and advances by frames. The slice aliases
// the timeline like Iterator.ReadNext.
func (it *SampleIterator) ReadNext(frames int) []Event {
	end := it.position + int64(frames)
	if !it.tl.sorted {
		assertSorted()
		it.position = end
		return nil
	}
	ev := it.tl.events
	start := min(it.index, len(ev))
	for start < len(ev) && it.SampleOf(ev[start]) < it.position {
		start++
	}
	stop := start
	for stop < len(ev) && it.SampleOf(ev[stop]) < end {
		stop++
	}
	it.index = stop
	it.position = end
	return ev[start:stop:stop]
}

// TimeToSamples converts seconds to the nearest sample position.
func TimeToSamples(t, sampleRate float64) int64 {
	return int64(math.Round(t * sampleRate))
}
