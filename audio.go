package plughost

type (
	// AudioContext is a live audio device. Play starts pulling blocks from
	// fill on the device's audio thread; fill must fill the whole buffer.
	AudioContext interface {
		Play(fill func(out AudioBuffer)) CloserWaiter
		Close() error
	}

	CloserWaiter interface {
		Close() error
		Wait()
	}
)
