// Package chain hosts an ordered chain of processing units. The audio
// thread drives the chain through ProcessAudio; everything else is the
// control API, which talks to the audio thread only through bounded queues
// and a small lock-guarded state word.
package chain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/pluginstate"
	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
)

type (
	Engine struct {
		opts  Options
		log   *slog.Logger
		tasks *TaskQueue

		entriesMu sync.RWMutex
		entries   []*Entry

		// ctl serializes the control API.
		ctl       sync.Mutex
		activated bool
		offline   bool

		// mu guards state, suspended and inBlock. The audio thread holds it
		// only to read and advance the state at the start of a block and to
		// clear inBlock at its end.
		mu        sync.Mutex
		state     State
		suspended bool
		inBlock   bool
		stopped   chan struct{}
		released  chan struct{}

		commands chan Command

		// Owned by the audio thread while the engine is active.
		sampleRate float64
		blockSize  int
		channels   int
		position   int64
		delayed    []Message
		panicking  bool
		failed     int
		inBuf      plughost.AudioBuffer
		inView     plughost.AudioBuffer
		outView    plughost.AudioBuffer
		chunkIn    plughost.AudioBuffer
		chunkOut   plughost.AudioBuffer
		gain       gainStage

		stats counters
	}

	Options struct {
		MessageQueueSize   int           // capacity of each entry's inbound and outbound queue
		CommandQueueSize   int           // capacity of the engine command queue
		MaxDelayedMessages int           // messages waiting for their sample position
		MaxBlockEvents     int           // events a unit sees in one block
		GainSmoothing      float64       // time constant of the output gain, in seconds
		StopTimeout        time.Duration // how long Stop waits for the audio thread
		Logger             *slog.Logger
	}

	// State is the lifecycle of an engine. The control thread moves it to
	// NeedsStarting and NeedsStopping; the audio thread completes the
	// transitions at the start of the next block.
	State int

	// Stats is a snapshot of the engine counters. Everything the audio thread
	// drops is counted here instead of being reported as an error.
	Stats struct {
		State           State
		Position        int64
		Blocks          int64
		DroppedMessages int64
		DroppedCommands int64
		DroppedEvents   int64
		DroppedOutbound int64
		UnitErrors      int64
	}

	counters struct {
		position, blocks                 atomic.Int64
		droppedMessages, droppedCommands atomic.Int64
		droppedEvents, droppedOutbound   atomic.Int64
		unitErrors                       atomic.Int64
	}
)

const (
	Idle State = iota
	NeedsStarting
	Started
	NeedsStopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case NeedsStarting:
		return "needs starting"
	case Started:
		return "started"
	case NeedsStopping:
		return "needs stopping"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func DefaultOptions() Options {
	return Options{
		MessageQueueSize:   1024,
		CommandQueueSize:   64,
		MaxDelayedMessages: 4096,
		MaxBlockEvents:     1024,
		GainSmoothing:      0.02,
		StopTimeout:        2 * time.Second,
	}
}

// NewEngine returns an idle engine with no units. Zero fields of opts are
// replaced with their defaults, except GainSmoothing where zero turns
// smoothing off.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.MessageQueueSize <= 0 {
		opts.MessageQueueSize = def.MessageQueueSize
	}
	if opts.CommandQueueSize <= 0 {
		opts.CommandQueueSize = def.CommandQueueSize
	}
	if opts.MaxDelayedMessages <= 0 {
		opts.MaxDelayedMessages = def.MaxDelayedMessages
	}
	if opts.MaxBlockEvents <= 0 {
		opts.MaxBlockEvents = def.MaxBlockEvents
	}
	if opts.GainSmoothing < 0 {
		opts.GainSmoothing = 0
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = def.StopTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		opts:     opts,
		log:      log,
		tasks:    NewTaskQueue(),
		stopped:  make(chan struct{}, 1),
		released: make(chan struct{}, 1),
		commands: make(chan Command, opts.CommandQueueSize),
		gain:     newGainStage(),
	}
}

// Exec runs fn on the thread that owns the hosted units and waits for it.
func (e *Engine) Exec(fn func() error) error {
	return e.tasks.Do(fn)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Len() int {
	e.entriesMu.RLock()
	defer e.entriesMu.RUnlock()
	return len(e.entries)
}

// AddUnit appends a unit to the end of the chain.
func (e *Engine) AddUnit(u plughost.ProcessingUnit) (*Entry, error) {
	if u == nil {
		return nil, plughost.ConfigErrorf("cannot add a nil unit")
	}
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if e.activated {
		return nil, plughost.ConfigErrorf("cannot add unit %q to an active chain", u.ID())
	}
	en := newEntry(u, e.opts.MessageQueueSize)
	e.entriesMu.Lock()
	e.entries = append(e.entries, en)
	e.entriesMu.Unlock()
	return en, nil
}

func (e *Engine) RemoveUnit(i int) error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if e.activated {
		return plughost.ConfigErrorf("cannot remove a unit from an active chain")
	}
	e.entriesMu.Lock()
	defer e.entriesMu.Unlock()
	if i < 0 || i >= len(e.entries) {
		return plughost.ConfigErrorf("unit index %d out of range [0, %d)", i, len(e.entries))
	}
	e.entries = slices.Delete(e.entries, i, i+1)
	return nil
}

func (e *Engine) Entry(i int) (*Entry, error) {
	e.entriesMu.RLock()
	defer e.entriesMu.RUnlock()
	if i < 0 || i >= len(e.entries) {
		return nil, plughost.ConfigErrorf("unit index %d out of range [0, %d)", i, len(e.entries))
	}
	return e.entries[i], nil
}

// Outbound is a shorthand for Entry(i).Outbound().
func (e *Engine) Outbound(i int) (<-chan Message, error) {
	en, err := e.Entry(i)
	if err != nil {
		return nil, err
	}
	return en.outbound, nil
}

// Post queues ev for unit i, to be delivered delay seconds after the start
// of the block that picks it up. Post never blocks: when the queue is full
// the message is dropped and counted in Stats.
func (e *Engine) Post(i int, ev timeline.Event, delay float64) error {
	en, err := e.Entry(i)
	if err != nil {
		return err
	}
	if !TrySend(en.inbound, Message{Event: ev, Delay: delay}) {
		e.stats.droppedMessages.Add(1)
	}
	return nil
}

// SendCommand queues an engine command. Returns false if the command queue
// was full and the command was dropped.
func (e *Engine) SendCommand(c Command) bool {
	if !TrySend(e.commands, c) {
		e.stats.droppedCommands.Add(1)
		return false
	}
	return true
}

// SetSuspended makes the engine output silence without processing its units.
func (e *Engine) SetSuspended(suspended bool) {
	e.mu.Lock()
	e.suspended = suspended
	e.mu.Unlock()
}

// ScheduleGain schedules the chain output gain to change to gain at time t,
// in seconds. Changes are smoothed.
func (e *Engine) ScheduleGain(t, gain float64) error {
	if gain < 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return plughost.ConfigErrorf("invalid gain %v", gain)
	}
	return e.scheduleParam(t, GainParamID, gain)
}

func (e *Engine) ScheduleMute(t float64, muted bool) error {
	v := 0.0
	if muted {
		v = 1
	}
	return e.scheduleParam(t, MuteParamID, v)
}

func (e *Engine) scheduleParam(t float64, id uint32, v float64) error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if e.activated {
		return plughost.ConfigErrorf("cannot schedule automation on an active chain")
	}
	e.gain.timeline.AddParamValue(t, id, v)
	return nil
}

// Activate prepares every unit for processing on the owner thread and moves
// the engine to NeedsStarting. The audio thread starts processing at its
// next block.
func (e *Engine) Activate(sampleRate float64, blockSize int) error {
	if sampleRate <= 0 || blockSize <= 0 {
		return plughost.ConfigErrorf("invalid sample rate %v or block size %d", sampleRate, blockSize)
	}
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if e.activated {
		return plughost.ConfigErrorf("chain is already active")
	}
	if err := e.tasks.Do(func() error { return e.activateUnits(sampleRate, blockSize) }); err != nil {
		return err
	}
	e.activated = true
	e.mu.Lock()
	e.state = NeedsStarting
	e.mu.Unlock()
	e.log.Info("chain activated", "sample_rate", sampleRate, "block_size", blockSize, "units", len(e.entries), "channels", e.channels)
	return nil
}

func (e *Engine) activateUnits(sampleRate float64, blockSize int) error {
	channels := 1
	for _, en := range e.entries {
		ins, outs := en.unit.Channels()
		channels = max(channels, ins, outs)
	}
	for i, en := range e.entries {
		if err := en.unit.Activate(sampleRate, blockSize); err != nil {
			for _, prev := range e.entries[:i] {
				prev.unit.Deactivate()
			}
			return fmt.Errorf("could not activate unit %d (%s): %w", i, en.unit.ID(), err)
		}
		en.prepare(sampleRate, channels, blockSize, e.opts.MaxBlockEvents)
	}
	e.sampleRate, e.blockSize, e.channels = sampleRate, blockSize, channels
	e.position, e.failed, e.panicking = 0, 0, false
	e.stats.position.Store(0)
	e.delayed = make([]Message, 0, e.opts.MaxDelayedMessages)
	e.inBuf = plughost.MakeAudioBuffer(channels, blockSize)
	e.inView = make(plughost.AudioBuffer, 0, channels)
	e.outView = make(plughost.AudioBuffer, 0, channels)
	e.chunkIn = make(plughost.AudioBuffer, 0, channels)
	e.chunkOut = make(plughost.AudioBuffer, 0, channels)
	e.gain.reset(sampleRate, blockSize, e.opts.GainSmoothing)
	select {
	case <-e.stopped:
	default:
	}
	return nil
}

// RequestStop asks the audio thread to stop at its next block. It does not
// wait and does not deactivate the units; use Stop for that.
func (e *Engine) RequestStop() {
	e.mu.Lock()
	if e.state == NeedsStarting || e.state == Started {
		e.state = NeedsStopping
	}
	e.mu.Unlock()
}

// Stop requests a stop, waits until the audio thread acknowledges it with a
// silent block, and then deactivates the units on the owner thread. If the
// audio thread does not run within the stop timeout, the engine is forced
// idle. Units are never deactivated while the audio thread is inside a
// block: if a block is still running after a forced stop and a second
// timeout, Stop returns an ErrProcessingFailure and leaves the units active
// so that a later Stop or Close can finish the teardown.
func (e *Engine) Stop(ctx context.Context) error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if !e.activated {
		return nil
	}
	e.mu.Lock()
	waiting := e.state != Idle
	if waiting {
		e.state = NeedsStopping
	}
	e.mu.Unlock()
	if waiting {
		select {
		case <-e.stopped:
		case <-ctx.Done():
			e.forceIdle("context done")
		case <-time.After(e.opts.StopTimeout):
			e.forceIdle("timeout")
		}
	}
	if !e.awaitBlockEnd(ctx) {
		e.log.Error("audio thread is still inside a block, units left active")
		return plughost.ProcessingErrorf("chain stop: audio thread did not leave its block")
	}
	err := e.tasks.Do(e.deactivateUnits)
	e.activated = false
	st := e.Stats()
	e.log.Info("chain stopped", "position", st.Position, "blocks", st.Blocks)
	if d := st.DroppedMessages + st.DroppedCommands + st.DroppedEvents + st.DroppedOutbound; d > 0 {
		e.log.Warn("chain dropped messages", "messages", st.DroppedMessages, "commands", st.DroppedCommands, "events", st.DroppedEvents, "outbound", st.DroppedOutbound)
	}
	return err
}

func (e *Engine) forceIdle(reason string) {
	e.mu.Lock()
	e.state = Idle
	e.mu.Unlock()
	e.log.Warn("audio thread did not acknowledge stop", "reason", reason)
}

// awaitBlockEnd waits until the audio thread is outside the units. Once the
// state is Idle no new block enters them, so a single release is enough.
func (e *Engine) awaitBlockEnd(ctx context.Context) bool {
	e.mu.Lock()
	busy := e.inBlock
	if busy {
		select {
		case <-e.released:
		default:
		}
	}
	e.mu.Unlock()
	if !busy {
		return true
	}
	timer := time.NewTimer(e.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-e.released:
		return true
	case <-ctx.Done():
	case <-timer.C:
	}
	return false
}

func (e *Engine) deactivateUnits() error {
	for _, en := range e.entries {
		en.unit.Deactivate()
	}
	return nil
}

// Close stops the engine and shuts down the owner thread.
func (e *Engine) Close() error {
	err := e.Stop(context.Background())
	e.tasks.Close()
	return err
}

func (e *Engine) Stats() Stats {
	return Stats{
		State:           e.State(),
		Position:        e.stats.position.Load(),
		Blocks:          e.stats.blocks.Load(),
		DroppedMessages: e.stats.droppedMessages.Load(),
		DroppedCommands: e.stats.droppedCommands.Load(),
		DroppedEvents:   e.stats.droppedEvents.Load(),
		DroppedOutbound: e.stats.droppedOutbound.Load(),
		UnitErrors:      e.stats.unitErrors.Load(),
	}
}

// SaveUnitState writes the state of unit i to w in the state file format.
// The unit is called on the owner thread.
func (e *Engine) SaveUnitState(i int, w io.Writer) error {
	u, err := e.statefulUnit(i)
	if err != nil {
		return err
	}
	return e.tasks.Do(func() error { return pluginstate.Save(w, u) })
}

// LoadUnitState reads a state file from r into unit i. The identifier in the
// file must match the unit's.
func (e *Engine) LoadUnitState(i int, r io.Reader) error {
	u, err := e.statefulUnit(i)
	if err != nil {
		return err
	}
	return e.tasks.Do(func() error { return pluginstate.Load(r, u) })
}

func (e *Engine) statefulUnit(i int) (plughost.StatefulUnit, error) {
	en, err := e.Entry(i)
	if err != nil {
		return nil, err
	}
	u, ok := en.unit.(plughost.StatefulUnit)
	if !ok {
		return nil, plughost.ConfigErrorf("unit %d (%s) has no state", i, en.unit.ID())
	}
	return u, nil
}
