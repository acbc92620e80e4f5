package grain

import (
	"sync/atomic"
)

// Mailbox is a single-slot handoff from one writer to one reader. Publish
// replaces whatever the reader has not taken yet; Take returns the most
// recent value at most once.
type Mailbox[T any] struct {
	slot atomic.Pointer[T]
}

func (m *Mailbox[T]) Publish(v *T) { m.slot.Store(v) }

// Take returns the published value, or nil if nothing new was published
// since the last Take. It never blocks or allocates.
func (m *Mailbox[T]) Take() *T { return m.slot.Swap(nil) }
