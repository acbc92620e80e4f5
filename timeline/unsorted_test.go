//go:build !timelinestrict

package timeline_test

import (
	"testing"

	"github.com/Xenakios/AudioPluginHost-II-sub001/timeline"
	"github.com/stretchr/testify/assert"
)

func TestUnsortedReadReturnsNothing(t *testing.T) {
	tl := timeline.New()
	tl.AddNoteOn(1, 0, 0, 60, -1, 1)
	tl.AddNoteOn(0, 0, 0, 62, -1, 1)
	it := tl.NewIterator()
	assert.Nil(t, it.ReadNext(2))
	assert.Equal(t, 2.0, it.Time())
}
