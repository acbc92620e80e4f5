//go:build timelinestrict

package timeline

func assertSorted() {
	panic("timeline: read from an unsorted timeline; call Sort first")
}
