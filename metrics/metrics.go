// Package metrics exposes engine and grain pool counters to Prometheus. The
// collectors read snapshots when scraped, so the audio thread never touches
// Prometheus types.
package metrics

import (
	"github.com/Xenakios/AudioPluginHost-II-sub001/chain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// StatsSource is implemented by *chain.Engine.
	StatsSource interface {
		Stats() chain.Stats
	}

	// ChainCollector reports the counters of one chain engine.
	ChainCollector struct {
		source     StatsSource
		state      *prometheus.Desc
		position   *prometheus.Desc
		blocks     *prometheus.Desc
		dropped    *prometheus.Desc
		unitErrors *prometheus.Desc
	}

	// GrainCollector reports the counters of a grain pool. The pool function
	// may return nil while no pool is active.
	GrainCollector struct {
		pool      func() *grain.Pool
		active    *prometheus.Desc
		missed    *prometheus.Desc
		triggered *prometheus.Desc
		playhead  *prometheus.Desc
	}
)

func NewChainCollector(source StatsSource, constLabels prometheus.Labels) *ChainCollector {
	return &ChainCollector{
		source:     source,
		state:      prometheus.NewDesc("plughost_chain_state", "Engine state (0 idle, 1 needs starting, 2 started, 3 needs stopping)", nil, constLabels),
		position:   prometheus.NewDesc("plughost_chain_position_samples", "Sample position of the engine clock", nil, constLabels),
		blocks:     prometheus.NewDesc("plughost_chain_blocks_total", "Total number of processed blocks", nil, constLabels),
		dropped:    prometheus.NewDesc("plughost_chain_dropped_total", "Total number of items dropped because a bounded queue was full", []string{"queue"}, constLabels),
		unitErrors: prometheus.NewDesc("plughost_chain_unit_errors_total", "Total number of blocks in which a unit reported an error", nil, constLabels),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *ChainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.position
	ch <- c.blocks
	ch <- c.dropped
	ch <- c.unitErrors
}

// Collect implements the prometheus.Collector interface.
func (c *ChainCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(s.State))
	ch <- prometheus.MustNewConstMetric(c.position, prometheus.GaugeValue, float64(s.Position))
	ch <- prometheus.MustNewConstMetric(c.blocks, prometheus.CounterValue, float64(s.Blocks))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.DroppedMessages), "messages")
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.DroppedCommands), "commands")
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.DroppedEvents), "block_events")
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.DroppedOutbound), "outbound")
	ch <- prometheus.MustNewConstMetric(c.unitErrors, prometheus.CounterValue, float64(s.UnitErrors))
}

func NewGrainCollector(pool func() *grain.Pool, constLabels prometheus.Labels) *GrainCollector {
	return &GrainCollector{
		pool:      pool,
		active:    prometheus.NewDesc("plughost_grain_active_voices", "Voices sounding at the end of the last block", nil, constLabels),
		missed:    prometheus.NewDesc("plughost_grain_missed_total", "Total number of grains dropped because every voice was busy", nil, constLabels),
		triggered: prometheus.NewDesc("plughost_grain_triggered_total", "Total number of grains started", nil, constLabels),
		playhead:  prometheus.NewDesc("plughost_grain_playhead_samples", "Sample position in the current grain list", nil, constLabels),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *GrainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.missed
	ch <- c.triggered
	ch <- c.playhead
}

// Collect implements the prometheus.Collector interface.
func (c *GrainCollector) Collect(ch chan<- prometheus.Metric) {
	p := c.pool()
	if p == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(p.ActiveVoices()))
	ch <- prometheus.MustNewConstMetric(c.missed, prometheus.CounterValue, float64(p.MissedGrains()))
	ch <- prometheus.MustNewConstMetric(c.triggered, prometheus.CounterValue, float64(p.TriggeredGrains()))
	ch <- prometheus.MustNewConstMetric(c.playhead, prometheus.GaugeValue, float64(p.Playhead()))
}
