package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"github.com/Xenakios/AudioPluginHost-II-sub001/chain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/grain"
	"github.com/Xenakios/AudioPluginHost-II-sub001/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats chain.Stats

func (f fixedStats) Stats() chain.Stats { return chain.Stats(f) }

func TestChainCollector(t *testing.T) {
	c := metrics.NewChainCollector(fixedStats{State: chain.Started, Blocks: 12, DroppedMessages: 3, UnitErrors: 1}, prometheus.Labels{"chain": "main"})
	assert.Equal(t, 8, testutil.CollectAndCount(c))
	err := testutil.CollectAndCompare(c, strings.NewReader(`
# HELP plughost_chain_blocks_total Total number of processed blocks
# TYPE plughost_chain_blocks_total counter
plughost_chain_blocks_total{chain="main"} 12
# HELP plughost_chain_unit_errors_total Total number of blocks in which a unit reported an error
# TYPE plughost_chain_unit_errors_total counter
plughost_chain_unit_errors_total{chain="main"} 1
`), "plughost_chain_blocks_total", "plughost_chain_unit_errors_total")
	assert.NoError(t, err)
}

func TestGrainCollector(t *testing.T) {
	var pool *grain.Pool
	c := metrics.NewGrainCollector(func() *grain.Pool { return pool }, nil)
	assert.Equal(t, 0, testutil.CollectAndCount(c), "nothing to report without a pool")

	var err error
	pool, err = grain.NewPool(grain.PoolOptions{Voices: 1, Channels: 1, SampleRate: 1000, MaxFrames: 8})
	require.NoError(t, err)
	_, err = pool.Prepare([]grain.Event{{Duration: 1, Frequency: 100, Volume: 1}, {Duration: 1, Frequency: 100, Volume: 1}}, grain.DefaultParams())
	require.NoError(t, err)
	pool.ProcessBlock(plughost.MakeAudioBuffer(1, 8), 8)
	assert.Equal(t, 4, testutil.CollectAndCount(c))
	err = testutil.CollectAndCompare(c, strings.NewReader(`
# HELP plughost_grain_missed_total Total number of grains dropped because every voice was busy
# TYPE plughost_grain_missed_total counter
plughost_grain_missed_total 1
# HELP plughost_grain_triggered_total Total number of grains started
# TYPE plughost_grain_triggered_total counter
plughost_grain_triggered_total 1
`), "plughost_grain_missed_total", "plughost_grain_triggered_total")
	assert.NoError(t, err)
}

func TestEndpointServesRegistry(t *testing.T) {
	reg, err := metrics.NewRegistry(metrics.NewChainCollector(fixedStats{Blocks: 5}, nil))
	require.NoError(t, err)
	e := metrics.NewEndpoint("127.0.0.1:0", reg, nil)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plughost_chain_blocks_total 5")
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	require.NoError(t, e.Start())
	assert.NotEqual(t, "127.0.0.1:0", e.Addr())
	require.NoError(t, e.Shutdown(context.Background()))
}
