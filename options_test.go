package mainthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOptions_defaults(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.logger)
	assert.Nil(t, cfg.runLoop)
	assert.False(t, cfg.metricsEnabled)
	assert.Equal(t, DefaultSlowPumpThreshold, cfg.slowPumpThreshold)
	assert.Equal(t, defaultLogRates, cfg.logRates)
}

func TestResolveOptions_nilSkipped(t *testing.T) {
	cfg, err := resolveOptions([]Option{nil, WithMetrics(true), nil})
	require.NoError(t, err)
	assert.True(t, cfg.metricsEnabled)
}

func TestWithRunLoop_nil(t *testing.T) {
	_, err := resolveOptions([]Option{WithRunLoop(nil)})
	assert.Error(t, err)
}

func TestWithLogRate(t *testing.T) {
	cfg, err := resolveOptions([]Option{WithLogRate(nil)})
	require.NoError(t, err)
	assert.Nil(t, cfg.logRates)

	rates := map[time.Duration]int{time.Second: 2, time.Minute: 10}
	cfg, err = resolveOptions([]Option{WithLogRate(rates)})
	require.NoError(t, err)
	assert.Equal(t, rates, cfg.logRates)

	// longer windows must allow more events
	_, err = resolveOptions([]Option{WithLogRate(map[time.Duration]int{time.Second: 10, time.Minute: 5})})
	assert.Error(t, err)
}

func TestWithSlowPumpThreshold(t *testing.T) {
	cfg, err := resolveOptions([]Option{WithSlowPumpThreshold(0)})
	require.NoError(t, err)
	assert.Zero(t, cfg.slowPumpThreshold)
}
