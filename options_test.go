package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOptionsDefaults(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.logger)
	assert.Zero(t, cfg.channelCapacity)
	assert.False(t, cfg.metricsEnabled)
}

func TestResolveOptionsSkipsNil(t *testing.T) {
	cfg, err := resolveOptions([]Option{nil, WithMetrics(true), nil})
	require.NoError(t, err)
	assert.True(t, cfg.metricsEnabled)
}

func TestWithChannelCapacity(t *testing.T) {
	cfg, err := resolveOptions([]Option{WithChannelCapacity(64)})
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.channelCapacity)

	_, err = resolveOptions([]Option{WithChannelCapacity(-1)})
	var ia *InvalidArgumentError
	require.ErrorAs(t, err, &ia)
}
