package main

import (
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meme-go/meme/pkg/config"
)

func TestClientConfigFromFile(t *testing.T) {
	cfg := config.Default()
	cfg.Model.ModelName = "CU_HXR"
	cfg.Reconnect = true
	cfg.ReconnectMaxDelay = 5 * time.Second
	cfg.MaxMessageSize = 32 << 20

	out, closeLog, err := clientConfig(cfg, slog.Default())
	require.NoError(t, err)
	defer closeLog()

	assert.Equal(t, cfg.Address, out.Address)
	assert.True(t, out.Reconnect)
	assert.Equal(t, 5*time.Second, out.ReconnectMaxDelay)
	assert.Equal(t, uint32(32<<20), out.MaxMessageSize)
	assert.Nil(t, out.ProtocolLogger)
}

func TestClientConfigFrameLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Model.ModelName = "CU_HXR"
	limit := uint64(math.MaxUint32)
	cfg.MaxMessageSize = int(limit + 1)

	_, _, err := clientConfig(cfg, slog.Default())
	assert.Error(t, err)
}
