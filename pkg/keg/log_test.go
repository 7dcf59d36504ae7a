package keg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDefaultLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		for _, jsonOutput := range []bool{false, true} {
			logger, err := NewDefaultLogger(level, jsonOutput)
			require.Nil(t, err)
			require.NotNil(t, logger)
		}
	}

	logger, err := NewDefaultLogger("debug", false)
	require.Nil(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(zap.DebugLevel))

	logger, err = NewDefaultLogger("warn", true)
	require.Nil(t, err)
	assert.False(t, logger.Desugar().Core().Enabled(zap.InfoLevel))

	_, err = NewDefaultLogger("verbose", false)
	assert.NotNil(t, err)
}
