package log_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"i4.energy/across/cellular/log"
)

func TestNew(t *testing.T) {
	t.Run("Production", func(t *testing.T) {
		l, err := log.New(false, "warn")
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("Development", func(t *testing.T) {
		l, err := log.New(true, "debug")
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("Unknown level", func(t *testing.T) {
		_, err := log.New(false, "loud")
		assert.Error(t, err)
	})
}

func TestNop(t *testing.T) {
	assert.False(t, log.Nop().Core().Enabled(zapcore.ErrorLevel))
}
