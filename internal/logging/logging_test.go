package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"fitroom/internal/config"
)

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := New(config.LogConfig{Level: "warn", Format: "json", OutputPaths: []string{path}})

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger.Warn("merge rejected")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"merge rejected"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNewFallsBack(t *testing.T) {
	logger := New(config.LogConfig{OutputPaths: []string{"/nonexistent-dir/x/y.log"}})
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
