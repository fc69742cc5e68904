package observability

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/buildsight/rca-cli/internal/config"
)

func TestGetLogger_FallbackBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger())
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	writer := zapcore.AddSync(io.Discard)
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "first"}, writer)
	first := GetLogger()

	Initialize(config.LoggerConfig{Level: "error", Format: "json", ServiceName: "second"}, writer)
	assert.Same(t, first, GetLogger())
}

func TestInitialize_FileOutputIsJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "rca.log")
	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "rca-cli",
		LogFile:     logFile,
		MaxSize:     1,
	}, zapcore.AddSync(io.Discard))

	GetLogger().Info("hello from the test")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello from the test", entry["msg"])
}

func TestInitialize_BadLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	Initialize(config.LoggerConfig{Level: "shouting", Format: "json", ServiceName: "rca-cli"},
		zapcore.AddSync(io.Discard))

	logger := GetLogger()
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
