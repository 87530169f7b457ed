package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/logging"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.NewWithWriter(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("participant", "42").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "42", entry["participant"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_BadLevel(t *testing.T) {
	_, err := logging.NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, closer, err := logging.OpenFile(dir, "activity.log")
	require.NoError(t, err)

	log.Info().Str("event", "chat_started").Send()
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "activity.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"chat_started"`)
}
