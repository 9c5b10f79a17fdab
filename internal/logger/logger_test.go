package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallplates/internal/config"
)

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(config.LoggerConfig{Level: "debug", Format: "json"}, &buf)

	WithComponent("submission").Debug("staged files", "count", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "staged files", record["msg"])
	assert.Equal(t, "submission", record["component"])
	assert.EqualValues(t, 3, record["count"])
}

func TestInitTextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(config.LoggerConfig{Level: "warn"}, &buf)

	Get().Info("hidden")
	Get().Warn("shown", "error", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.True(t, strings.Contains(out, "boom"))
	SetLevel(slog.LevelInfo)
}

func TestOrDefault(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, custom, OrDefault(custom, "x"))
	assert.NotNil(t, OrDefault(nil, "x"))
}
