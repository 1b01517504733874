package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCarryComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := newZerologTo(&buf, "dispatch")
	l.Infof("committed version %d", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "committed version 3", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestDebugSuppressedAtDefaultLevel(t *testing.T) {
	t.Setenv("DSP_LOG_LEVEL", "")
	var buf bytes.Buffer
	l := newZerologTo(&buf, "dispatch")
	l.Debugf("noise")
	l.Debugw("noise", map[string]any{"k": 1})
	assert.Empty(t, buf.String())
}

func TestLevelFollowsEnv(t *testing.T) {
	t.Setenv("DSP_LOG_LEVEL", "debug")
	var buf bytes.Buffer
	l := newZerologTo(&buf, "dispatch")
	l.Debugw("solve scheduled", map[string]any{"vehicles": 2})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "solve scheduled", entry["message"])
	assert.Equal(t, float64(2), entry["vehicles"])
}

func TestConsoleFormatInDev(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	var buf bytes.Buffer
	l := newZerologTo(&buf, "dispatch")
	l.Warnf("window breach on %s", "s1")
	assert.Contains(t, buf.String(), "window breach on s1")
	assert.Error(t, json.Unmarshal(buf.Bytes(), &map[string]any{}))
}
