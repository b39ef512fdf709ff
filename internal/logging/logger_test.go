package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithService(t *testing.T) {
	logger := NewLoggerWithService("graphpress")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithField("request_id", "abc").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "graphpress", entry["service"])
	assert.Equal(t, "abc", entry["request_id"])
	assert.Equal(t, "hello", entry["msg"])
}
