package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("verbose"))
}

func TestBatchLogger_FoldsSuccessfulRequests(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	log := New(Options{Level: "info", Output: &buf, BatchSize: 3})

	log.LogRequest("GET", "/api/v1/alerts/active", 200, 5*time.Millisecond, nil)
	log.LogRequest("GET", "/api/v1/alerts/active", 200, 15*time.Millisecond, nil)
	assert.Empty(t, buf.String())

	log.LogRequest("GET", "/health", 204, time.Millisecond, nil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, true, entry["batch_summary"])
	assert.Equal(t, float64(3), entry["total_requests"])
}

func TestBatchLogger_LogsFailuresImmediately(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	log := New(Options{Output: &buf})

	log.LogRequest("POST", "/api/v1/alerts/:id/acknowledge", 409, time.Millisecond, logrus.Fields{"client_ip": "10.0.0.1"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, float64(409), entry["status"])
	assert.Equal(t, "10.0.0.1", entry["client_ip"])
}
