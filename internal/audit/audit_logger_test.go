package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAudit(buf *bytes.Buffer) *AuditLogger {
	a := NewAuditLogger(zerolog.New(buf))
	a.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return a
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditLogger_LogSettlement(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAudit(&buf)

	a.LogSettlement(42, 7, "saving", decimal.NewFromInt(250), "completed", "QKX12ABC")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "AUDIT", entry["message"])
	assert.Equal(t, "SETTLEMENT", entry["event_type"])
	assert.Equal(t, float64(42), entry["transaction_id"])
	assert.Equal(t, "250.00", entry["amount"])
	assert.Equal(t, "QKX12ABC", entry["receipt"])
	assert.Equal(t, "audit", entry["component"])
}

func TestAuditLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAudit(&buf)

	a.LogError(3, 1, errors.New("gateway unreachable"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", entry["event_type"])
	assert.Equal(t, "FAILED", entry["status"])
	assert.Equal(t, "gateway unreachable", entry["error"])
}
