package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := Component(newWithWriter(Config{Level: "debug"}, &buf), "scheduler")

	log.Info().Int64("transaction_id", 7).Msg("settled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "chama-ledger", entry["service"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "settled", entry["message"])
	assert.Equal(t, float64(7), entry["transaction_id"])
}

func TestNewWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(Config{Level: "chatty"}, &buf)

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
