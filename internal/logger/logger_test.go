package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProductionIsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	log.Info().Str("user_id", "u-1").Msg("login")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "info", line["level"])
	require.Equal(t, "u-1", line["user_id"])
	require.Contains(t, line, "time")
}

func TestNewDevIsConsoleAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug().Msg("visible")
	require.Contains(t, buf.String(), "visible")
	require.False(t, json.Valid(buf.Bytes()))
}
