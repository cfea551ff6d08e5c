package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestConfigureWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	lgr := Configure(Config{Level: "info", Output: &buf, Service: "scms"})
	t.Cleanup(func() { Configure(Config{Level: "info", Pretty: true}) })

	Debug().Msg("hidden")
	lgr.Info().Str("course", "CS101").Msg("created")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &event))
	assert.Equal(t, "created", event["message"])
	assert.Equal(t, "CS101", event["course"])
	assert.Equal(t, "scms", event["service"])
}
