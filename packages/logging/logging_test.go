package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" error ", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.WarnLevel},
		{"chatty", zerolog.WarnLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNew_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", false)

	log.Debug().Msg("hidden")
	log.Info().Str("url", "http://example.com").Msg("sent")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"url":"http://example.com"`)
	assert.Contains(t, out, `"message":"sent"`)
}
