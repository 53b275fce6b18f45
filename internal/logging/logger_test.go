package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Msg("thread loaded")
	assert.Contains(t, buf.String(), "thread loaded")
}

func TestNewStyledDefaultWriter(t *testing.T) {
	require.NotNil(t, NewStyled(nil, "info", "json"))
	require.NotNil(t, NewStyled(nil, "info", "pretty"))
}

func TestSubTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("composer")

	log.Info().Msg("draft reset")
	out := buf.String()
	assert.Contains(t, out, "draft reset")
	assert.Contains(t, out, `"subsystem":"composer"`)
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("call").With("variant", "video")

	log.Info().Msg("device acquired")
	out := buf.String()
	assert.Contains(t, out, `"variant":"video"`)
	assert.Contains(t, out, `"subsystem":"call"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"LOUD", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSilentAndNop(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")
	log.Error().Msg("should not appear")
	assert.Empty(t, buf.String())

	Nop().Error().Msg("discarded")
}
