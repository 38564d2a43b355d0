package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/amirphl/shortlink/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info"}) })

	Info().Str("short_code", "abc123").Msg("link created")

	out := buf.String()
	assert.Contains(t, out, `"message":"link created"`)
	assert.Contains(t, out, `"short_code":"abc123"`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestCtxAddsRequestMetadata(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info"}) })

	ctx := context.WithValue(context.Background(), utils.RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, utils.IPAddressKey, "10.0.0.1")
	Ctx(ctx).Warn().Msg("slow")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"ip":"10.0.0.1"`)
}

func TestCtxNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is tolerated
	l := Ctx(nil)
	require.NotNil(t, l)
}

func TestGormLoggerLevels(t *testing.T) {
	assert.NotNil(t, GormLogger("debug", 0))
	assert.NotNil(t, GormLogger("silent", 0))

	// LogMode must keep returning a usable logger
	l := GormLogger("warn", 0).LogMode(gormlogger.Error)
	assert.NotNil(t, l)
}

func TestGormWriterPrintf(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info"}) })

	gormWriter{}.Printf("slow query %s took %dms", "SELECT 1", 250)

	out := buf.String()
	assert.Contains(t, out, `"component":"gorm"`)
	assert.Contains(t, out, `"message":"slow query SELECT 1 took 250ms"`)
}
