// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	return out
}

func TestConfigure_AttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "ratewait-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("limiter")
	l.Info().Str(FieldEvent, "test.event").Msg("hello")

	fields := decodeLine(t, &buf)
	assert.Equal(t, "ratewait-test", fields[FieldService])
	assert.Equal(t, "v0.0.1", fields[FieldVersion])
	assert.Equal(t, "limiter", fields[FieldComponent])
	assert.Equal(t, "test.event", fields[FieldEvent])
}

func TestWithComponentFromContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-123")
	l := WithComponentFromContext(ctx, "api")
	l.Info().Msg("handled")

	fields := decodeLine(t, &buf)
	assert.Equal(t, "req-123", fields[FieldRequestID])
	assert.Equal(t, "api", fields[FieldComponent])
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Empty(t, RequestIDFromContext(nil))
}

func TestDerive(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := Derive(func(c *zerolog.Context) { *c = c.Str(FieldKey, "tenant-a") })
	l.Warn().Msg("derived")

	fields := decodeLine(t, &buf)
	assert.Equal(t, "tenant-a", fields[FieldKey])
	assert.Equal(t, "warn", fields["level"])
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("chatty"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
