package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "wallet-ledger", "info", "production")

	l.Debug("hidden")
	l.Info("deposit completed", "transaction_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "deposit completed", line["msg"])
	assert.Equal(t, "wallet-ledger", line["service"])
	assert.EqualValues(t, 7, line["transaction_id"])
}

func TestNew_TextInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "wallet-ledger", "debug", "development")

	l.Debug("lock acquired")

	assert.Contains(t, buf.String(), "msg=\"lock acquired\"")
	assert.Contains(t, buf.String(), "service=wallet-ledger")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "svc", "info", "production"))

	ctx = With(ctx, "account_id", "acct-1")
	FromContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "acct-1", line["account_id"])
}

func TestFromContext_DefaultsToSlogDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
