package rpcdispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestWithLogger(t *testing.T) {
	newDispatcher := func(buf *bytes.Buffer, err error) *Dispatcher {
		logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		svc := NewService(nil)
		svc.Handle("run", func(ctx context.Context, args map[string]any) (any, error) {
			return nil, err
		})
		return New([]Endpoint{svc}, WithLogger(logger))
	}

	t.Run("success at debug", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := newDispatcher(&buf, nil).Dispatch(context.Background(), Call{Method: "run"})
		require.NoError(t, err)

		records := logRecords(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "DEBUG", records[0]["level"])
		assert.Equal(t, "rpc call succeeded", records[0]["msg"])
		assert.Equal(t, "run", records[0]["method"])
		assert.Equal(t, "1.0", records[0]["version"])
	})

	t.Run("failure at error", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := newDispatcher(&buf, errors.New("disk full")).Dispatch(context.Background(), Call{Method: "run"})
		require.Error(t, err)

		records := logRecords(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "ERROR", records[0]["level"])
		assert.Equal(t, "disk full", records[0]["error"])
	})

	t.Run("expected failure at debug", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := newDispatcher(&buf, Expected(errors.New("not found"))).Dispatch(context.Background(), Call{Method: "run"})
		require.Error(t, err)

		records := logRecords(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "DEBUG", records[0]["level"])
		assert.Equal(t, "rpc call failed", records[0]["msg"])
	})

	t.Run("rejection at warn", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := newDispatcher(&buf, nil).Dispatch(context.Background(), Call{Method: "run", Namespace: "other", Version: "4.2"})
		require.ErrorIs(t, err, ErrUnsupportedVersion)

		records := logRecords(t, &buf)
		require.Len(t, records, 1)
		assert.Equal(t, "WARN", records[0]["level"])
		assert.Equal(t, "other", records[0]["namespace"])
		assert.Equal(t, "4.2", records[0]["version"])
	})

	t.Run("nil logger installs nothing", func(t *testing.T) {
		d := New(nil, WithLogger(nil))
		assert.Empty(t, d.hooks.onReject)
		assert.Empty(t, d.hooks.onSuccess)
	})
}
