package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "hidden debug")
	logger.Info(ctx, "hidden info")
	logger.Warn(ctx, nil, "visible warn")
	logger.Error(ctx, errors.New("boom"), "visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn")
	assert.Contains(t, out, "visible error")
	assert.Contains(t, out, "error=boom")
}

func TestJSONFieldsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	scoped := logger.WithComponent("scanner").With("file", "index.chtl")
	scoped.Info(context.Background(), "scanned", "fragments", 4, "dangling")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "scanned", record["msg"])
	assert.Equal(t, "scanner", record["component"])
	assert.Equal(t, "index.chtl", record["file"])
	assert.Equal(t, float64(4), record["fragments"])
	assert.NotContains(t, record, "dangling")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})
	_ = parent.With("child", true)

	parent.Info(context.Background(), "parent")
	assert.NotContains(t, buf.String(), "child")
}

func TestFatalDoesNotExit(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})
	logger.Fatal(context.Background(), errors.New("bad"), "stopping")

	assert.Contains(t, buf.String(), "fatal=true")
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	op := logger.StartOperation("scan")
	d := op.End(context.Background(), "file", "a.chtl")
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))

	out := buf.String()
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "operation=scan")
	assert.Contains(t, out, "file=a.chtl")

	buf.Reset()
	StartOperation(logger, "merge").EndWithError(context.Background(), errors.New("oops"))
	assert.Contains(t, buf.String(), "Operation failed")
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Info(context.Background(), "nothing")
	assert.Equal(t, l, l.With("a", 1).WithComponent("x"))
	assert.IsType(t, NopLogger{}, OrNop(nil))

	op := StartOperation(nil, "noop")
	op.End(context.Background())
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(&LoggerConfig{Level: LevelInfo}, dir)
	require.NoError(t, err)

	logger.Info(context.Background(), "written to file")
	require.NoError(t, logger.Close())

	assert.True(t, strings.HasPrefix(logger.Path(), dir))
	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
