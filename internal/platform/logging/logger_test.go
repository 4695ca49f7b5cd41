package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// captureLogOutput runs logFn against a freshly built process logger and returns the decoded lines.
func captureLogOutput(t *testing.T, logFn func(*zap.Logger)) []map[string]any {
	t.Helper()

	resetLoggerForTest()
	t.Cleanup(resetLoggerForTest)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	defer func() { _ = r.Close() }()

	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	logger := Logger()
	logFn(logger)
	_ = logger.Sync()

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read log output: %v", err)
	}

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("failed to unmarshal log JSON %q: %v", line, err)
		}
		entries = append(entries, payload)
	}
	return entries
}

func resetLoggerForTest() {
	loggerOnce = sync.Once{}
	baseLogger = nil
	loggerErr = nil
	level.SetLevel(zapcore.InfoLevel)
}

func TestLoggerStructuredOutput(t *testing.T) {
	entries := captureLogOutput(t, func(l *zap.Logger) {
		l.Info("GET /json", zap.Int("status", 200))
	})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	payload := entries[0]

	if got := payload["severity"]; got != "INFO" {
		t.Fatalf("expected severity INFO, got %v", got)
	}
	if _, exists := payload["level"]; exists {
		t.Fatal("did not expect a level field")
	}
	if msg := payload["message"]; msg != "GET /json" {
		t.Fatalf("expected message 'GET /json', got %v", msg)
	}
	if status, ok := payload["status"].(float64); !ok || status != 200 {
		t.Fatalf("expected status 200, got %v", payload["status"])
	}
	if caller, ok := payload["caller"].(string); !ok || !strings.Contains(caller, "logger_test.go") {
		t.Fatalf("expected caller to reference logger_test.go, got %v", payload["caller"])
	}

	ts, ok := payload["timestamp"].(string)
	if !ok {
		t.Fatalf("expected timestamp string, got %T", payload["timestamp"])
	}
	if _, err := time.Parse(RFC3339Micros, ts); err != nil {
		t.Fatalf("timestamp %q is not RFC 3339 with microseconds: %v", ts, err)
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	entries := captureLogOutput(t, func(l *zap.Logger) {
		l.Debug("hidden")
		l.Warn("shown")
	})
	if len(entries) != 1 {
		t.Fatalf("expected only the warning, got %d entries", len(entries))
	}
	if got := entries[0]["severity"]; got != "WARNING" {
		t.Fatalf("expected severity WARNING, got %v", got)
	}
}

func TestSetLevelEnablesDebug(t *testing.T) {
	entries := captureLogOutput(t, func(l *zap.Logger) {
		if err := SetLevel("debug"); err != nil {
			t.Fatalf("SetLevel: %v", err)
		}
		l.Debug("visible")
	})
	if len(entries) != 1 || entries[0]["severity"] != "DEBUG" {
		t.Fatalf("expected one DEBUG entry, got %v", entries)
	}
}

func TestSetLevelRejectsUnknownName(t *testing.T) {
	t.Cleanup(resetLoggerForTest)

	err := SetLevel("chatty")
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
	if !strings.Contains(err.Error(), `"chatty"`) {
		t.Fatalf("expected error to name the level, got %v", err)
	}
	if Level() != zapcore.InfoLevel {
		t.Fatalf("expected level to stay info, got %v", Level())
	}
}

func TestLoggerSingleton(t *testing.T) {
	resetLoggerForTest()

	var wg sync.WaitGroup
	results := make(chan *zap.Logger, 50)
	for range 50 {
		wg.Go(func() {
			results <- Logger()
		})
	}
	wg.Wait()
	close(results)

	first := Logger()
	for l := range results {
		if l != first {
			t.Fatal("concurrent Logger() calls returned different instances")
		}
	}
	if err := Err(); err != nil {
		t.Fatalf("expected nil init error, got %v", err)
	}
}

// captureArrayEncoder records strings appended by level and time encoders.
type captureArrayEncoder struct {
	values []string
}

func (c *captureArrayEncoder) AppendBool(bool)                            {}
func (c *captureArrayEncoder) AppendByteString([]byte)                    {}
func (c *captureArrayEncoder) AppendComplex128(complex128)                {}
func (c *captureArrayEncoder) AppendComplex64(complex64)                  {}
func (c *captureArrayEncoder) AppendFloat64(float64)                      {}
func (c *captureArrayEncoder) AppendFloat32(float32)                      {}
func (c *captureArrayEncoder) AppendInt(int)                              {}
func (c *captureArrayEncoder) AppendInt64(int64)                          {}
func (c *captureArrayEncoder) AppendInt32(int32)                          {}
func (c *captureArrayEncoder) AppendInt16(int16)                          {}
func (c *captureArrayEncoder) AppendInt8(int8)                            {}
func (c *captureArrayEncoder) AppendString(s string)                      { c.values = append(c.values, s) }
func (c *captureArrayEncoder) AppendUint(uint)                            {}
func (c *captureArrayEncoder) AppendUint64(uint64)                        {}
func (c *captureArrayEncoder) AppendUint32(uint32)                        {}
func (c *captureArrayEncoder) AppendUint16(uint16)                        {}
func (c *captureArrayEncoder) AppendUint8(uint8)                          {}
func (c *captureArrayEncoder) AppendUintptr(uintptr)                      {}
func (c *captureArrayEncoder) AppendDuration(time.Duration)               {}
func (c *captureArrayEncoder) AppendTime(time.Time)                       {}
func (c *captureArrayEncoder) AppendArray(zapcore.ArrayMarshaler) error   { return nil }
func (c *captureArrayEncoder) AppendObject(zapcore.ObjectMarshaler) error { return nil }
func (c *captureArrayEncoder) AppendReflected(any) error                  { return nil }

func TestEncodeSeverityMapping(t *testing.T) {
	tests := []struct {
		level    zapcore.Level
		expected string
	}{
		{zapcore.DebugLevel, "DEBUG"},
		{zapcore.InfoLevel, "INFO"},
		{zapcore.WarnLevel, "WARNING"},
		{zapcore.ErrorLevel, "ERROR"},
		{zapcore.DPanicLevel, "CRITICAL"},
		{zapcore.PanicLevel, "ALERT"},
		{zapcore.FatalLevel, "EMERGENCY"},
		{zapcore.Level(99), "DEFAULT"},
	}

	for _, tt := range tests {
		enc := &captureArrayEncoder{}
		encodeSeverity(tt.level, enc)
		if len(enc.values) != 1 || enc.values[0] != tt.expected {
			t.Fatalf("encodeSeverity(%v) = %v, want %s", tt.level, enc.values, tt.expected)
		}
	}
}

func TestEncodeTimeMicrosConvertsToUTC(t *testing.T) {
	enc := &captureArrayEncoder{}
	encodeTimeMicros(time.Date(2024, 6, 15, 12, 0, 0, 500000000, time.FixedZone("EST", -5*60*60)), enc)
	if len(enc.values) != 1 || enc.values[0] != "2024-06-15T17:00:00.500000Z" {
		t.Fatalf("unexpected encoded time: %v", enc.values)
	}
}
