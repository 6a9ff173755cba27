package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*slog.Logger, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return slog.New(handler), aw
}

func drain(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	log, aw := newTestHandler(buf, formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "device"), slog.LevelInfo, "reading.stored",
		slog.String("status", "ok"),
		slog.String("device_id", "ESP32_01"),
		slog.Float64("pm25", 35.2),
	)

	line := drain(t, aw, buf)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=device", "event=reading.stored", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
	if !strings.Contains(line, "chat_id=9") || !strings.Contains(line, "device_id=ESP32_01") {
		t.Fatalf("expected context and domain fields, got %s", line)
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	log, aw := newTestHandler(buf, formatJSON)
	ctx := WithRID(context.Background(), "rid-json")

	LogEvent(ctx, log.With("component", "tg.sender"), slog.LevelError, "send.fail",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)

	line := drain(t, aw, buf)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"tg.sender"`, `"event":"send.fail"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log, aw := newTestHandler(buf, formatJSON)
	rawRID := BuildRID(12, 34, 56)
	ctx := WithRID(context.Background(), rawRID)

	LogEvent(ctx, log, slog.LevelInfo, "rid.test")

	line := drain(t, aw, buf)
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"component":"app"`) {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerKeepsUUIDRID(t *testing.T) {
	buf := &bytes.Buffer{}
	log, aw := newTestHandler(buf, formatKV)
	rid := "5f0c2a4e-8d7b-4d8e-9b8f-2f0b6f1d9a11"

	LogEvent(WithRID(context.Background(), rid), log, slog.LevelInfo, "http.request")

	line := drain(t, aw, buf)
	if !strings.Contains(line, "rid="+rid) {
		t.Fatalf("expected uuid rid untouched, got %s", line)
	}
}

func TestStructuredHandlerNormalizesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log, aw := newTestHandler(buf, formatKV)

	LogEvent(context.Background(), log, slog.LevelInfo, "notify.sensor",
		slog.String("alert", "DANGER"),
		slog.String("outcome", "exploded"),
		slog.Duration("duration", 1499*time.Microsecond),
		slog.String("empty", ""),
	)

	line := drain(t, aw, buf)
	for _, want := range []string{"alert=danger", "duration_ms=1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
	for _, unwanted := range []string{"outcome=", "empty="} {
		if strings.Contains(line, unwanted) {
			t.Fatalf("unexpected %s in %s", unwanted, line)
		}
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	log, aw := newTestHandler(buf, formatKV)

	LogEvent(context.Background(), log, slog.LevelDebug, "too.chatty")

	if line := drain(t, aw, buf); line != "" {
		t.Fatalf("expected debug line to be filtered, got %s", line)
	}
}
