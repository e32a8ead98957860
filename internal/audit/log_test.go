package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"accounter.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	obs.SetOutput(&buf, "info")
	defer obs.SetOutput(&bytes.Buffer{}, "info")

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithActor(ctx, "ops@example.com")

	if err := LogEvent(ctx, "ledger.regenerated", map[string]any{"charge_id": "c-1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := bytes.TrimSpace(buf.Bytes())
	if len(line) == 0 {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "ledger.regenerated" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor"] != "ops@example.com" {
		t.Fatalf("unexpected actor: %v", entry["actor"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["charge_id"] != "c-1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}

func TestBlankValuesAreIgnored(t *testing.T) {
	ctx := WithActor(WithRequestID(context.Background(), " "), "")
	if RequestID(ctx) != "" || stringValue(ctx, actorKey) != "" {
		t.Fatal("blank values should not be attached")
	}
}
