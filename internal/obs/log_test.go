package obs

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := SetLogger(zap.New(core))
	defer SetLogger(prev)

	LogRequest("req-1", "GET", "/v1/session", 200, 1.5)

	entries := logs.FilterMessage("request_complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["path"] != "/v1/session" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["status"] != int64(200) {
		t.Fatalf("unexpected status: %v", fields["status"])
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("prod", "debug", "svc"); err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if _, err := NewLogger("dev", "", ""); err != nil {
		t.Fatalf("NewLogger dev: %v", err)
	}
	if _, err := NewLogger("prod", "loud", "svc"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
