package queue

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeMessageReadsWireNames(t *testing.T) {
	body := `{"analysisId":"analysis-123","sourcePath":"/tmp/media/analysis-123_clip.mp4","requestId":"request-456","enqueuedAt":"2026-01-30T22:00:00Z","version":1}`

	got, err := DecodeMessage([]byte(body))
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.AnalysisID != "analysis-123" || got.SourcePath != "/tmp/media/analysis-123_clip.mp4" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.RequestID != "request-456" || got.Version != 1 {
		t.Fatalf("unexpected metadata: %+v", got)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("not-json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewMessageStampsVersionAndTime(t *testing.T) {
	msg := NewMessage("a-1", "/tmp/a.mp4", "")
	if msg.Version != MessageVersion {
		t.Fatalf("expected version %d, got %d", MessageVersion, msg.Version)
	}
	if _, err := time.Parse(time.RFC3339, msg.EnqueuedAt); err != nil {
		t.Fatalf("enqueuedAt not RFC3339: %v", err)
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(payload), "requestId") {
		t.Fatalf("empty request id should be omitted: %s", payload)
	}
}
