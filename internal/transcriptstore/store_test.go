package transcriptstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-speech/internal/config"
	"github.com/loqalabs/loqa-speech/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	ts, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = ts.Close() })
	if err := ts.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "session"}
	ts, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	t.Cleanup(func() { _ = ts.Close() })

	sessionID := "session-123"
	if err := ts.AppendSession(context.Background(), sessionID, 16000); err != nil {
		t.Fatalf("append session: %v", err)
	}
	rec := Record{
		SessionID:  sessionID,
		Text:       "hello world",
		Confidence: -4.2,
		Items: []protocol.TranscriptItem{
			{Character: "h", Timestep: 0, StartTime: 0},
			{Character: "e", Timestep: 2, StartTime: 0.04},
		},
	}
	if err := ts.AppendTranscript(context.Background(), rec); err != nil {
		t.Fatalf("append transcript: %v", err)
	}
	records, err := ts.ListSessionTranscripts(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(records))
	}
	got := records[0]
	if got.Text != "hello world" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
	if got.ID == "" {
		t.Fatal("expected generated record id")
	}
	if len(got.Items) != 2 || got.Items[1].Character != "e" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.Confidence != -4.2 {
		t.Fatalf("unexpected confidence: %v", got.Confidence)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	ts, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	t.Cleanup(func() { _ = ts.Close() })

	ts.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := ts.AppendSession(context.Background(), "old-session", 16000); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := ts.AppendTranscript(context.Background(), Record{SessionID: "old-session", Text: "stale"}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}

	ts.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := ts.AppendSession(context.Background(), "new-session", 16000); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := ts.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	records, err := ts.ListSessionTranscripts(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
