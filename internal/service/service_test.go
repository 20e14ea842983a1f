package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-speech/internal/bus"
	"github.com/loqalabs/loqa-speech/internal/config"
	"github.com/loqalabs/loqa-speech/internal/natsserver"
	"github.com/loqalabs/loqa-speech/internal/protocol"
	"github.com/loqalabs/loqa-speech/internal/transcriptstore"
	"github.com/loqalabs/loqa-speech/speech"
)

func TestBytesToSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	got := bytesToSamples(samplesToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("length = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestBytesToSamplesDropsOddByte(t *testing.T) {
	if got := bytesToSamples([]byte{0x01, 0x02, 0x03}); len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
}

const testManifest = `format: 1
sample_rate: 8000
window_samples: 4
window_stride: 4
alphabet:
  - " "
  - "a"
  - "b"
acoustic:
  backend: mock
`

func newTestModel(t *testing.T) *speech.Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	model, err := speech.New(path, 16)
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	t.Cleanup(func() { _ = model.Close() })
	return model
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// End to end over an embedded broker: frames in, final transcript out,
// archived in the store.
func TestTranscribesFramesOverBus(t *testing.T) {
	log := discardLogger()
	es, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, log)
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(es.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{
		Servers:        []string{es.ClientURL()},
		ConnectTimeout: 2000,
	}, log)
	if err != nil {
		t.Fatalf("connect bus: %v", err)
	}
	t.Cleanup(client.Close)

	store, err := transcriptstore.Open(context.Background(), config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "transcripts.db"),
		RetentionMode: "session",
	}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	model := newTestModel(t)
	svc := New(context.Background(), config.ServiceConfig{
		Enabled:        true,
		PublishInterim: false,
		MaxResults:     1,
	}, client, model, store)
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Close)

	finals := make(chan protocol.Transcript, 1)
	sub, err := client.Conn().Subscribe(protocol.SubjectTranscriptFinal, func(msg *nats.Msg) {
		var tr protocol.Transcript
		if err := json.Unmarshal(msg.Data, &tr); err != nil {
			t.Errorf("decode transcript: %v", err)
			return
		}
		finals <- tr
	})
	if err != nil {
		t.Fatalf("subscribe finals: %v", err)
	}
	t.Cleanup(func() { _ = sub.Drain() })

	// One window of [100 100 100 100] maps onto the symbol "a" under the
	// mock backend.
	pcm := samplesToBytes([]int16{100, 100, 100, 100})
	publish := func(seq int, final bool) {
		frame := protocol.AudioFrame{
			SessionID:  "sess-1",
			Sequence:   seq,
			SampleRate: 8000,
			Channels:   1,
			PCM:        pcm,
			Final:      final,
		}
		data, err := json.Marshal(frame)
		if err != nil {
			t.Fatalf("marshal frame: %v", err)
		}
		subject := protocol.SubjectAudioFramePrefix + ".sess-1"
		if err := client.Conn().Publish(subject, data); err != nil {
			t.Fatalf("publish frame: %v", err)
		}
	}
	publish(0, false)
	publish(1, true)

	select {
	case tr := <-finals:
		if tr.SessionID != "sess-1" {
			t.Fatalf("session id = %q", tr.SessionID)
		}
		if tr.Text != "a" {
			t.Fatalf("text = %q, want %q", tr.Text, "a")
		}
		if tr.Partial {
			t.Fatal("final transcript marked partial")
		}
		if len(tr.Items) == 0 {
			t.Fatal("final transcript missing items")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final transcript")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		records, err := store.ListSessionTranscripts(context.Background(), "sess-1", 10)
		if err != nil {
			t.Fatalf("list transcripts: %v", err)
		}
		if len(records) == 1 {
			if records[0].Text != "a" {
				t.Fatalf("stored text = %q", records[0].Text)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 stored transcript, got %d", len(records))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// A final frame whose inference is still running must not block Close:
// the frame handler releases the session lock before touching the
// session map, and Close never holds the map lock while discarding.
func TestCloseDuringInFlightFinalFrame(t *testing.T) {
	log := discardLogger()
	es, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, log)
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(es.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{
		Servers:        []string{es.ClientURL()},
		ConnectTimeout: 2000,
	}, log)
	if err != nil {
		t.Fatalf("connect bus: %v", err)
	}
	t.Cleanup(client.Close)

	// An exec backend that stalls for a second per window.
	manifest := `format: 1
sample_rate: 8000
window_samples: 4
window_stride: 4
alphabet:
  - " "
  - "a"
  - "b"
acoustic:
  backend: exec
  command: 'sh -c "sleep 1; cat >/dev/null; echo [[-1.0,-1.2,-1.4,-0.2]]"'
`
	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	model, err := speech.New(path, 8)
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	t.Cleanup(func() { _ = model.Close() })

	svc := New(context.Background(), config.ServiceConfig{Enabled: true, MaxResults: 1}, client, model, nil)
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}

	frame := protocol.AudioFrame{
		SessionID:  "sess-slow",
		SampleRate: 8000,
		Channels:   1,
		PCM:        samplesToBytes([]int16{100, 100, 100, 100}),
		Final:      true,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}

	frameDone := make(chan struct{})
	go func() {
		defer close(frameDone)
		svc.handleFrame(&nats.Msg{Data: data})
	}()
	time.Sleep(100 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		svc.Close()
	}()
	select {
	case <-closed:
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return while a final frame was in flight")
	}
	select {
	case <-frameDone:
	case <-time.After(10 * time.Second):
		t.Fatal("frame handler never finished")
	}
}

func TestDropsMismatchedSampleRate(t *testing.T) {
	log := discardLogger()
	es, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, log)
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(es.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{
		Servers:        []string{es.ClientURL()},
		ConnectTimeout: 2000,
	}, log)
	if err != nil {
		t.Fatalf("connect bus: %v", err)
	}
	t.Cleanup(client.Close)

	model := newTestModel(t)
	svc := New(context.Background(), config.ServiceConfig{Enabled: true, MaxResults: 1}, client, model, nil)
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Close)

	frame := protocol.AudioFrame{SessionID: "sess-2", SampleRate: 44100, PCM: []byte{0, 0}}
	data, _ := json.Marshal(frame)
	if err := client.Conn().Publish(protocol.SubjectAudioFramePrefix+".sess-2", data); err != nil {
		t.Fatalf("publish frame: %v", err)
	}
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		n := len(svc.sessions)
		svc.mu.Unlock()
		if n != 0 {
			t.Fatalf("expected no sessions, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
