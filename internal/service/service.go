// Package service exposes the speech engine on the message bus: it
// consumes audio frames per session, publishes interim and final
// transcripts, and archives finals in the transcript store.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-speech/internal/bus"
	"github.com/loqalabs/loqa-speech/internal/config"
	"github.com/loqalabs/loqa-speech/internal/protocol"
	"github.com/loqalabs/loqa-speech/internal/transcriptstore"
	"github.com/loqalabs/loqa-speech/speech"
)

type Service struct {
	cfg      config.ServiceConfig
	bus      *bus.Client
	model    *speech.Model
	store    *transcriptstore.Store
	sessions map[string]*session
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	sub      *nats.Subscription
	ready    bool

	meter       metric.Meter
	frames      metric.Int64Counter
	transcripts metric.Int64Counter
}

// session pairs one bus session with one live decode stream. The per
// session mutex serializes feeding and decoding; frames for different
// sessions proceed in parallel.
type session struct {
	mu          sync.Mutex
	stream      *speech.Stream
	lastPartial time.Time
}

func New(parent context.Context, cfg config.ServiceConfig, busClient *bus.Client, model *speech.Model, store *transcriptstore.Store) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		cfg:      cfg,
		bus:      busClient,
		model:    model,
		store:    store,
		sessions: make(map[string]*session),
		ctx:      ctx,
		cancel:   cancel,
		meter:    otel.Meter("github.com/loqalabs/loqa-speech/service"),
	}
	if err := s.initMetrics(); err != nil {
		busClient.Logger().Warn("failed to initialize metrics", slogError(err))
	}
	return s
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	subject := protocol.SubjectAudioFramePrefix + ".>"
	sub, err := s.bus.Conn().Subscribe(subject, s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribe audio frames: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	// Snapshot under s.mu, discard streams without it. s.mu and sess.mu
	// are never held together anywhere in this package.
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.mu.Lock()
		sess.stream.Discard()
		sess.mu.Unlock()
	}
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.bus.Logger().Warn("failed to decode audio frame", slogError(err))
		return
	}
	if frame.SessionID == "" {
		return
	}
	if frame.Channels > 1 {
		s.bus.Logger().Warn("dropping multi-channel frame",
			slog.String("session_id", frame.SessionID),
			slog.Int("channels", frame.Channels))
		return
	}
	if frame.SampleRate != 0 && frame.SampleRate != s.model.SampleRate() {
		s.bus.Logger().Warn("dropping frame with mismatched sample rate",
			slog.String("session_id", frame.SessionID),
			slog.Int("got", frame.SampleRate),
			slog.Int("want", s.model.SampleRate()))
		return
	}

	sess, err := s.sessionFor(frame.SessionID)
	if err != nil {
		s.bus.Logger().Warn("failed to open decode session", slogError(err))
		return
	}
	if s.frames != nil {
		s.frames.Add(s.ctx, 1)
	}

	sess.mu.Lock()
	sess.stream.FeedAudio(bytesToSamples(frame.PCM))
	if err := sess.stream.Err(); err != nil {
		sess.mu.Unlock()
		s.bus.Logger().Warn("decode session failed",
			slog.String("session_id", frame.SessionID), slogError(err))
		s.dropSession(frame.SessionID)
		return
	}

	if frame.Final {
		result, err := sess.stream.FinishWithMetadata(s.cfg.MaxResults)
		sess.mu.Unlock()
		s.dropSession(frame.SessionID)
		if err != nil {
			s.bus.Logger().Warn("final decode failed",
				slog.String("session_id", frame.SessionID), slogError(err))
			return
		}
		s.publishFinal(frame.SessionID, result)
		return
	}

	if s.cfg.PublishInterim && s.partialDue(sess) {
		text, err := sess.stream.IntermediateDecode()
		sess.mu.Unlock()
		if err != nil {
			s.bus.Logger().Warn("intermediate decode failed", slogError(err))
			return
		}
		s.publish(protocol.Transcript{
			SessionID: frame.SessionID,
			Text:      text,
			Partial:   true,
			Timestamp: time.Now().UTC(),
		})
		return
	}
	sess.mu.Unlock()
}

// sessionFor returns the live session for id, creating one on first use.
func (s *Service) sessionFor(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	stream, err := s.model.CreateStream()
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	if s.store != nil {
		if err := s.store.AppendSession(s.ctx, id, s.model.SampleRate()); err != nil {
			s.bus.Logger().Warn("failed to record session", slogError(err))
		}
	}
	sess := &session{stream: stream}
	s.sessions[id] = sess
	return sess, nil
}

func (s *Service) dropSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Service) partialDue(sess *session) bool {
	interval := time.Duration(s.cfg.PartialEveryMS) * time.Millisecond
	if interval <= 0 {
		return false
	}
	if sess.lastPartial.IsZero() || time.Since(sess.lastPartial) >= interval {
		sess.lastPartial = time.Now()
		return true
	}
	return false
}

func (s *Service) publishFinal(id string, result *speech.Result) {
	if len(result.Transcripts) == 0 {
		return
	}
	best := result.Transcripts[0]
	items := make([]protocol.TranscriptItem, len(best.Items))
	for i, item := range best.Items {
		items[i] = protocol.TranscriptItem{
			Character: item.Character,
			Timestep:  item.Timestep,
			StartTime: item.StartTime,
		}
	}
	s.publish(protocol.Transcript{
		SessionID:  id,
		Text:       best.Transcript(),
		Partial:    false,
		Timestamp:  time.Now().UTC(),
		Confidence: best.Confidence,
		Items:      items,
	})
	if s.store != nil {
		err := s.store.AppendTranscript(s.ctx, transcriptstore.Record{
			SessionID:  id,
			Text:       best.Transcript(),
			Confidence: best.Confidence,
			Items:      items,
		})
		if err != nil {
			s.bus.Logger().Warn("failed to archive transcript", slogError(err))
		}
	}
}

func (s *Service) publish(msg protocol.Transcript) {
	subject := protocol.SubjectTranscriptFinal
	if msg.Partial {
		subject = protocol.SubjectTranscriptPartial
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.bus.Logger().Warn("failed to marshal transcript", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.bus.Logger().Warn("failed to publish transcript", slogError(err))
		return
	}
	if s.transcripts != nil {
		s.transcripts.Add(s.ctx, 1, metric.WithAttributes(attribute.Bool("partial", msg.Partial)))
	}
}

func (s *Service) initMetrics() error {
	frames, err := s.meter.Int64Counter("loqa.speech.frames",
		metric.WithDescription("Audio frames consumed from the bus"))
	if err != nil {
		return err
	}
	transcripts, err := s.meter.Int64Counter("loqa.speech.transcripts",
		metric.WithDescription("Transcripts published to the bus"))
	if err != nil {
		return err
	}
	gauge, err := s.meter.Int64ObservableGauge("loqa.speech.sessions.active",
		metric.WithDescription("Decode sessions currently open"))
	if err != nil {
		return err
	}
	s.frames = frames
	s.transcripts = transcripts
	_, err = s.meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		s.mu.Lock()
		n := int64(len(s.sessions))
		s.mu.Unlock()
		obs.ObserveInt64(gauge, n)
		return nil
	}, gauge)
	return err
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
