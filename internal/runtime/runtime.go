// Package runtime assembles the speech daemon: telemetry, the message
// bus, the transcript store, the decoding engine, and the bus-facing
// transcription service.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-speech/internal/bus"
	"github.com/loqalabs/loqa-speech/internal/config"
	"github.com/loqalabs/loqa-speech/internal/natsserver"
	"github.com/loqalabs/loqa-speech/internal/service"
	"github.com/loqalabs/loqa-speech/internal/transcriptstore"
	"github.com/loqalabs/loqa-speech/speech"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	metricsServ *http.Server
	tracerClose func(context.Context) error

	embedded *natsserver.EmbeddedServer
	bus      *bus.Client
	store    *transcriptstore.Store
	model    *speech.Model
	service  *service.Service

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the daemon up and blocks until ctx is cancelled, then
// tears everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.startComponents(ctx); err != nil {
		r.teardown()
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsServ = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServ.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("model", r.cfg.Engine.ModelPath))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServ != nil {
		if err := r.metricsServ.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.teardown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) startComponents(ctx context.Context) error {
	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("start embedded nats: %w", err)
	}
	r.embedded = embedded

	busCfg := r.cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	r.bus = client

	store, err := transcriptstore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("open transcript store: %w", err)
	}
	r.store = store

	model, err := r.openModel()
	if err != nil {
		return err
	}
	r.model = model

	svc := service.New(ctx, r.cfg.Service, client, model, store)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("start transcription service: %w", err)
	}
	r.service = svc
	return nil
}

func (r *Runtime) openModel() (*speech.Model, error) {
	engine := r.cfg.Engine
	model, err := speech.New(engine.ModelPath, engine.BeamWidth)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if engine.OOVPolicy == "reject" {
		model.SetOOVPolicy(speech.OOVReject)
	}
	if engine.LM.Enabled {
		err := model.EnableDecoderWithLM(engine.LM.Path, engine.LM.TriePath, engine.LM.Alpha, engine.LM.Beta)
		if err != nil {
			model.Close()
			return nil, fmt.Errorf("enable language model: %w", err)
		}
		r.logger.Info("language model enabled",
			slog.String("path", engine.LM.Path),
			slog.Float64("alpha", engine.LM.Alpha),
			slog.Float64("beta", engine.LM.Beta))
	}
	r.logger.Info("model loaded",
		slog.String("path", engine.ModelPath),
		slog.Int("sample_rate", model.SampleRate()),
		slog.Int("beam_width", model.BeamWidth()))
	return model, nil
}

func (r *Runtime) teardown() {
	if r.service != nil {
		r.service.Close()
	}
	if r.model != nil {
		_ = r.model.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
	if r.bus != nil {
		r.bus.Close()
	}
	if r.embedded != nil {
		r.embedded.Shutdown()
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if r.bus.Healthy() && (r.service == nil || r.service.Healthy()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("unhealthy"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
