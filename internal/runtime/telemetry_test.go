package runtime

import (
	"context"
	"testing"

	"github.com/loqalabs/loqa-speech/internal/config"
)

func TestTelemetryResourceCarriesEngineAttributes(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.ModelPath = "./models/english.yaml"
	cfg.Engine.BeamWidth = 64

	res, err := telemetryResource(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build resource: %v", err)
	}

	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got["service.name"] != cfg.RuntimeName {
		t.Fatalf("service.name = %q, want %q", got["service.name"], cfg.RuntimeName)
	}
	if got["speech.model_path"] != "./models/english.yaml" {
		t.Fatalf("speech.model_path = %q", got["speech.model_path"])
	}
	if got["speech.beam_width"] != "64" {
		t.Fatalf("speech.beam_width = %q, want 64", got["speech.beam_width"])
	}
}
