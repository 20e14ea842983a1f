package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// EngineConfig describes the decoding engine: the model file and the
// beam-search hyperparameters shared by every session.
type EngineConfig struct {
	ModelPath string   `yaml:"model_path"`
	BeamWidth int      `yaml:"beam_width"`
	OOVPolicy string   `yaml:"oov_policy"`
	LM        LMConfig `yaml:"lm"`
}

// LMConfig describes the optional language-model rescoring inputs.
type LMConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Path     string  `yaml:"path"`
	TriePath string  `yaml:"trie_path"`
	Alpha    float64 `yaml:"alpha"`
	Beta     float64 `yaml:"beta"`
}

// ServiceConfig tunes the bus-facing transcription service.
type ServiceConfig struct {
	Enabled        bool `yaml:"enabled"`
	PartialEveryMS int  `yaml:"partial_every_ms"`
	PublishInterim bool `yaml:"publish_interim"`
	MaxResults     int  `yaml:"max_results"`
}

// StoreConfig tunes transcript persistence.
type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Engine      EngineConfig    `yaml:"engine"`
	Service     ServiceConfig   `yaml:"service"`
	Store       StoreConfig     `yaml:"store"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-speech",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Engine: EngineConfig{
			ModelPath: "./models/english.yaml",
			BeamWidth: 128,
			OOVPolicy: "penalize",
			LM: LMConfig{
				Enabled: false,
				Alpha:   0.75,
				Beta:    1.85,
			},
		},
		Service: ServiceConfig{
			Enabled:        true,
			PartialEveryMS: 800,
			PublishInterim: true,
			MaxResults:     1,
		},
		Store: StoreConfig{
			Path:          "./data/loqa-transcripts.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_SPEECH_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_SPEECH_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_SPEECH_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_SPEECH_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_SPEECH_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_SPEECH_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_SPEECH_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LOQA_SPEECH_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "LOQA_SPEECH_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_SPEECH_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_SPEECH_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_SPEECH_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_SPEECH_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_SPEECH_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_SPEECH_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_SPEECH_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Engine.ModelPath, "LOQA_SPEECH_ENGINE_MODEL_PATH")
	overrideInt(&cfg.Engine.BeamWidth, "LOQA_SPEECH_ENGINE_BEAM_WIDTH")
	overrideString(&cfg.Engine.OOVPolicy, "LOQA_SPEECH_ENGINE_OOV_POLICY")
	overrideBool(&cfg.Engine.LM.Enabled, "LOQA_SPEECH_ENGINE_LM_ENABLED")
	overrideString(&cfg.Engine.LM.Path, "LOQA_SPEECH_ENGINE_LM_PATH")
	overrideString(&cfg.Engine.LM.TriePath, "LOQA_SPEECH_ENGINE_LM_TRIE_PATH")
	overrideFloat(&cfg.Engine.LM.Alpha, "LOQA_SPEECH_ENGINE_LM_ALPHA")
	overrideFloat(&cfg.Engine.LM.Beta, "LOQA_SPEECH_ENGINE_LM_BETA")
	overrideBool(&cfg.Service.Enabled, "LOQA_SPEECH_SERVICE_ENABLED")
	overrideInt(&cfg.Service.PartialEveryMS, "LOQA_SPEECH_SERVICE_PARTIAL_EVERY_MS")
	overrideBool(&cfg.Service.PublishInterim, "LOQA_SPEECH_SERVICE_PUBLISH_INTERIM")
	overrideInt(&cfg.Service.MaxResults, "LOQA_SPEECH_SERVICE_MAX_RESULTS")
	overrideString(&cfg.Store.Path, "LOQA_SPEECH_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "LOQA_SPEECH_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "LOQA_SPEECH_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "LOQA_SPEECH_STORE_MAX_SESSIONS")
	overrideBool(&cfg.Store.VacuumOnStart, "LOQA_SPEECH_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Engine.BeamWidth <= 0 {
		return errors.New("engine.beam_width must be positive")
	}
	switch cfg.Engine.OOVPolicy {
	case "penalize", "reject":
		// ok
	default:
		return errors.New("engine.oov_policy must be one of penalize|reject")
	}
	if cfg.Service.Enabled {
		if cfg.Engine.ModelPath == "" {
			return errors.New("engine.model_path must be set when the service is enabled")
		}
		if cfg.Service.MaxResults <= 0 {
			return errors.New("service.max_results must be >= 1")
		}
	}
	if cfg.Engine.LM.Enabled {
		if cfg.Engine.LM.Path == "" || cfg.Engine.LM.TriePath == "" {
			return errors.New("engine.lm.path and engine.lm.trie_path must be set when the language model is enabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	return nil
}
