// Package kotoba assembles the voice-chat gateway: configuration,
// provider wiring, and engine lifecycle.
package kotoba

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/kotoba-ai/kotoba/pkg/segmenter"
)

type Config struct {
	Vendors     VendorsConfig   `mapstructure:"vendors"`
	Server      ServerConfig    `mapstructure:"server"`
	Segmenter   SegmenterConfig `mapstructure:"segmenter"`
	History     HistoryConfig   `mapstructure:"history"`
	Privacy     PrivacyConfig   `mapstructure:"privacy"`
	ModesFile   string          `mapstructure:"modes_file"`
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
}

// VendorConfig selects a provider implementation by name and carries its
// free-form settings map. Settings are validated by the provider builder.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	ASR VendorConfig `mapstructure:"asr"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	ReadLimit      int64    `mapstructure:"read_limit"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SegmenterConfig struct {
	Policy             string  `mapstructure:"policy"`
	SampleRate         int     `mapstructure:"sample_rate"`
	SilenceThresholdDB float64 `mapstructure:"silence_threshold_db"`
	MaxSegmentSec      float64 `mapstructure:"max_segment_sec"`
	SilenceGateSec     float64 `mapstructure:"silence_gate_sec"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.read_limit", 1<<20)
	v.SetDefault("server.allow_any_origin", true)
	v.SetDefault("segmenter.policy", "duration")
	v.SetDefault("segmenter.sample_rate", 16000)
	v.SetDefault("segmenter.silence_threshold_db", -60.0)
	v.SetDefault("segmenter.max_segment_sec", 7.0)
	v.SetDefault("segmenter.silence_gate_sec", 1.0)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "data/kotoba.db")
	v.SetDefault("modes_file", "")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.ASR.Provider) == "" {
		return fmt.Errorf("vendors.asr.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	switch segmenter.Policy(strings.ToLower(strings.TrimSpace(c.Segmenter.Policy))) {
	case segmenter.PolicyDuration, segmenter.PolicySilence:
	default:
		return fmt.Errorf("segmenter.policy must be one of [duration, silence], got %s", c.Segmenter.Policy)
	}
	return nil
}

func (c SegmenterConfig) Build() segmenter.Config {
	return segmenter.Config{
		SampleRate:         c.SampleRate,
		SilenceThresholdDB: c.SilenceThresholdDB,
		MaxSegmentSec:      c.MaxSegmentSec,
		SilenceGateSec:     c.SilenceGateSec,
		Policy:             segmenter.Policy(strings.ToLower(strings.TrimSpace(c.Policy))),
	}
}

// expandEnvStrings substitutes ${VAR} references so secrets like API keys
// can live in the environment instead of the config file.
func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.ASR.Settings = expandSettings(cfg.Vendors.ASR.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
