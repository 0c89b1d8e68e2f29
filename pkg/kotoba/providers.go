package kotoba

import (
	"context"
	"fmt"
	"time"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/adapters/tts"
	"github.com/kotoba-ai/kotoba/pkg/configutil"
	"github.com/kotoba-ai/kotoba/pkg/llm"
	"github.com/kotoba-ai/kotoba/pkg/providers/deepgram"
	"github.com/kotoba-ai/kotoba/pkg/providers/mock"
	"github.com/kotoba-ai/kotoba/pkg/providers/openai"
	"github.com/kotoba-ai/kotoba/pkg/providers/voicevox"
)

type deepgramSettings struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Language   string `mapstructure:"language"`
	SampleRate int    `mapstructure:"sample_rate"`
}

type mockASRSettings struct {
	Model       string   `mapstructure:"model"`
	Transcripts []string `mapstructure:"transcripts"`
}

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type mockLLMSettings struct {
	Model string `mapstructure:"model"`
	Reply string `mapstructure:"reply"`
}

type voicevoxSettings struct {
	BaseURL   string `mapstructure:"base_url"`
	Speaker   int    `mapstructure:"speaker"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// DefaultProviders registers the built-in provider set. Callers can add
// their own builders on top before constructing the engine.
func DefaultProviders() *ProviderRegistry {
	reg := NewProviderRegistry()

	reg.RegisterASR("deepgram", func(cfg Config) (asr.Factory, string, error) {
		if err := validateSettings("vendors.asr.settings", cfg.Vendors.ASR.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: []string{"language", "sample_rate"},
		}); err != nil {
			return nil, "", err
		}
		var settings deepgramSettings
		if err := configutil.DecodeSettings(cfg.Vendors.ASR.Settings, &settings); err != nil {
			return nil, "", err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.asr.settings.api_key"); err != nil {
			return nil, "", err
		}
		if err := configutil.RequireString(settings.Model, "vendors.asr.settings.model"); err != nil {
			return nil, "", err
		}
		if settings.SampleRate == 0 {
			settings.SampleRate = cfg.Segmenter.SampleRate
		}
		if settings.Language == "" {
			settings.Language = "ja"
		}
		factory := deepgram.NewFactory(deepgram.Config{
			APIKey:     settings.APIKey,
			Language:   settings.Language,
			SampleRate: settings.SampleRate,
		})
		return factory, settings.Model, nil
	})

	reg.RegisterASR("mock", func(cfg Config) (asr.Factory, string, error) {
		if err := validateSettings("vendors.asr.settings", cfg.Vendors.ASR.Settings, configutil.Schema{
			Optional: []string{"model", "transcripts"},
		}); err != nil {
			return nil, "", err
		}
		var settings mockASRSettings
		if err := configutil.DecodeSettings(cfg.Vendors.ASR.Settings, &settings); err != nil {
			return nil, "", err
		}
		if settings.Model == "" {
			settings.Model = "mock"
		}
		factory := func(_ context.Context, model string) (asr.Engine, error) {
			return mock.NewASREngine(model, settings.Transcripts...), nil
		}
		return factory, settings.Model, nil
	})

	reg.RegisterTTS("voicevox", func(cfg Config) (tts.Synthesizer, error) {
		if err := validateSettings("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"base_url", "speaker", "timeout_ms"},
		}); err != nil {
			return nil, err
		}
		var settings voicevoxSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, err
		}
		return voicevox.New(voicevox.Config{
			BaseURL: settings.BaseURL,
			Speaker: settings.Speaker,
			Timeout: time.Duration(settings.TimeoutMS) * time.Millisecond,
		}), nil
	})

	reg.RegisterTTS("mock", func(cfg Config) (tts.Synthesizer, error) {
		if err := validateSettings("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{}); err != nil {
			return nil, err
		}
		return mock.NewSynthesizer(), nil
	})

	reg.RegisterLLM("openai", func(cfg Config) (llm.Completer, error) {
		if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: []string{"base_url"},
		}); err != nil {
			return nil, err
		}
		var settings openAISettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.Model, "vendors.llm.settings.model"); err != nil {
			return nil, err
		}
		return openai.NewCompleter(settings.APIKey, settings.Model, settings.BaseURL), nil
	})

	reg.RegisterLLM("mock", func(cfg Config) (llm.Completer, error) {
		if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"model", "reply"},
		}); err != nil {
			return nil, err
		}
		var settings mockLLMSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		if settings.Model == "" {
			settings.Model = "mock"
		}
		return mock.NewCompleter(settings.Model, settings.Reply), nil
	})

	return reg
}

func validateSettings(path string, input map[string]any, schema configutil.Schema) error {
	if err := configutil.ValidateSettings(input, schema); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
