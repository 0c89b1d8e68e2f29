package kotoba

import (
	"fmt"
	"strings"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/adapters/tts"
	"github.com/kotoba-ai/kotoba/pkg/llm"
)

// ASRBuilder returns an engine factory plus the initial model name.
// The engine wired into a session is built from the factory at session
// start, so a model hot-swap applies to sessions created after it.
type ASRBuilder func(cfg Config) (asr.Factory, string, error)
type TTSBuilder func(cfg Config) (tts.Synthesizer, error)
type LLMBuilder func(cfg Config) (llm.Completer, error)

type ProviderRegistry struct {
	asr map[string]ASRBuilder
	tts map[string]TTSBuilder
	llm map[string]LLMBuilder
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		asr: make(map[string]ASRBuilder),
		tts: make(map[string]TTSBuilder),
		llm: make(map[string]LLMBuilder),
	}
}

func (r *ProviderRegistry) RegisterASR(name string, builder ASRBuilder) {
	r.asr[strings.ToLower(strings.TrimSpace(name))] = builder
}

func (r *ProviderRegistry) RegisterTTS(name string, builder TTSBuilder) {
	r.tts[strings.ToLower(strings.TrimSpace(name))] = builder
}

func (r *ProviderRegistry) RegisterLLM(name string, builder LLMBuilder) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = builder
}

func (r *ProviderRegistry) BuildASR(provider string, cfg Config) (asr.Factory, string, error) {
	fn := r.asr[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, "", fmt.Errorf("asr provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildTTS(provider string, cfg Config) (tts.Synthesizer, error) {
	fn := r.tts[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.Completer, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}
