package kotoba

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/adapters/tts"
	"github.com/kotoba-ai/kotoba/pkg/conversation"
	"github.com/kotoba-ai/kotoba/pkg/events"
	"github.com/kotoba-ai/kotoba/pkg/history"
	"github.com/kotoba-ai/kotoba/pkg/llm"
	"github.com/kotoba-ai/kotoba/pkg/logging"
	"github.com/kotoba-ai/kotoba/pkg/metrics"
	"github.com/kotoba-ai/kotoba/pkg/observers"
	"github.com/kotoba-ai/kotoba/pkg/pipeline"
	"github.com/kotoba-ai/kotoba/pkg/redact"
	"github.com/kotoba-ai/kotoba/pkg/runner"
	"github.com/kotoba-ai/kotoba/pkg/segmenter"
	"github.com/kotoba-ai/kotoba/pkg/transports/ws"
)

// Engine owns the process-wide pieces: the mode table, the shared
// recognition engine, the session registry, and the transport.
type Engine struct {
	cfg       Config
	providers *ProviderRegistry
	registry  *pipeline.SessionRegistry
	transport *ws.Transport
	modes     *conversation.ModeRegistry
	sharedASR *asr.Shared
	completer llm.Completer
	synth     tts.Synthesizer
	histLog   history.Log
	runner    *runner.LifecycleRunner
	asyncObs  *metrics.AsyncObserver
	ctx       context.Context
	cancel    context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("kotoba_init",
		"environment", cfg.Environment,
		"asr_provider", cfg.Vendors.ASR.Provider,
		"tts_provider", cfg.Vendors.TTS.Provider,
		"llm_provider", cfg.Vendors.LLM.Provider,
	)

	latencyObs := observers.NewLatencyObserver(slog.Default())
	logObs := observers.NewLoggerObserver(slog.Default())
	multiObs := observers.NewMultiObserver(latencyObs, logObs)
	asyncObs := metrics.NewAsyncObserver(multiObs, 2048)

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviders()
	}

	ctx, cancel := context.WithCancel(context.Background())

	asrFactory, asrModel, err := providers.BuildASR(cfg.Vendors.ASR.Provider, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	controlEngine, err := asrFactory(ctx, asrModel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build asr engine: %w", err)
	}
	sharedASR := asr.NewShared(controlEngine, asrFactory)

	completer, err := providers.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	synth, err := providers.BuildTTS(cfg.Vendors.TTS.Provider, cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	var histLog history.Log = history.NoopLog{}
	if cfg.History.Enabled {
		sqliteLog, err := history.NewSQLiteLog(cfg.History.DBPath)
		if err != nil {
			cancel()
			return nil, err
		}
		histLog = sqliteLog
	}

	modeTable := conversation.DefaultModes()
	if cfg.ModesFile != "" {
		modeTable, err = conversation.LoadModeFile(cfg.ModesFile)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("load mode table: %w", err)
		}
	}
	modeRegistry := conversation.NewModeRegistry(modeTable)

	responder := pipeline.NewResponder(completer, synth, histLog, slog.Default(), asyncObs)
	segCfg := cfg.Segmenter.Build()

	registry := pipeline.NewSessionRegistry(func(ctx context.Context, sessionID string, emit events.Emitter) (*pipeline.Orchestrator, error) {
		engine, err := asrFactory(ctx, sharedASR.Name())
		if err != nil {
			return nil, err
		}
		return pipeline.NewOrchestrator(ctx, pipeline.OrchestratorDeps{
			SessionID:   sessionID,
			Segmenter:   segmenter.New(segCfg),
			Transcriber: asr.NewShared(engine, asrFactory),
			Modes:       modeRegistry,
			Responder:   responder,
			Emitter:     emit,
			Logger:      logging.NewComponentLogger(slog.Default(), "session"),
			Observer:    asyncObs,
		}), nil
	})

	admin := &ws.Admin{
		Completer: completer,
		ASR:       sharedASR,
		Synth:     synth,
		Modes:     modeRegistry,
		ModeFile:  cfg.ModesFile,
		Registry:  registry,
		Logger:    logging.NewComponentLogger(slog.Default(), "admin"),
	}
	transport := ws.New(ws.Config{
		ServerAddr:     cfg.Server.Addr,
		WebsocketPath:  cfg.Server.WebsocketPath,
		ReadLimit:      cfg.Server.ReadLimit,
		AllowAnyOrigin: cfg.Server.AllowAnyOrigin,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, registry, admin, logging.NewComponentLogger(slog.Default(), "transport"))

	hooks := runner.Hooks{
		OnStart: func() {
			slog.Info("engine_ready",
				"addr", cfg.Server.Addr,
				"ws_path", cfg.Server.WebsocketPath,
				"modes", len(modeRegistry.Current().Names()))
		},
		OnStop: func() {
			asyncObs.Close()
			_ = sharedASR.Close()
			_ = histLog.Close()
			slog.Info("shutdown",
				"goroutines", runtime.NumGoroutine(),
				"active_sessions", registry.Count())
		},
	}

	drainer := runner.DrainerFunc(func() error {
		_ = transport.Stop()
		registry.SetDraining(true)
		registry.CloseAll()
		waitCtx, cancelWait := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancelWait()
		_ = registry.WaitForEmpty(waitCtx, 200*time.Millisecond)
		return nil
	})

	lr := runner.NewLifecycleRunner(drainer, hooks, 30*time.Second)

	return &Engine{
		cfg:       cfg,
		providers: providers,
		registry:  registry,
		transport: transport,
		modes:     modeRegistry,
		sharedASR: sharedASR,
		completer: completer,
		synth:     synth,
		histLog:   histLog,
		runner:    lr,
		asyncObs:  asyncObs,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Registry() *pipeline.SessionRegistry { return e.registry }

func (e *Engine) Modes() *conversation.ModeRegistry { return e.modes }
