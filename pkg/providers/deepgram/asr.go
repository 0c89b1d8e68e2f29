// Package deepgram adapts the Deepgram live websocket API to the
// incremental recognition contract.
package deepgram

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/kotoba-ai/kotoba/pkg/adapters/asr"
	"github.com/kotoba-ai/kotoba/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
}

// Engine streams audio to Deepgram over a long-lived websocket and
// accumulates interim and final transcripts per segment.
type Engine struct {
	cfg        Config
	dgClient   *client.WSCallback
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	logger     *slog.Logger

	mu       sync.Mutex
	partial  string
	finals   []string
	totalSec float64
	segStart float64
}

// New connects and starts streaming. The returned engine is ready for
// InsertAudio.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Language == "" {
		cfg.Language = "ja"
	}
	e := &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_asr"),
	}
	if err := e.start(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// NewFactory builds an asr.Factory that keeps key, language and sample
// rate fixed and varies only the model.
func NewFactory(cfg Config) asr.Factory {
	return func(ctx context.Context, model string) (asr.Engine, error) {
		next := cfg
		next.Model = model
		return New(ctx, next)
	}
}

func (e *Engine) start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.pipeReader, e.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          e.cfg.Model,
		Language:       e.cfg.Language,
		Encoding:       "linear16",
		SampleRate:     e.cfg.SampleRate,
		InterimResults: true,
		SmartFormat:    true,
	}

	e.logger.Info("initializing deepgram connection",
		slog.String("model", e.cfg.Model),
		slog.String("language", e.cfg.Language),
		slog.Int("sample_rate", e.cfg.SampleRate))

	dgClient, err := client.NewWSUsingCallback(ctx, e.cfg.APIKey, clientOptions, transcriptOptions, &callback{parent: e})
	if err != nil {
		e.logger.Error("deepgram_client_create_error",
			slog.String("error", err.Error()))
		return err
	}
	e.dgClient = dgClient

	if connected := e.dgClient.Connect(); !connected {
		e.logger.Error("deepgram_connect_failed")
		return fmt.Errorf("deepgram connection failed")
	}

	go func() {
		if err := e.dgClient.Stream(e.pipeReader); err != nil && ctx.Err() == nil {
			e.logger.Error("deepgram_stream_error",
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (e *Engine) Name() string { return e.cfg.Model }

func (e *Engine) InsertAudio(_ context.Context, samples []float32) error {
	if e.pipeWriter == nil {
		return fmt.Errorf("not started")
	}
	raw := encodePCM16(samples)
	if _, err := e.pipeWriter.Write(raw); err != nil {
		e.logger.Error("failed to send audio to deepgram",
			slog.String("error", err.Error()))
		return err
	}
	e.mu.Lock()
	e.totalSec += float64(len(samples)) / float64(e.cfg.SampleRate)
	e.mu.Unlock()
	return nil
}

func (e *Engine) Partial() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	text := e.joinedLocked()
	return text, text != ""
}

// Finish returns whatever Deepgram has recognized so far for the
// current segment and resets segment-local buffering.
func (e *Engine) Finish(context.Context) (asr.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := asr.Result{
		Start: e.segStart,
		End:   e.totalSec,
		Text:  e.joinedLocked(),
	}
	e.finals = nil
	e.partial = ""
	e.segStart = e.totalSec
	return res, nil
}

func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finals = nil
	e.partial = ""
	e.segStart = e.totalSec
	return nil
}

func (e *Engine) Close() error {
	e.logger.Info("closing deepgram connection",
		slog.String("model", e.cfg.Model))
	if e.cancel != nil {
		e.cancel()
	}
	if e.pipeWriter != nil {
		_ = e.pipeWriter.Close()
	}
	if e.dgClient != nil {
		e.dgClient.Stop()
	}
	return nil
}

func (e *Engine) joinedLocked() string {
	parts := make([]string, 0, len(e.finals)+1)
	parts = append(parts, e.finals...)
	if e.partial != "" {
		parts = append(parts, e.partial)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func encodePCM16(samples []float32) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(v)))
	}
	return raw
}

type callback struct {
	parent *Engine
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal

	c.parent.mu.Lock()
	if isFinal {
		c.parent.finals = append(c.parent.finals, transcript)
		c.parent.partial = ""
	} else {
		c.parent.partial = transcript
	}
	c.parent.mu.Unlock()

	c.parent.logger.Debug("transcript_received",
		slog.String("transcript", transcript),
		slog.Bool("is_final", isFinal))
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("deepgram_metadata_received",
		slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event",
		slog.String("data", string(byData)))
	return nil
}

var _ asr.Engine = (*Engine)(nil)
