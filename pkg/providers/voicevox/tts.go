// Package voicevox synthesizes Japanese speech through a VOICEVOX
// engine's HTTP API.
package voicevox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kotoba-ai/kotoba/pkg/adapters/tts"
	"github.com/kotoba-ai/kotoba/pkg/resilience"
)

type Config struct {
	BaseURL string
	Speaker int
	Timeout time.Duration
}

type Synthesizer struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Synthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:50021"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Synthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *Synthesizer) Name() string { return "voicevox" }

// Synthesize runs the two-step VOICEVOX flow: build an audio query for
// the text, then render it to WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	query, err := s.audioQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, query)
}

func (s *Synthesizer) audioQuery(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(s.cfg.Speaker))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/audio_query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return s.readBody(resp, "audio_query")
}

func (s *Synthesizer) render(ctx context.Context, query []byte) ([]byte, error) {
	q := url.Values{}
	q.Set("speaker", strconv.Itoa(s.cfg.Speaker))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/synthesis?"+q.Encode(), bytes.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return s.readBody(resp, "synthesis")
}

func (s *Synthesizer) readBody(resp *http.Response, op string) ([]byte, error) {
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return nil, resilience.RateLimitError{Provider: "voicevox", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voicevox %s: status %d: %s", op, resp.StatusCode, string(body))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("voicevox: empty response body")
	}
	return raw, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
