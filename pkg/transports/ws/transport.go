// Package ws serves the duplex voice-chat channel over websockets.
// Binary frames carry raw PCM audio; text frames carry JSON control
// messages with a type discriminator.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kotoba-ai/kotoba/pkg/errorsx"
	"github.com/kotoba-ai/kotoba/pkg/events"
	"github.com/kotoba-ai/kotoba/pkg/pipeline"
	"github.com/kotoba-ai/kotoba/pkg/transports"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	ReadLimit      int64    `mapstructure:"read_limit"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8000"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// controlMessage is the inbound structured message shape.
type controlMessage struct {
	Type    string `json:"type"`
	Mode    string `json:"mode,omitempty"`
	Text    string `json:"text,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

type Transport struct {
	cfg      Config
	registry *pipeline.SessionRegistry
	admin    *Admin
	server   *http.Server
	upgrader websocket.Upgrader
	draining atomic.Bool
	logger   *slog.Logger
}

func New(cfg Config, registry *pipeline.SessionRegistry, admin *Admin, logger *slog.Logger) *Transport {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		cfg:      cfg,
		registry: registry,
		admin:    admin,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "websocket" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if t.admin != nil {
		t.admin.Register(mux)
	}
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("websocket_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	return nil
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() || t.registry.Draining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(t.cfg.ReadLimit)

	sessionID := uuid.NewString()
	emitter := newConnEmitter(conn)

	sess, _, err := t.registry.GetOrCreate(sessionID, emitter)
	if err != nil {
		t.logger.Error("session create failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}
	defer t.registry.Remove(sessionID)

	t.logger.Info("session connected",
		slog.String("session_id", sessionID),
		slog.String("remote_addr", r.RemoteAddr))

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		switch msgType {
		case websocket.BinaryMessage:
			if err := sess.Orch.EnqueueAudio(msg); err != nil {
				t.logger.Warn("audio enqueue failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()))
			}
		case websocket.TextMessage:
			t.handleControl(sess, emitter, msg)
		}
	}

	t.logger.Info("session disconnected",
		slog.String("session_id", sessionID))
}

func (t *Transport) handleControl(sess *pipeline.Session, emitter events.Emitter, raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		_ = emitter.Emit(events.Error("invalid control message"))
		return
	}
	switch msg.Type {
	case "set_mode":
		_ = sess.Orch.EnqueueSetMode(msg.Mode)
	case "chat":
		_ = sess.Orch.EnqueueChat(msg.Text)
	case "set_recording":
		enabled := msg.Enabled == nil || *msg.Enabled
		_ = sess.Orch.EnqueueSetRecording(enabled)
	default:
		_ = emitter.Emit(events.Error("unknown message type: " + msg.Type))
	}
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range t.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// connEmitter serializes outbound event writes on one connection.
type connEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConnEmitter(conn *websocket.Conn) *connEmitter {
	return &connEmitter{conn: conn}
}

func (e *connEmitter) Emit(ev events.Event) error {
	raw, err := events.Encode(ev)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return errorsx.Wrap(e.conn.WriteMessage(websocket.TextMessage, raw), errorsx.ReasonTransportSend)
}

var _ transports.Transport = (*Transport)(nil)
