// Package ws provides the WebSocket transport: it accepts client
// connections, registers them with the hub, and pumps envelopes between the
// socket and the dispatcher.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tobyv/gamenight/internal/config"
	"github.com/tobyv/gamenight/internal/dispatch"
	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

// Acceptor listens for WebSocket connections and dispatches inbound
// messages until stopped.
type Acceptor struct {
	cfg        config.WebSocketConfig
	hub        *hub.Hub
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger

	upgrader websocket.Upgrader
	server   *http.Server
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port; h, d, and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.WebSocketConfig, h *hub.Hub, d *dispatch.Dispatcher, logger *zap.Logger) *Acceptor {
	a := &Acceptor{
		cfg:        cfg,
		hub:        h,
		dispatcher: d,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy is enforced by the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, a.handleUpgrade)
	a.server = &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}
	return a
}

// ListenAndServe starts the HTTP listener and blocks until Stop is called.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()
	a.logger.Info("websocket acceptor listening",
		zap.String("addr", a.cfg.Addr()),
		zap.String("path", a.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket listener: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (a *Acceptor) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("websocket shutdown", zap.Error(err))
	}
}

// handleUpgrade accepts one client. The identity collaborator upstream has
// already verified the user; we only require the ids to be present.
func (a *Acceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	groupID := r.URL.Query().Get("group_id")
	name := r.URL.Query().Get("name")
	if userID == "" || groupID == "" {
		http.Error(w, "user_id and group_id are required", http.StatusBadRequest)
		return
	}

	sock, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn, welcome, err := a.hub.Connect(userID, groupID, name)
	if err != nil {
		a.logger.Error("hub connect failed", zap.Error(err))
		_ = sock.Close()
		return
	}
	if err := conn.Push(welcome); err != nil {
		_ = a.hub.Disconnect(conn.ID())
		_ = sock.Close()
		return
	}

	go a.writeLoop(conn, sock)
	go a.readLoop(conn, sock)
}

// writeLoop drains the connection's outbound buffer onto the socket. A
// write failure tears the connection down; the client resyncs with a fresh
// get_state after reconnecting.
func (a *Acceptor) writeLoop(conn *hub.Conn, sock *websocket.Conn) {
	defer sock.Close()
	for env := range conn.Events() {
		data, err := env.Encode()
		if err != nil {
			a.logger.Error("encoding outbound envelope", zap.Error(err))
			continue
		}
		if a.cfg.WriteTimeout > 0 {
			_ = sock.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
		}
		if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = a.hub.Disconnect(conn.ID())
			return
		}
	}
}

// readLoop decodes inbound frames and hands them to the dispatcher.
func (a *Acceptor) readLoop(conn *hub.Conn, sock *websocket.Conn) {
	defer func() {
		_ = a.hub.Disconnect(conn.ID())
		_ = sock.Close()
	}()

	if a.cfg.MaxMessageBytes > 0 {
		sock.SetReadLimit(a.cfg.MaxMessageBytes)
	}

	ctx := context.Background()
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return
		}
		env, err := message.Decode(data)
		if err != nil {
			a.logger.Debug("dropping malformed frame",
				zap.String("user_id", conn.UserID()),
				zap.Error(err),
			)
			continue
		}
		if env.Type == message.TypeDisconnect {
			return
		}
		a.dispatcher.Dispatch(ctx, conn, env.WithSender(conn.UserID()))
	}
}
