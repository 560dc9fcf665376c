package infra

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Websocket upgrades echo requests and keeps the connection alive with pings
type Websocket struct {
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebsocket .
func NewWebsocket(logger *zap.Logger) *Websocket {
	pongWait := 30 * time.Second
	return &Websocket{
		WriteWait:    10 * time.Second,
		PongWait:     pongWait,
		PingInterval: pongWait * 9 / 10,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			HandshakeTimeout: 3 * time.Second,
		},
		logger: logger,
	}
}

// Serve upgrades the request and runs handler in the background. handler is
// the only writer of data frames; its context is cancelled once the peer
// stops answering pings or closes the connection. c must not be used by
// handler.
func (ws *Websocket) Serve(c echo.Context, handler func(ctx context.Context, conn *websocket.Conn) error) error {
	conn, err := ws.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied
		ws.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go ws.readRoutine(conn, cancel)
	go ws.heartbeatRoutine(ctx, conn, cancel)
	go ws.processRoutine(ctx, conn, cancel, handler)
	return nil
}

// readRoutine drains inbound frames so pongs and close frames are handled
func (ws *Websocket) readRoutine(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(ws.PongWait))
		return nil
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (ws *Websocket) heartbeatRoutine(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	ticker := time.NewTicker(ws.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ws.WriteWait)); err != nil {
				cancel()
				return
			}
		}
	}
}

func (ws *Websocket) processRoutine(
	ctx context.Context,
	conn *websocket.Conn,
	cancel context.CancelFunc,
	handler func(ctx context.Context, conn *websocket.Conn) error,
) {
	defer func() {
		cancel()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(ws.WriteWait))
		conn.Close()
	}()
	if err := handler(ctx, conn); err != nil {
		ws.logger.Debug("websocket handler stopped", zap.Error(err))
	}
}
