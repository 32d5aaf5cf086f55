package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-relay/internal/config"
	"github.com/rocketscienceinc/tictactoe-relay/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-relay/internal/session"
)

type gameManager interface {
	Connect(sess *session.Session)
	HandleMessage(ctx context.Context, sess *session.Session, data []byte)
	Disconnect(ctx context.Context, sess *session.Session)
}

// Server upgrades HTTP requests to WebSocket connections and pumps frames between them and the game manager.
type Server struct {
	ctx      context.Context
	logger   *slog.Logger
	manager  gameManager
	conf     config.Socket
	upgrader websocket.Upgrader

	active sync.WaitGroup
}

// New - ctx bounds every request handled on behalf of the connections.
func New(ctx context.Context, logger *slog.Logger, manager gameManager, conf config.Socket) *Server {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	// nil keeps gorilla's same-origin check
	if !conf.CheckOrigin {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	return &Server{
		ctx:      ctx,
		logger:   logger.With("component", "websocket"),
		manager:  manager,
		conf:     conf,
		upgrader: upgrader,
	}
}

func (that *Server) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", "error", err)
		return
	}

	that.active.Add(1)
	defer that.active.Done()

	sess := session.New(pkg.GenerateSessionID(), that.conf.OutboxSize, conn)
	that.manager.Connect(sess)

	log.Info("connection established", "sessionID", sess.ID(), "remote", req.RemoteAddr)

	go that.writePump(conn, sess)
	that.readPump(conn, sess)
}

// Wait - blocks until every connection has been disconnected or ctx is done.
func (that *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		that.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump - feeds inbound frames to the manager until the connection fails, then disconnects the session.
func (that *Server) readPump(conn *websocket.Conn, sess *session.Session) {
	log := that.logger.With("method", "readPump", "sessionID", sess.ID())

	defer func() {
		sess.Terminate()
		that.manager.Disconnect(that.ctx, sess)

		log.Info("connection closed")
	}()

	if that.conf.MaxMessageSize > 0 {
		conn.SetReadLimit(that.conf.MaxMessageSize)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("unexpected close", "error", err)
			}
			return
		}

		that.manager.HandleMessage(that.ctx, sess, data)
	}
}

// writePump - the only writer of conn. Each queued message goes out as its own text frame.
func (that *Server) writePump(conn *websocket.Conn, sess *session.Session) {
	log := that.logger.With("method", "writePump", "sessionID", sess.ID())

	for {
		select {
		case <-sess.Done():
			return
		case frame := <-sess.Outbox():
			if that.conf.WriteWait > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(that.conf.WriteWait))
			}

			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug("failed to write message", "error", err)
				sess.Terminate()
				return
			}
		}
	}
}
