package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-backend/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

type gameManager interface {
	Lookup(ctx context.Context, id string) (*document.Game, error)
	Settings(gridSize, winCondition int) (tictactoe.Settings, error)
	NewIdentity() string
	NewCoordinator(identity, gameID string, notifier usecase.Notifier) *usecase.SyncCoordinator
}

type (
	onlineHandler func(ctx context.Context, msg *Message, sess *onlineSession) error
	localHandler  func(msg *Message, sess *localSession) error
)

type Server struct {
	logger  *slog.Logger
	manager gameManager

	onlineHandlers map[string]onlineHandler
	localHandlers  map[string]localHandler
}

func New(logger *slog.Logger, manager gameManager) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,

		onlineHandlers: make(map[string]onlineHandler),
		localHandlers:  make(map[string]localHandler),
	}

	server.onlineHandlers[actionGameTurn] = server.handleOnlineTurn

	server.localHandlers[actionGameTurn] = server.handleLocalTurn
	server.localHandlers[actionGameUndo] = server.handleLocalUndo
	server.localHandlers[actionGameRedo] = server.handleLocalRedo
	server.localHandlers[actionGameReset] = server.handleLocalReset

	return server
}

// Router exposes the online and local game sockets.
func (that *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/ws/games/{id}", that.serveOnline)
	router.Get("/ws/local", that.serveLocal)

	return router
}

// Start - starts WebSocket server. Open sessions end when ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		that.logger.Info("server stopped", "port", port)

		return nil
	}
}

// readMessages - processes messages from the client until the connection closes.
func (that *Server) readMessages(ctx context.Context, log *slog.Logger, conn *websocket.Conn, sess *session, dispatch func(*Message) error) {
	for {
		_, body, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("connection closed")
			default:
				if ctx.Err() == nil {
					log.Warn("error reading message", "error", err)
				}
			}

			return
		}

		var message Message
		if err = json.Unmarshal(body, &message); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			if err = sess.sendErrorResponse("", kindInvalidInput, errors.New("message is not valid json")); err != nil {
				return
			}

			continue
		}

		if err = dispatch(&message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

var errUnknownAction = errors.New("unknown action")

func (that *Server) unknownAction(sess *session, msg *Message) error {
	return sess.sendErrorResponse(msg.Action, kindUnknownAction, fmt.Errorf("%w %q", errUnknownAction, msg.Action))
}
