package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-backend/internal/usecase"
)

const (
	actionConnect   = "connect"
	actionGameState = "game:state"
	actionGameTurn  = "game:turn"
	actionGameUndo  = "game:undo"
	actionGameRedo  = "game:redo"
	actionGameReset = "game:reset"
	actionError     = "error"

	kindIllegalMove   = "illegal_move"
	kindInvalidInput  = "invalid_input"
	kindUnknownAction = "unknown_action"
	kindInternal      = "internal"

	writeTimeout = 3 * time.Second
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Payload struct {
	Identity string         `json:"identity,omitempty"`
	Role     entity.Role    `json:"role,omitempty"`
	Game     *document.Game `json:"game,omitempty"`
	CanUndo  *bool          `json:"canUndo,omitempty"`
	CanRedo  *bool          `json:"canRedo,omitempty"`

	// set on error messages
	Action string `json:"action,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TurnPayload is a click: row and col on a classic board, board and cell in ultimate games.
type TurnPayload struct {
	Row   *int `json:"row,omitempty"`
	Col   *int `json:"col,omitempty"`
	Board *int `json:"board,omitempty"`
	Cell  *int `json:"cell,omitempty"`
}

var errTurnPayload = fmt.Errorf("turn needs row and col, or board and cell: %w", apperror.ErrInvalidInput)

func (that TurnPayload) move(mode entity.Mode) (tictactoe.Move, error) {
	switch {
	case mode == entity.ModeUltimate && that.Board != nil && that.Cell != nil:
		return tictactoe.UltimateMove(*that.Board, *that.Cell), nil
	case mode == entity.ModeClassic && that.Row != nil && that.Col != nil:
		return tictactoe.ClassicMove(*that.Row, *that.Col), nil
	default:
		return tictactoe.Move{}, errTurnPayload
	}
}

// session is one client connection. Writes are serialized; reads happen on the handler goroutine only.
type session struct {
	logger *slog.Logger
	conn   *websocket.Conn
	ctx    context.Context

	mu sync.Mutex
}

func newSession(ctx context.Context, logger *slog.Logger, conn *websocket.Conn) *session {
	return &session{
		logger: logger,
		conn:   conn,
		ctx:    ctx,
	}
}

func (that *session) sendMessage(action string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(that.ctx, writeTimeout)
	defer cancel()

	that.mu.Lock()
	defer that.mu.Unlock()

	if err = wsjson.Write(ctx, that.conn, Message{Action: action, Payload: body}); err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}

	return nil
}

func (that *session) sendErrorResponse(action, kind string, err error) error {
	return that.sendMessage(actionError, Payload{Action: action, Kind: kind, Error: err.Error()})
}

// Notify forwards coordinator failures to the client.
func (that *session) Notify(notification usecase.Notification) {
	payload := Payload{Kind: string(notification.Kind)}
	if notification.Err != nil {
		payload.Error = notification.Err.Error()
	}

	if err := that.sendMessage(actionError, payload); err != nil {
		that.logger.Debug("failed to deliver notification", "kind", notification.Kind, "error", err)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperror.ErrIllegalMove):
		return kindIllegalMove
	case errors.Is(err, apperror.ErrInvalidInput):
		return kindInvalidInput
	default:
		return kindInternal
	}
}

func ptr[T any](value T) *T {
	return &value
}
