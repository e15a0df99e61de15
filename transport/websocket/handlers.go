package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-backend/internal/usecase"
)

const localGameID = "local"

type onlineSession struct {
	*session
	identity    string
	coordinator *usecase.SyncCoordinator
}

// serveOnline joins the identity from ?player= to the game and relays moves and snapshots.
// Without a player an identity is issued; ?spectate=1 watches without one.
func (that *Server) serveOnline(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	log := that.logger.With("method", "serveOnline", "game_id", gameID)

	if _, err := that.manager.Lookup(r.Context(), gameID); err != nil {
		if errors.Is(err, apperror.ErrGameNotFound) {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		log.Error("failed to look up game", "error", err)
		http.Error(w, "failed to look up game", http.StatusInternalServerError)

		return
	}

	query := r.URL.Query()
	identity := query.Get("player")
	if identity == "" && query.Get("spectate") == "" {
		identity = that.manager.NewIdentity()
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("failed to accept websocket", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	log = log.With("identity", identity)

	sess := &onlineSession{session: newSession(ctx, log, conn), identity: identity}
	sess.coordinator = that.manager.NewCoordinator(identity, gameID, sess.session)

	role, err := sess.coordinator.Join(ctx)
	if err != nil {
		sess.coordinator.Close()
		conn.Close(websocket.StatusTryAgainLater, "failed to join game")

		return
	}

	log.Info("WebSocket connection established", "role", role)

	if err = sess.sendMessage(actionConnect, Payload{Identity: identity, Role: role, Game: sess.coordinator.Game()}); err != nil {
		log.Warn("failed to send connect", "error", err)
		sess.coordinator.Close()

		return
	}

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		that.forwardUpdates(log, sess)
	}()

	that.readMessages(ctx, log, conn, sess.session, func(msg *Message) error {
		handler, ok := that.onlineHandlers[msg.Action]
		if !ok {
			return that.unknownAction(sess.session, msg)
		}

		return handler(ctx, msg, sess)
	})

	sess.coordinator.Close()
	<-forwarded

	conn.Close(websocket.StatusNormalClosure, "")
}

// forwardUpdates sends every adopted snapshot until the coordinator is closed.
func (that *Server) forwardUpdates(log *slog.Logger, sess *onlineSession) {
	for game := range sess.coordinator.Updates() {
		if err := sess.sendMessage(actionGameState, Payload{Role: sess.coordinator.Role(), Game: game}); err != nil {
			log.Debug("failed to send game update", "version", game.Version, "error", err)
		}
	}
}

func (that *Server) handleOnlineTurn(ctx context.Context, msg *Message, sess *onlineSession) error {
	log := sess.logger.With("method", "handleOnlineTurn")

	var payloadReq TurnPayload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return sess.sendErrorResponse(msg.Action, kindInvalidInput, fmt.Errorf("failed to unmarshal payload: %w", err))
	}

	move, err := payloadReq.move(sess.coordinator.Game().Mode)
	if err != nil {
		return sess.sendErrorResponse(msg.Action, kindInvalidInput, err)
	}

	game, err := sess.coordinator.Play(ctx, move)
	if errors.Is(err, apperror.ErrMoveUpdateFailed) {
		// already reported through Notify
		return nil
	}

	if err != nil {
		return sess.sendErrorResponse(msg.Action, errorKind(err), err)
	}

	log.Info("player made a turn", "version", game.Version)

	return sess.sendMessage(actionGameState, Payload{Role: sess.coordinator.Role(), Game: game})
}

type localGame interface {
	Apply(move tictactoe.Move) error
	Undo() bool
	Redo() bool
	Reset()
	CanUndo() bool
	CanRedo() bool
	Game() *document.Game
}

type localMachine[S tictactoe.Snapshot[S]] struct {
	*tictactoe.Machine[S]
	view func(id string, state S) *document.Game
}

func (that localMachine[S]) Game() *document.Game {
	return that.view(localGameID, that.State())
}

type localSession struct {
	*session
	mode entity.Mode
	game localGame
}

// serveLocal runs a pass-and-play game held in memory for the lifetime of the connection.
func (that *Server) serveLocal(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveLocal")

	mode, game, err := that.newLocalGame(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("failed to accept websocket", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	log = log.With("mode", mode)

	sess := &localSession{session: newSession(ctx, log, conn), mode: mode, game: game}
	if err = that.sendLocalState(sess); err != nil {
		log.Warn("failed to send initial state", "error", err)
		return
	}

	that.readMessages(ctx, log, conn, sess.session, func(msg *Message) error {
		handler, ok := that.localHandlers[msg.Action]
		if !ok {
			return that.unknownAction(sess.session, msg)
		}

		return handler(msg, sess)
	})

	conn.Close(websocket.StatusNormalClosure, "")
}

func (that *Server) newLocalGame(query url.Values) (entity.Mode, localGame, error) {
	mode := entity.ModeClassic
	if value := query.Get("mode"); value != "" {
		parsed, err := entity.ParseMode(value)
		if err != nil {
			return "", nil, err
		}
		mode = parsed
	}

	if mode == entity.ModeUltimate {
		return mode, localMachine[*tictactoe.UltimateState]{
			Machine: tictactoe.NewUltimateGame(),
			view:    document.FromUltimateState,
		}, nil
	}

	gridSize, err := queryInt(query, "gridSize")
	if err != nil {
		return "", nil, err
	}

	winCondition, err := queryInt(query, "winCondition")
	if err != nil {
		return "", nil, err
	}

	settings, err := that.manager.Settings(gridSize, winCondition)
	if err != nil {
		return "", nil, err
	}

	machine, err := tictactoe.NewClassicGame(settings)
	if err != nil {
		return "", nil, err
	}

	return mode, localMachine[*tictactoe.ClassicState]{Machine: machine, view: document.FromClassicState}, nil
}

func (that *Server) handleLocalTurn(msg *Message, sess *localSession) error {
	var payloadReq TurnPayload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return sess.sendErrorResponse(msg.Action, kindInvalidInput, fmt.Errorf("failed to unmarshal payload: %w", err))
	}

	move, err := payloadReq.move(sess.mode)
	if err != nil {
		return sess.sendErrorResponse(msg.Action, kindInvalidInput, err)
	}

	if err = sess.game.Apply(move); err != nil {
		return sess.sendErrorResponse(msg.Action, errorKind(err), err)
	}

	return that.sendLocalState(sess)
}

func (that *Server) handleLocalUndo(_ *Message, sess *localSession) error {
	sess.game.Undo()

	return that.sendLocalState(sess)
}

func (that *Server) handleLocalRedo(_ *Message, sess *localSession) error {
	sess.game.Redo()

	return that.sendLocalState(sess)
}

func (that *Server) handleLocalReset(_ *Message, sess *localSession) error {
	sess.game.Reset()

	return that.sendLocalState(sess)
}

func (that *Server) sendLocalState(sess *localSession) error {
	return sess.sendMessage(actionGameState, Payload{
		Game:    sess.game.Game(),
		CanUndo: ptr(sess.game.CanUndo()),
		CanRedo: ptr(sess.game.CanRedo()),
	})
}

func queryInt(query url.Values, key string) (int, error) {
	value := query.Get(key)
	if value == "" {
		return 0, nil
	}

	number, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", apperror.ErrInvalidInput, key)
	}

	return number, nil
}
