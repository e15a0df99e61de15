package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
)

type gameManager interface {
	Create(ctx context.Context, mode entity.Mode, gridSize, winCondition int) (*document.Game, error)
	Lookup(ctx context.Context, id string) (*document.Game, error)
	NewIdentity() string
}

type Handlers interface {
	CreateGame(w http.ResponseWriter, r *http.Request)
	GetGame(w http.ResponseWriter, r *http.Request)
	CreateIdentity(w http.ResponseWriter, r *http.Request)
}

type handlers struct {
	logger  *slog.Logger
	manager gameManager
}

func NewHandlers(logger *slog.Logger, manager gameManager) Handlers {
	return &handlers{
		logger:  logger.With("component", "rest"),
		manager: manager,
	}
}

type createGameRequest struct {
	Mode         entity.Mode `json:"mode"`
	GridSize     int         `json:"gridSize"`
	WinCondition int         `json:"winCondition"`
}

type identityResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateGame stores a waiting game. An empty mode means classic.
func (that *handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "CreateGame")

	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, fmt.Errorf("%w: failed to decode request: %w", apperror.ErrInvalidInput, err))
		return
	}

	if req.Mode == "" {
		req.Mode = entity.ModeClassic
	}

	game, err := that.manager.Create(r.Context(), req.Mode, req.GridSize, req.WinCondition)
	if err != nil {
		log.Warn("failed to create game", "error", err)
		that.writeError(w, err)

		return
	}

	that.writeJSON(w, http.StatusCreated, game)
}

// GetGame resolves a join code.
func (that *handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.manager.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, game)
}

func (that *handlers) CreateIdentity(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusCreated, identityResponse{ID: that.manager.NewIdentity()})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

func (that *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperror.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrGameNotFound):
		status = http.StatusNotFound
	default:
		that.logger.Error("request failed", "error", err)
	}

	that.writeJSON(w, status, errorResponse{Error: err.Error()})
}
