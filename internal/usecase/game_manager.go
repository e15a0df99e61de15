package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/config"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
)

var ErrGridTooLarge = fmt.Errorf("grid size is above the limit: %w", apperror.ErrInvalidInput)

// GameManager creates online games, looks them up by join code and hands out coordinators.
type GameManager struct {
	logger   *slog.Logger
	gameRepo gameRepo
	notifier Notifier
	conf     config.Game
	now      func() time.Time
}

func NewGameManager(logger *slog.Logger, gameRepo gameRepo, conf config.Game) *GameManager {
	return &GameManager{
		logger:   logger,
		gameRepo: gameRepo,
		notifier: NewLogNotifier(logger),
		conf:     conf,
		now:      time.Now,
	}
}

// Create stores a new waiting game. Zero grid size or win condition take the configured defaults.
// The game id doubles as the join code.
func (that *GameManager) Create(ctx context.Context, mode entity.Mode, gridSize, winCondition int) (*document.Game, error) {
	log := that.logger.With("method", "Create")

	var game *document.Game

	switch mode {
	case entity.ModeClassic:
		settings, err := that.Settings(gridSize, winCondition)
		if err != nil {
			return nil, err
		}

		game = document.NewClassic(uuid.NewString(), settings, that.now().UTC())
	case entity.ModeUltimate:
		game = document.NewUltimate(uuid.NewString(), that.now().UTC())
	default:
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, entity.ErrUnknownMode)
	}

	if err := that.gameRepo.Create(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	log.Info("game created", "game_id", game.ID, "mode", game.Mode)

	return game, nil
}

// Settings applies the configured defaults and limits to requested classic settings.
func (that *GameManager) Settings(gridSize, winCondition int) (tictactoe.Settings, error) {
	if gridSize == 0 {
		gridSize = that.conf.DefaultGridSize
	}

	if winCondition == 0 {
		winCondition = min(that.conf.DefaultWinCondition, gridSize)
	}

	if that.conf.MaxGridSize > 0 && gridSize > that.conf.MaxGridSize {
		return tictactoe.Settings{}, fmt.Errorf("%w: %d > %d", ErrGridTooLarge, gridSize, that.conf.MaxGridSize)
	}

	return tictactoe.NewSettings(gridSize, winCondition)
}

// Lookup checks a join code.
func (that *GameManager) Lookup(ctx context.Context, id string) (*document.Game, error) {
	game, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// NewIdentity returns a collision-resistant join-correlation token. It is not a credential.
func (that *GameManager) NewIdentity() string {
	return uuid.NewString()
}

// NewCoordinator returns a coordinator for identity in gameID. A nil notifier only logs.
func (that *GameManager) NewCoordinator(identity, gameID string, notifier Notifier) *SyncCoordinator {
	if notifier == nil {
		notifier = that.notifier
	}

	return NewSyncCoordinator(that.logger, that.gameRepo, notifier, identity, gameID, that.conf.JoinRetries)
}
