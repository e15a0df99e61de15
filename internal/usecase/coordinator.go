package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
)

var (
	ErrNotJoined         = fmt.Errorf("game is not joined: %w", apperror.ErrIllegalMove)
	ErrSpectator         = fmt.Errorf("spectators cannot move: %w", apperror.ErrIllegalMove)
	ErrNotYourTurn       = fmt.Errorf("it is not your turn: %w", apperror.ErrIllegalMove)
	ErrCoordinatorClosed = errors.New("coordinator is closed")
)

type gameRepo interface {
	Create(ctx context.Context, game *document.Game) error
	GetByID(ctx context.Context, id string) (*document.Game, error)
	Update(ctx context.Context, id string, version int64, fields document.Fields) error
	Subscribe(ctx context.Context, id string) (*repository.Subscription, error)
}

// SyncCoordinator plays one identity in one online game. It keeps a cached copy of the game document,
// publishes moves as compare-and-swap updates and adopts every pushed snapshot.
type SyncCoordinator struct {
	logger      *slog.Logger
	repo        gameRepo
	notifier    Notifier
	identity    string
	gameID      string
	joinRetries int

	// lifetime of the subscription, canceled by Close
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	game    *document.Game
	role    entity.Role
	sub     *repository.Subscription
	closed  bool
	watches sync.WaitGroup
	updates chan *document.Game
}

func NewSyncCoordinator(
	logger *slog.Logger,
	repo gameRepo,
	notifier Notifier,
	identity, gameID string,
	joinRetries int,
) *SyncCoordinator {
	ctx, cancel := context.WithCancel(context.Background())

	if joinRetries < 1 {
		joinRetries = 1
	}

	return &SyncCoordinator{
		logger:      logger.With("component", "coordinator", "game_id", gameID),
		repo:        repo,
		notifier:    notifier,
		identity:    identity,
		gameID:      gameID,
		joinRetries: joinRetries,
		ctx:         ctx,
		cancel:      cancel,
		role:        entity.RoleSpectator,
		updates:     make(chan *document.Game, 1),
	}
}

// Join assigns the identity a role: the slot it already holds, the first open slot of a waiting game,
// or spectator. Claiming a slot is a conditional update retried when another joiner wins the race.
func (that *SyncCoordinator) Join(ctx context.Context) (entity.Role, error) {
	log := that.logger.With("method", "Join", "identity", that.identity)

	var lastErr error
	for range that.joinRetries {
		game, err := that.repo.GetByID(ctx, that.gameID)
		if err != nil {
			return entity.RoleSpectator, that.joinError(err)
		}

		role := game.Players.RoleOf(that.identity)
		if role.IsPlayer() || !game.Status.IsWaiting() || that.identity == "" {
			that.adopt(game, role, false)
			that.ensureSubscribed()
			log.Info("joined game", "role", role)

			return role, nil
		}

		role = game.Players.OpenSlot()
		if role == entity.RoleSpectator {
			that.adopt(game, role, false)
			that.ensureSubscribed()

			return role, nil
		}

		fields := document.ClaimFields(game.Players, role, that.identity)
		err = that.repo.Update(ctx, that.gameID, game.Version, fields)
		if errors.Is(err, apperror.ErrVersionConflict) {
			log.Debug("lost the race for a slot, retrying", "role", role)
			lastErr = err
			continue
		}

		if err != nil {
			return entity.RoleSpectator, that.joinError(err)
		}

		claimed, err := game.Apply(fields)
		if err != nil {
			return entity.RoleSpectator, that.joinError(err)
		}
		claimed.Version = game.Version + 1

		that.adopt(claimed, role, false)
		that.ensureSubscribed()
		log.Info("claimed slot", "role", role)

		return role, nil
	}

	return entity.RoleSpectator, that.joinError(lastErr)
}

// Play validates move against the cached game, publishes the changed fields and returns the
// provisional result. The next pushed snapshot replaces it.
func (that *SyncCoordinator) Play(ctx context.Context, move tictactoe.Move) (*document.Game, error) {
	log := that.logger.With("method", "Play", "identity", that.identity)

	that.mu.Lock()
	game, role, closed := that.game, that.role, that.closed
	that.mu.Unlock()

	switch {
	case closed:
		return nil, ErrCoordinatorClosed
	case game == nil:
		return nil, ErrNotJoined
	}

	that.ensureSubscribed()

	if !role.IsPlayer() {
		return nil, ErrSpectator
	}

	if game.CurrentPlayer != role.Mark() {
		return nil, fmt.Errorf("%w: %s to move", ErrNotYourTurn, game.CurrentPlayer)
	}

	fields, err := moveFields(game, move)
	if err != nil {
		return nil, err
	}

	if err = that.repo.Update(ctx, that.gameID, game.Version, fields); err != nil {
		if errors.Is(err, apperror.ErrVersionConflict) {
			that.refresh(ctx)
		}

		err = fmt.Errorf("%w: %w", apperror.ErrMoveUpdateFailed, err)
		that.notify(NotifyMoveUpdateFailed, err)
		log.Warn("failed to publish move", "error", err)

		return nil, err
	}

	provisional, err := game.Apply(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to apply published move: %w", err)
	}
	provisional.Version = game.Version + 1
	that.adopt(provisional, role, true)

	return provisional, nil
}

// Game returns the cached game document, nil before Join.
func (that *SyncCoordinator) Game() *document.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game
}

func (that *SyncCoordinator) Role() entity.Role {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.role
}

// Updates delivers adopted snapshots. Only the latest undelivered snapshot is kept.
// The channel is closed by Close.
func (that *SyncCoordinator) Updates() <-chan *document.Game {
	return that.updates
}

// Close unsubscribes and closes Updates. In-flight writes are not canceled.
func (that *SyncCoordinator) Close() {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}
	that.closed = true
	sub := that.sub
	that.sub = nil
	that.mu.Unlock()

	that.cancel()
	if sub != nil {
		sub.Close()
	}

	that.watches.Wait()
	close(that.updates)
}

func (that *SyncCoordinator) joinError(err error) error {
	if errors.Is(err, apperror.ErrGameNotFound) {
		that.notify(NotifyGameNotFound, err)
		return err
	}

	err = fmt.Errorf("%w: %w", apperror.ErrJoinFailed, err)
	that.notify(NotifyJoinFailed, err)

	return err
}

// adopt replaces the cache unless game is older than what is cached. A provisional game
// must be strictly newer: a pushed snapshot of the same version is authoritative.
func (that *SyncCoordinator) adopt(game *document.Game, role entity.Role, provisional bool) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.role = role
	if that.game != nil {
		if game.Version < that.game.Version || (provisional && game.Version == that.game.Version) {
			return false
		}
	}
	that.game = game

	return true
}

func (that *SyncCoordinator) refresh(ctx context.Context) {
	game, err := that.repo.GetByID(ctx, that.gameID)
	if err != nil {
		that.logger.Warn("failed to refresh game", "error", err)
		return
	}

	that.mu.Lock()
	role := that.role
	that.mu.Unlock()

	that.adopt(game, role, false)
}

// ensureSubscribed starts the push stream when there is none, including after a lost one.
func (that *SyncCoordinator) ensureSubscribed() {
	that.mu.Lock()
	active := that.sub != nil || that.closed
	that.mu.Unlock()

	if active {
		return
	}

	sub, err := that.repo.Subscribe(that.ctx, that.gameID)
	if err != nil {
		that.notify(NotifySubscriptionLost, fmt.Errorf("%w: %w", apperror.ErrSubscriptionLost, err))
		return
	}

	that.mu.Lock()
	if that.sub != nil || that.closed {
		that.mu.Unlock()
		sub.Close()

		return
	}
	that.sub = sub
	that.watches.Add(1)
	that.mu.Unlock()

	go that.watch(sub)
}

func (that *SyncCoordinator) watch(sub *repository.Subscription) {
	defer that.watches.Done()

	for event := range sub.Events() {
		if event.Err != nil {
			that.mu.Lock()
			if that.sub == sub {
				that.sub = nil
			}
			that.mu.Unlock()

			sub.Close()
			that.notify(NotifySubscriptionLost, event.Err)

			return
		}

		role := event.Game.Players.RoleOf(that.identity)
		if !role.IsPlayer() {
			role = that.Role()
		}

		if that.adopt(event.Game, role, false) {
			that.publish(event.Game)
		}
	}
}

func (that *SyncCoordinator) publish(game *document.Game) {
	select {
	case <-that.updates:
	default:
	}

	select {
	case that.updates <- game:
	default:
	}
}

func (that *SyncCoordinator) notify(kind NotificationKind, err error) {
	if that.notifier == nil {
		return
	}

	that.notifier.Notify(Notification{Kind: kind, GameID: that.gameID, Err: err})
}

func moveFields(game *document.Game, move tictactoe.Move) (document.Fields, error) {
	switch game.Mode {
	case entity.ModeClassic:
		prev, err := game.ClassicState()
		if err != nil {
			return nil, err
		}

		next, err := prev.Play(move)
		if err != nil {
			return nil, err
		}

		return document.ClassicMoveFields(prev, next, move), nil
	case entity.ModeUltimate:
		prev, err := game.UltimateState()
		if err != nil {
			return nil, err
		}

		next, err := prev.Play(move)
		if err != nil {
			return nil, err
		}

		return document.UltimateMoveFields(prev, next, move), nil
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownMode, game.Mode)
	}
}
