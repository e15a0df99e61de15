package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/config"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
)

const updateTimeout = 5 * time.Second

var errRedisDown = errors.New("redis down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*GameManager, repository.GameRepository) {
	t.Helper()

	repo := repository.NewMemoryGameRepository()

	return NewGameManager(discardLogger(), repo, config.Game{
		DefaultGridSize:     3,
		DefaultWinCondition: 3,
		MaxGridSize:         20,
		JoinRetries:         5,
	}), repo
}

func join(t *testing.T, manager *GameManager, identity, gameID string) *SyncCoordinator {
	t.Helper()

	coordinator := manager.NewCoordinator(identity, gameID, nil)
	t.Cleanup(coordinator.Close)

	_, err := coordinator.Join(context.Background())
	require.NoError(t, err)

	return coordinator
}

// waitForVersion reads Updates until a snapshot at version or later arrives.
func waitForVersion(t *testing.T, coordinator *SyncCoordinator, version int64) *document.Game {
	t.Helper()

	deadline := time.After(updateTimeout)
	for {
		select {
		case game, ok := <-coordinator.Updates():
			require.True(t, ok, "updates closed")
			if game.Version >= version {
				return game
			}
		case <-deadline:
			require.FailNow(t, "no update", "waiting for version %d", version)
			return nil
		}
	}
}

func TestSyncCoordinator_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("Roles are assigned first come: X, then O, then spectator", func(t *testing.T) {
		// Given: a new waiting game
		manager, repo := newTestManager(t)
		game, err := manager.Create(ctx, entity.ModeClassic, 0, 0)
		require.NoError(t, err)

		// When: three identities join one after another
		alice := join(t, manager, "alice", game.ID)
		bob := join(t, manager, "bob", game.ID)
		carol := join(t, manager, "carol", game.ID)

		// Then: they get X, O and spectator
		assert.Equal(t, entity.RoleX, alice.Role())
		assert.Equal(t, entity.RoleO, bob.Role())
		assert.Equal(t, entity.RoleSpectator, carol.Role())

		// And: the game started once both slots were taken
		stored, err := repo.GetByID(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.Players{X: "alice", O: "bob"}, stored.Players)
		assert.Equal(t, entity.StatusPlaying, stored.Status)
	})

	t.Run("Rejoining keeps the claimed role", func(t *testing.T) {
		manager, _ := newTestManager(t)
		game, err := manager.Create(ctx, entity.ModeUltimate, 0, 0)
		require.NoError(t, err)
		join(t, manager, "alice", game.ID)
		join(t, manager, "bob", game.ID)

		again := manager.NewCoordinator("bob", game.ID, nil)
		defer again.Close()
		role, err := again.Join(ctx)

		require.NoError(t, err)
		assert.Equal(t, entity.RoleO, role)
	})

	t.Run("Concurrent joins claim exactly one X and one O", func(t *testing.T) {
		manager, repo := newTestManager(t)
		game, err := manager.Create(ctx, entity.ModeClassic, 0, 0)
		require.NoError(t, err)

		identities := []string{"p1", "p2", "p3", "p4"}
		roles := make([]entity.Role, len(identities))

		var wg sync.WaitGroup
		for i, identity := range identities {
			wg.Add(1)
			go func() {
				defer wg.Done()

				coordinator := manager.NewCoordinator(identity, game.ID, nil)
				defer coordinator.Close()

				role, err := coordinator.Join(ctx)
				assert.NoError(t, err)
				roles[i] = role
			}()
		}
		wg.Wait()

		counts := map[entity.Role]int{}
		for _, role := range roles {
			counts[role]++
		}
		assert.Equal(t, 1, counts[entity.RoleX])
		assert.Equal(t, 1, counts[entity.RoleO])
		assert.Equal(t, 2, counts[entity.RoleSpectator])

		stored, err := repo.GetByID(ctx, game.ID)
		require.NoError(t, err)
		assert.True(t, stored.Players.Full())
		assert.NotEqual(t, stored.Players.X, stored.Players.O)
		assert.Equal(t, entity.StatusPlaying, stored.Status)
	})

	t.Run("Unknown join code notifies game not found", func(t *testing.T) {
		manager, _ := newTestManager(t)
		notifier := &recordingNotifier{}
		coordinator := manager.NewCoordinator("alice", "no-such-game", notifier)
		defer coordinator.Close()

		role, err := coordinator.Join(ctx)

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
		assert.Equal(t, entity.RoleSpectator, role)
		assert.Equal(t, []NotificationKind{NotifyGameNotFound}, notifier.kinds())
	})

	t.Run("Store failure notifies join failed", func(t *testing.T) {
		// Given: a store that is down
		repo := &mockGameRepo{}
		repo.On("GetByID", mock.Anything, "game").Return(nil, errRedisDown).Once()
		notifier := &recordingNotifier{}
		coordinator := NewSyncCoordinator(discardLogger(), repo, notifier, "alice", "game", 3)
		defer coordinator.Close()

		// When: joining
		_, err := coordinator.Join(ctx)

		// Then: the failure is a join failure and the coordinator stays usable
		require.ErrorIs(t, err, apperror.ErrJoinFailed)
		require.ErrorIs(t, err, errRedisDown)
		assert.Equal(t, []NotificationKind{NotifyJoinFailed}, notifier.kinds())
		repo.AssertExpectations(t)
	})

	t.Run("Losing every claim race is a join failure", func(t *testing.T) {
		settings, err := tictactoe.NewSettings(3, 3)
		require.NoError(t, err)
		waiting := document.NewClassic("game", settings, time.Now())

		repo := &mockGameRepo{}
		repo.On("GetByID", mock.Anything, "game").Return(waiting, nil).Times(2)
		repo.On("Update", mock.Anything, "game", int64(0), mock.Anything).Return(apperror.ErrVersionConflict).Times(2)
		coordinator := NewSyncCoordinator(discardLogger(), repo, &recordingNotifier{}, "alice", "game", 2)
		defer coordinator.Close()

		_, err = coordinator.Join(ctx)

		require.ErrorIs(t, err, apperror.ErrJoinFailed)
		require.ErrorIs(t, err, apperror.ErrVersionConflict)
		repo.AssertExpectations(t)
	})
}

func TestSyncCoordinator_Play(t *testing.T) {
	ctx := context.Background()

	type startedGame struct {
		manager *GameManager
		repo    repository.GameRepository
		alice   *SyncCoordinator
		bob     *SyncCoordinator
	}

	newStartedGame := func(t *testing.T, mode entity.Mode) startedGame {
		t.Helper()

		manager, repo := newTestManager(t)
		game, err := manager.Create(ctx, mode, 0, 0)
		require.NoError(t, err)

		alice := join(t, manager, "alice", game.ID)
		bob := join(t, manager, "bob", game.ID)

		// alice claimed first and learns about bob through the subscription
		waitForVersion(t, alice, bob.Game().Version)

		return startedGame{manager: manager, repo: repo, alice: alice, bob: bob}
	}

	t.Run("A move is published and pushed to the opponent", func(t *testing.T) {
		// Given: a started classic game
		started := newStartedGame(t, entity.ModeClassic)
		alice, bob, repo := started.alice, started.bob, started.repo
		version := alice.Game().Version

		// When: X plays the center
		provisional, err := alice.Play(ctx, tictactoe.ClassicMove(1, 1))
		require.NoError(t, err)

		// Then: the provisional result already holds the move
		assert.Equal(t, entity.MarkX, provisional.Board["1_1"])
		assert.Equal(t, entity.MarkO, provisional.CurrentPlayer)
		assert.Equal(t, version+1, provisional.Version)

		// And: the store and the opponent agree
		stored, err := repo.GetByID(ctx, provisional.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.MarkX, stored.Board["1_1"])

		pushed := waitForVersion(t, bob, version+1)
		assert.Equal(t, entity.MarkX, pushed.Board["1_1"])
		assert.Equal(t, entity.MarkO, pushed.CurrentPlayer)
	})

	t.Run("Out of turn and spectator moves are illegal", func(t *testing.T) {
		started := newStartedGame(t, entity.ModeClassic)

		_, err := started.bob.Play(ctx, tictactoe.ClassicMove(0, 0))
		assert.ErrorIs(t, err, ErrNotYourTurn)
		assert.ErrorIs(t, err, apperror.ErrIllegalMove)

		carol := join(t, started.manager, "carol", started.alice.Game().ID)
		require.Equal(t, entity.RoleSpectator, carol.Role())

		_, err = carol.Play(ctx, tictactoe.ClassicMove(0, 0))
		assert.ErrorIs(t, err, ErrSpectator)
	})

	t.Run("Engine rejections are returned without a notification", func(t *testing.T) {
		manager, _ := newTestManager(t)
		game, err := manager.Create(ctx, entity.ModeClassic, 0, 0)
		require.NoError(t, err)

		notifier := &recordingNotifier{}
		alice := manager.NewCoordinator("alice", game.ID, notifier)
		defer alice.Close()
		_, err = alice.Join(ctx)
		require.NoError(t, err)

		// the opponent has not joined yet
		_, err = alice.Play(ctx, tictactoe.ClassicMove(0, 0))
		require.ErrorIs(t, err, tictactoe.ErrGameIsNotStarted)
		assert.Empty(t, notifier.kinds())
	})

	t.Run("Ultimate moves follow the active board", func(t *testing.T) {
		started := newStartedGame(t, entity.ModeUltimate)
		alice, bob := started.alice, started.bob

		game, err := alice.Play(ctx, tictactoe.UltimateMove(0, 4))
		require.NoError(t, err)
		require.NotNil(t, game.ActiveBoard)
		assert.Equal(t, 4, *game.ActiveBoard)

		waitForVersion(t, bob, game.Version)
		_, err = bob.Play(ctx, tictactoe.UltimateMove(3, 0))
		assert.ErrorIs(t, err, tictactoe.ErrInactiveBoard)

		_, err = bob.Play(ctx, tictactoe.UltimateMove(4, 0))
		assert.NoError(t, err)
	})

	t.Run("Play before Join", func(t *testing.T) {
		manager, _ := newTestManager(t)
		coordinator := manager.NewCoordinator("alice", "game", nil)
		defer coordinator.Close()

		_, err := coordinator.Play(ctx, tictactoe.ClassicMove(0, 0))

		assert.ErrorIs(t, err, ErrNotJoined)
	})
}

func TestSyncCoordinator_PlayConflict(t *testing.T) {
	ctx := context.Background()

	// Given: alice holds X in a started game, but the store has moved on
	settings, err := tictactoe.NewSettings(3, 3)
	require.NoError(t, err)
	started := document.NewClassic("game", settings, time.Now())
	started.Players = entity.Players{X: "alice", O: "bob"}
	started.Status = entity.StatusPlaying
	started.Version = 2

	moved, err := started.Apply(document.Fields{"board.0_0": "X", document.FieldCurrentPlayer: "O"})
	require.NoError(t, err)
	moved.Version = 3

	repo := &mockGameRepo{}
	repo.On("GetByID", mock.Anything, "game").Return(started, nil).Once()
	repo.On("GetByID", mock.Anything, "game").Return(moved, nil).Once()
	repo.On("Subscribe", mock.Anything, "game").Return(nil, errRedisDown)
	repo.On("Update", mock.Anything, "game", int64(2), mock.Anything).Return(apperror.ErrVersionConflict).Once()

	notifier := &recordingNotifier{}
	coordinator := NewSyncCoordinator(discardLogger(), repo, notifier, "alice", "game", 3)
	defer coordinator.Close()

	role, err := coordinator.Join(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.RoleX, role)

	// When: alice plays on her stale copy
	_, err = coordinator.Play(ctx, tictactoe.ClassicMove(1, 1))

	// Then: the move is rejected as a failed update caused by the conflict
	require.ErrorIs(t, err, apperror.ErrMoveUpdateFailed)
	require.ErrorIs(t, err, apperror.ErrVersionConflict)

	// And: the cache is refreshed to the authoritative document
	assert.Equal(t, int64(3), coordinator.Game().Version)
	assert.Equal(t, entity.MarkO, coordinator.Game().CurrentPlayer)

	// And: the lost subscription was reported on Join and retried on Play
	assert.Equal(t, []NotificationKind{
		NotifySubscriptionLost,
		NotifySubscriptionLost,
		NotifyMoveUpdateFailed,
	}, notifier.kinds())
	repo.AssertNumberOfCalls(t, "Subscribe", 2)
	repo.AssertExpectations(t)
}

func TestSyncCoordinator_Close(t *testing.T) {
	manager, _ := newTestManager(t)
	game, err := manager.Create(context.Background(), entity.ModeClassic, 0, 0)
	require.NoError(t, err)

	coordinator := manager.NewCoordinator("alice", game.ID, nil)
	_, err = coordinator.Join(context.Background())
	require.NoError(t, err)

	coordinator.Close()
	coordinator.Close()

	for range coordinator.Updates() {
	}

	_, err = coordinator.Play(context.Background(), tictactoe.ClassicMove(0, 0))
	assert.ErrorIs(t, err, ErrCoordinatorClosed)
}
