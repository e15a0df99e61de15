package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
)

const eventTimeout = 5 * time.Second

type repositoryFactory func(t *testing.T) (context.Context, GameRepository)

func newWaitingGame(t *testing.T, id string) *document.Game {
	t.Helper()

	settings, err := tictactoe.NewSettings(3, 3)
	require.NoError(t, err)

	return document.NewClassic(id, settings, time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC))
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()

	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(eventTimeout):
		require.FailNow(t, "no event received")
		return Event{}
	}
}

// testGameRepository checks the behavior every GameRepository must share.
func testGameRepository(t *testing.T, newRepo repositoryFactory) {
	t.Run("Create and GetByID", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: a stored game
		game := newWaitingGame(t, "create-get")
		require.NoError(t, repo.Create(ctx, game))

		// When: it is read back
		stored, err := repo.GetByID(ctx, game.ID)

		// Then: it equals the created document
		require.NoError(t, err)
		assert.Equal(t, game, stored)
	})

	t.Run("Create twice is rejected", func(t *testing.T) {
		ctx, repo := newRepo(t)

		game := newWaitingGame(t, "duplicate")
		require.NoError(t, repo.Create(ctx, game))

		err := repo.Create(ctx, game)

		assert.ErrorIs(t, err, apperror.ErrGameAlreadyExists)
	})

	t.Run("GetByID of a missing game", func(t *testing.T) {
		ctx, repo := newRepo(t)

		game, err := repo.GetByID(ctx, "missing")

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
		assert.Nil(t, game)
	})

	t.Run("Update merges fields and bumps the version", func(t *testing.T) {
		ctx, repo := newRepo(t)
		game := newWaitingGame(t, "update")
		require.NoError(t, repo.Create(ctx, game))

		err := repo.Update(ctx, game.ID, 0, document.Fields{
			document.FieldPlayerX: "alice",
			"board.1_1":           "X",
		})
		require.NoError(t, err)

		stored, err := repo.GetByID(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
		assert.Equal(t, "alice", stored.Players.X)
		assert.Equal(t, entity.MarkX, stored.Board["1_1"])
		assert.Equal(t, entity.StatusWaiting, stored.Status)
	})

	t.Run("Update with a stale version is a conflict", func(t *testing.T) {
		ctx, repo := newRepo(t)
		game := newWaitingGame(t, "stale")
		require.NoError(t, repo.Create(ctx, game))
		require.NoError(t, repo.Update(ctx, game.ID, 0, document.Fields{document.FieldPlayerX: "alice"}))

		err := repo.Update(ctx, game.ID, 0, document.Fields{document.FieldPlayerX: "mallory"})

		require.ErrorIs(t, err, apperror.ErrVersionConflict)
		stored, err := repo.GetByID(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", stored.Players.X)
	})

	t.Run("Update of a missing game", func(t *testing.T) {
		ctx, repo := newRepo(t)

		err := repo.Update(ctx, "missing", 0, document.Fields{document.FieldPlayerX: "alice"})

		assert.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("Concurrent updates on one version: exactly one wins", func(t *testing.T) {
		ctx, repo := newRepo(t)
		game := newWaitingGame(t, "race")
		require.NoError(t, repo.Create(ctx, game))

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded []string
		)

		identities := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		for _, identity := range identities[:writers] {
			wg.Add(1)
			go func() {
				defer wg.Done()

				err := repo.Update(ctx, game.ID, 0, document.Fields{document.FieldPlayerX: identity})
				if err == nil {
					mu.Lock()
					succeeded = append(succeeded, identity)
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, apperror.ErrVersionConflict)
			}()
		}
		wg.Wait()

		require.Len(t, succeeded, 1)
		stored, err := repo.GetByID(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, succeeded[0], stored.Players.X)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("Subscribe pushes the current state and every update", func(t *testing.T) {
		ctx, repo := newRepo(t)
		game := newWaitingGame(t, "subscribe")
		require.NoError(t, repo.Create(ctx, game))

		// Given: a subscription
		sub, err := repo.Subscribe(ctx, game.ID)
		require.NoError(t, err)
		defer sub.Close()

		// Then: the first event is the current state
		first := nextEvent(t, sub)
		require.NoError(t, first.Err)
		assert.Equal(t, int64(0), first.Game.Version)

		// When: the game is updated
		require.NoError(t, repo.Update(ctx, game.ID, 0, document.Fields{document.FieldPlayerX: "alice"}))

		// Then: the update is pushed
		second := nextEvent(t, sub)
		require.NoError(t, second.Err)
		assert.Equal(t, int64(1), second.Game.Version)
		assert.Equal(t, "alice", second.Game.Players.X)
	})

	t.Run("Subscribe to a missing game", func(t *testing.T) {
		ctx, repo := newRepo(t)

		sub, err := repo.Subscribe(ctx, "missing")

		require.ErrorIs(t, err, apperror.ErrGameNotFound)
		assert.Nil(t, sub)
	})

	t.Run("Close ends the stream", func(t *testing.T) {
		ctx, repo := newRepo(t)
		game := newWaitingGame(t, "close")
		require.NoError(t, repo.Create(ctx, game))

		sub, err := repo.Subscribe(ctx, game.ID)
		require.NoError(t, err)

		sub.Close()
		sub.Close()

		for range sub.Events() {
		}
		require.NoError(t, repo.Update(ctx, game.ID, 0, document.Fields{document.FieldPlayerO: "bob"}))
	})
}
