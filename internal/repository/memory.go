package repository

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
)

// memoryGameRepository keeps games in process with the same flat field layout and CAS rules as Redis.
type memoryGameRepository struct {
	mu       sync.Mutex
	games    map[string]document.Fields
	watchers map[string]map[chan struct{}]struct{}
}

func NewMemoryGameRepository() GameRepository {
	return &memoryGameRepository{
		games:    map[string]document.Fields{},
		watchers: map[string]map[chan struct{}]struct{}{},
	}
}

func (that *memoryGameRepository) Create(_ context.Context, game *document.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.games[game.ID]; ok {
		return fmt.Errorf("%w: %s", apperror.ErrGameAlreadyExists, game.ID)
	}

	that.games[game.ID] = document.Encode(game)

	return nil
}

func (that *memoryGameRepository) GetByID(_ context.Context, id string) (*document.Game, error) {
	that.mu.Lock()
	fields, ok := that.games[id]
	fields = maps.Clone(fields)
	that.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
	}

	game, err := document.Decode(id, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %w", id, err)
	}

	return game, nil
}

func (that *memoryGameRepository) Update(_ context.Context, id string, version int64, fields document.Fields) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored, ok := that.games[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
	}

	current, err := strconv.ParseInt(stored[document.FieldVersion], 10, 64)
	if err != nil {
		return fmt.Errorf("failed to read game version: %w", err)
	}

	if current != version {
		return fmt.Errorf("%w: game %s is at version %d, not %d", apperror.ErrVersionConflict, id, current, version)
	}

	maps.Copy(stored, fields)
	stored[document.FieldVersion] = strconv.FormatInt(current+1, 10)

	for watcher := range that.watchers[id] {
		// one pending signal is enough: the watcher reads the latest state
		select {
		case watcher <- struct{}{}:
		default:
		}
	}

	return nil
}

func (that *memoryGameRepository) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	watcher := make(chan struct{}, 1)

	that.mu.Lock()
	if that.watchers[id] == nil {
		that.watchers[id] = map[chan struct{}]struct{}{}
	}
	that.watchers[id][watcher] = struct{}{}
	that.mu.Unlock()

	initial, err := that.GetByID(ctx, id)
	if err != nil {
		that.unwatch(id, watcher)
		return nil, err
	}

	return newSubscription(ctx, func(ctx context.Context, sub *Subscription) {
		defer that.unwatch(id, watcher)

		if !sub.send(ctx, Event{Game: initial}) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
			}

			game, err := that.GetByID(ctx, id)
			if err != nil {
				sub.send(ctx, Event{Err: fmt.Errorf("%w: %w", apperror.ErrSubscriptionLost, err)})
				return
			}

			if !sub.send(ctx, Event{Game: game}) {
				return
			}
		}
	}), nil
}

func (that *memoryGameRepository) unwatch(id string, watcher chan struct{}) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.watchers[id], watcher)
	if len(that.watchers[id]) == 0 {
		delete(that.watchers, id)
	}
}
