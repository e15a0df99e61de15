package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
)

type GameRepository interface {
	// Create stores a new game document. An existing id is ErrGameAlreadyExists.
	Create(ctx context.Context, game *document.Game) error
	GetByID(ctx context.Context, id string) (*document.Game, error)
	// Update merges fields into the game when its version still equals version, and bumps the version.
	// A stale version is ErrVersionConflict.
	Update(ctx context.Context, id string, version int64, fields document.Fields) error
	Subscribe(ctx context.Context, id string) (*Subscription, error)
}

type redisGameRepository struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &redisGameRepository{
		client: client,
	}
}

func gameKey(id string) string {
	return "game:" + id
}

func updatesChannel(id string) string {
	return "game:" + id + ":updates"
}

func (that *redisGameRepository) Create(ctx context.Context, game *document.Game) error {
	key := gameKey(game.ID)

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check game: %w", err)
		}

		if exists > 0 {
			return fmt.Errorf("%w: %s", apperror.ErrGameAlreadyExists, game.ID)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashValues(document.Encode(game)))
			return nil
		})

		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", apperror.ErrGameAlreadyExists, game.ID)
	}

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	return nil
}

func (that *redisGameRepository) GetByID(ctx context.Context, id string) (*document.Game, error) {
	return getGame(ctx, that.client, id)
}

func (that *redisGameRepository) Update(ctx context.Context, id string, version int64, fields document.Fields) error {
	key := gameKey(id)

	err := that.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, document.FieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
		}

		if err != nil {
			return fmt.Errorf("failed to read game version: %w", err)
		}

		if current != version {
			return fmt.Errorf("%w: game %s is at version %d, not %d", apperror.ErrVersionConflict, id, current, version)
		}

		values := hashValues(fields)
		values[document.FieldVersion] = current + 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			pipe.Publish(ctx, updatesChannel(id), current+1)
			return nil
		})

		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: game %s changed during update", apperror.ErrVersionConflict, id)
	}

	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	return nil
}

// Subscribe listens on the game's update channel before reading the first snapshot,
// so no update between the two is lost.
func (that *redisGameRepository) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	pubsub := that.client.Subscribe(ctx, updatesChannel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to game %s: %w", id, err)
	}

	initial, err := getGame(ctx, that.client, id)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	return newSubscription(ctx, func(ctx context.Context, sub *Subscription) {
		defer pubsub.Close()

		if !sub.send(ctx, Event{Game: initial}) {
			return
		}

		for {
			if _, err := pubsub.ReceiveMessage(ctx); err != nil {
				if ctx.Err() == nil {
					sub.send(ctx, Event{Err: fmt.Errorf("%w: %w", apperror.ErrSubscriptionLost, err)})
				}

				return
			}

			game, err := getGame(ctx, that.client, id)
			if err != nil {
				if ctx.Err() == nil {
					sub.send(ctx, Event{Err: fmt.Errorf("%w: %w", apperror.ErrSubscriptionLost, err)})
				}

				return
			}

			if !sub.send(ctx, Event{Game: game}) {
				return
			}
		}
	}), nil
}

func getGame(ctx context.Context, client redis.Cmdable, id string) (*document.Game, error) {
	fields, err := client.HGetAll(ctx, gameKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, id)
	}

	game, err := document.Decode(id, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %w", id, err)
	}

	return game, nil
}

func hashValues(fields document.Fields) map[string]any {
	values := make(map[string]any, len(fields))
	for key, value := range fields {
		values[key] = value
	}

	return values
}
