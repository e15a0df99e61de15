package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
	"github.com/rocketscienceinc/tictactoe-backend/internal/repository"
)

type mockGameRepo struct {
	mock.Mock
}

func (that *mockGameRepo) Create(ctx context.Context, game *document.Game) error {
	args := that.Called(ctx, game)

	return args.Error(0)
}

func (that *mockGameRepo) GetByID(ctx context.Context, id string) (*document.Game, error) {
	args := that.Called(ctx, id)
	game, _ := args.Get(0).(*document.Game)

	return game, args.Error(1)
}

func (that *mockGameRepo) Update(ctx context.Context, id string, version int64, fields document.Fields) error {
	args := that.Called(ctx, id, version, fields)

	return args.Error(0)
}

func (that *mockGameRepo) Subscribe(ctx context.Context, id string) (*repository.Subscription, error) {
	args := that.Called(ctx, id)
	sub, _ := args.Get(0).(*repository.Subscription)

	return sub, args.Error(1)
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (that *recordingNotifier) Notify(notification Notification) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.notifications = append(that.notifications, notification)
}

func (that *recordingNotifier) kinds() []NotificationKind {
	that.mu.Lock()
	defer that.mu.Unlock()

	kinds := make([]NotificationKind, 0, len(that.notifications))
	for _, notification := range that.notifications {
		kinds = append(kinds, notification.Kind)
	}

	return kinds
}
