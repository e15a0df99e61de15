package usecase

import (
	"log/slog"
)

// NotificationKind names a condition the player should be told about.
type NotificationKind string

const (
	NotifyGameNotFound     NotificationKind = "game_not_found"
	NotifyJoinFailed       NotificationKind = "join_failed"
	NotifyMoveUpdateFailed NotificationKind = "move_update_failed"
	NotifySubscriptionLost NotificationKind = "subscription_lost"
)

type Notification struct {
	Kind   NotificationKind
	GameID string
	Err    error
}

// Notifier receives the non-fatal failures of a SyncCoordinator. Notify must not block for long.
type Notifier interface {
	Notify(notification Notification)
}

type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier reports notifications to the log only.
func NewLogNotifier(logger *slog.Logger) Notifier {
	return &logNotifier{logger: logger.With("component", "notifier")}
}

func (that *logNotifier) Notify(notification Notification) {
	that.logger.Warn("game notification",
		"kind", notification.Kind,
		"game_id", notification.GameID,
		"error", notification.Err,
	)
}
