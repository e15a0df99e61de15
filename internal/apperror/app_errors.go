package apperror

import "errors"

// Local validation: a rejected move leaves the state untouched and is ignored by the UI.
var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrInvalidInput = errors.New("invalid input")
)

// Store and synchronization conditions, surfaced to the UI as notifications.
var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameAlreadyExists = errors.New("game already exists")
	ErrJoinFailed        = errors.New("failed to join game")
	ErrMoveUpdateFailed  = errors.New("failed to publish move")
	ErrSubscriptionLost  = errors.New("game subscription lost")
	ErrVersionConflict   = errors.New("game document has moved on")
)
