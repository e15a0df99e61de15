package entity

import (
	"errors"
	"fmt"
)

// Mark is the content of a cell, or the resolved outcome of a board.
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "X"
	MarkO    Mark = "O"
	// MarkDraw is only an outcome of a sub-board or meta-board, never a playable mark.
	MarkDraw Mark = "D"
)

// Status is the lifecycle stage of a game.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Mode selects the rule set of a game.
type Mode string

const (
	ModeClassic  Mode = "classic"
	ModeUltimate Mode = "ultimate"
)

var (
	ErrUnknownMark   = errors.New("unknown mark")
	ErrUnknownStatus = errors.New("unknown game status")
	ErrUnknownMode   = errors.New("unknown game mode")
)

// IsPlayer reports whether the mark can be placed by a player.
func (that Mark) IsPlayer() bool {
	return that == MarkX || that == MarkO
}

// Opponent returns the other player's mark. Non-player marks have no opponent.
func (that Mark) Opponent() Mark {
	switch that {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkNone
	}
}

func ParseMark(value string) (Mark, error) {
	switch mark := Mark(value); mark {
	case MarkNone, MarkX, MarkO, MarkDraw:
		return mark, nil
	default:
		return MarkNone, fmt.Errorf("%w: %q", ErrUnknownMark, value)
	}
}

func (that Status) IsWaiting() bool {
	return that == StatusWaiting
}

func (that Status) IsPlaying() bool {
	return that == StatusPlaying
}

func (that Status) IsFinished() bool {
	return that == StatusFinished
}

func ParseStatus(value string) (Status, error) {
	switch status := Status(value); status {
	case StatusWaiting, StatusPlaying, StatusFinished:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
}

func ParseMode(value string) (Mode, error) {
	switch mode := Mode(value); mode {
	case ModeClassic, ModeUltimate:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, value)
	}
}
