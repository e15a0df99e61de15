package tictactoe

import (
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
)

// Snapshot is a game state whose Play returns a new state instead of mutating the receiver.
type Snapshot[S any] interface {
	Play(move Move) (S, error)
}

// Machine drives a local game: one device, shared turn, undo and redo.
// States handed out by Machine must be treated as read-only.
type Machine[S Snapshot[S]] struct {
	initial S
	current S
	undo    []S
	redo    []S
}

func NewMachine[S Snapshot[S]](initial S) *Machine[S] {
	return &Machine[S]{
		initial: initial,
		current: initial,
	}
}

// NewClassicGame starts a local classic game with the given settings.
func NewClassicGame(settings Settings) (*Machine[*ClassicState], error) {
	state, err := NewClassicState(settings, entity.StatusPlaying)
	if err != nil {
		return nil, err
	}

	return NewMachine(state), nil
}

// NewUltimateGame starts a local ultimate game.
func NewUltimateGame() *Machine[*UltimateState] {
	return NewMachine(NewUltimateState(entity.StatusPlaying))
}

// Apply plays move on the current state. A rejected move changes nothing.
func (that *Machine[S]) Apply(move Move) error {
	next, err := that.current.Play(move)
	if err != nil {
		return err
	}

	that.undo = append(that.undo, that.current)
	that.redo = nil
	that.current = next

	return nil
}

// Undo steps back one move and reports whether it did.
func (that *Machine[S]) Undo() bool {
	if len(that.undo) == 0 {
		return false
	}

	last := len(that.undo) - 1
	that.redo = append(that.redo, that.current)
	that.current = that.undo[last]
	that.undo = that.undo[:last]

	return true
}

// Redo replays one undone move and reports whether it did.
func (that *Machine[S]) Redo() bool {
	if len(that.redo) == 0 {
		return false
	}

	last := len(that.redo) - 1
	that.undo = append(that.undo, that.current)
	that.current = that.redo[last]
	that.redo = that.redo[:last]

	return true
}

// Reset returns to the initial state and drops the history.
func (that *Machine[S]) Reset() {
	that.current = that.initial
	that.undo = nil
	that.redo = nil
}

func (that *Machine[S]) State() S {
	return that.current
}

func (that *Machine[S]) CanUndo() bool {
	return len(that.undo) > 0
}

func (that *Machine[S]) CanRedo() bool {
	return len(that.redo) > 0
}
