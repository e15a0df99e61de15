package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
)

var (
	ErrGameFinished     = fmt.Errorf("game is already finished: %w", apperror.ErrIllegalMove)
	ErrGameIsNotStarted = fmt.Errorf("game is not started: %w", apperror.ErrIllegalMove)
	ErrInvalidSettings  = fmt.Errorf("invalid game settings: %w", apperror.ErrInvalidInput)
	ErrNoPlayerToMove   = fmt.Errorf("no player to move: %w", apperror.ErrInvalidInput)
)

// Settings are the rules of a classic game. They do not change once the game starts.
type Settings struct {
	GridSize     int `json:"gridSize"`
	WinCondition int `json:"winCondition"`
}

func NewSettings(gridSize, winCondition int) (Settings, error) {
	settings := Settings{GridSize: gridSize, WinCondition: winCondition}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func (that Settings) Validate() error {
	if that.GridSize < MinBoardSize {
		return fmt.Errorf("%w: grid size %d is below %d", ErrInvalidSettings, that.GridSize, MinBoardSize)
	}

	if that.WinCondition < MinWinCondition || that.WinCondition > that.GridSize {
		return fmt.Errorf("%w: win condition %d must be between %d and %d", ErrInvalidSettings, that.WinCondition, MinWinCondition, that.GridSize)
	}

	return nil
}

// Move is a click intent. Classic games use Row and Col; ultimate games also use Board.
type Move struct {
	Board int `json:"board"`
	Row   int `json:"row"`
	Col   int `json:"col"`
}

func ClassicMove(row, col int) Move {
	return Move{Row: row, Col: col}
}

// UltimateMove addresses cell 0..8 of sub-board 0..8, both row-major.
func UltimateMove(board, cell int) Move {
	return Move{Board: board, Row: cell / SubBoardSize, Col: cell % SubBoardSize}
}

func (that Move) Position() Position {
	return Position{Row: that.Row, Col: that.Col}
}

// Cell is the row-major index of the move inside a 3x3 sub-board.
func (that Move) Cell() int {
	return that.Row*SubBoardSize + that.Col
}

// ClassicState is one immutable snapshot of a classic game.
type ClassicState struct {
	Settings      Settings
	Board         *Board
	CurrentPlayer entity.Mark
	Winner        entity.Mark
	WinningCells  []Position
	Status        entity.Status
}

func NewClassicState(settings Settings, status entity.Status) (*ClassicState, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	board, err := NewBoard(settings.GridSize)
	if err != nil {
		return nil, err
	}

	return &ClassicState{
		Settings:      settings,
		Board:         board,
		CurrentPlayer: entity.MarkX,
		Status:        status,
	}, nil
}

// Play returns the state after the current player marks move. The receiver is left untouched.
func (that *ClassicState) Play(move Move) (*ClassicState, error) {
	pos := move.Position()
	if err := that.validateMove(pos); err != nil {
		return nil, fmt.Errorf("invalid turn: %w", err)
	}

	next := that.Clone()
	if err := next.Board.Place(pos, next.CurrentPlayer); err != nil {
		return nil, fmt.Errorf("invalid turn: %w", err)
	}

	if err := next.updateGameStatus(); err != nil {
		return nil, err
	}

	next.CurrentPlayer = next.CurrentPlayer.Opponent()

	return next, nil
}

func (that *ClassicState) IsFinished() bool {
	return that.Status.IsFinished()
}

// IsDraw reports a finished game without a winner.
func (that *ClassicState) IsDraw() bool {
	return that.Status.IsFinished() && that.Winner == entity.MarkNone
}

func (that *ClassicState) Clone() *ClassicState {
	clone := *that
	clone.Board = that.Board.Clone()
	clone.WinningCells = append([]Position(nil), that.WinningCells...)

	return &clone
}

// validateMove - checks if the move is valid.
func (that *ClassicState) validateMove(pos Position) error {
	if !that.Board.Contains(pos) {
		return fmt.Errorf("%w: (%d, %d)", ErrInvalidCell, pos.Row, pos.Col)
	}

	if !that.CurrentPlayer.IsPlayer() {
		return fmt.Errorf("%w: %q", ErrNoPlayerToMove, that.CurrentPlayer)
	}

	return confirmPlaying(that.Status)
}

// updateGameStatus - checks the game status after a move.
func (that *ClassicState) updateGameStatus() error {
	result, err := Evaluate(that.Board, that.Settings.WinCondition)
	if err != nil {
		return fmt.Errorf("failed to evaluate board: %w", err)
	}

	switch {
	case result != nil:
		that.Winner = result.Winner
		that.WinningCells = result.Line
		that.Status = entity.StatusFinished
	case that.Board.IsFull():
		that.Status = entity.StatusFinished
	default:
		that.Status = entity.StatusPlaying
	}

	return nil
}

func confirmPlaying(status entity.Status) error {
	switch {
	case status.IsWaiting():
		return ErrGameIsNotStarted
	case status.IsFinished():
		return ErrGameFinished
	case status.IsPlaying():
		return nil
	default:
		return fmt.Errorf("%w: %q", entity.ErrUnknownStatus, status)
	}
}
