package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
)

const (
	SubBoardSize   = 3
	UltimateBoards = SubBoardSize * SubBoardSize
	// FreeChoice as ActiveBoard lets the player pick any unresolved sub-board.
	FreeChoice = -1
)

var (
	ErrInvalidBoard   = fmt.Errorf("sub-board index is out of range: %w", apperror.ErrInvalidInput)
	ErrInactiveBoard  = fmt.Errorf("sub-board is not the active one: %w", apperror.ErrIllegalMove)
	ErrBoardResolved  = fmt.Errorf("sub-board is already decided: %w", apperror.ErrIllegalMove)
	ErrInvalidSubSize = fmt.Errorf("sub-board must be 3x3: %w", apperror.ErrInvalidInput)
)

// UltimateState is one immutable snapshot of an ultimate game.
type UltimateState struct {
	SubBoards     [UltimateBoards]*Board
	MainBoard     [UltimateBoards]entity.Mark
	ActiveBoard   int
	CurrentPlayer entity.Mark
	Winner        entity.Mark
	// WinningCells is the winning line on the meta-board.
	WinningCells []Position
	Status       entity.Status
}

func NewUltimateState(status entity.Status) *UltimateState {
	state := &UltimateState{
		ActiveBoard:   FreeChoice,
		CurrentPlayer: entity.MarkX,
		Status:        status,
	}

	for i := range state.SubBoards {
		state.SubBoards[i] = &Board{size: SubBoardSize, cells: make([]entity.Mark, UltimateBoards)}
	}

	return state
}

// EvaluateSubBoard returns the winner of a 3x3 sub-board, Draw when it is full, or None.
func EvaluateSubBoard(sub *Board) (entity.Mark, error) {
	if sub == nil || sub.size != SubBoardSize {
		return entity.MarkNone, ErrInvalidSubSize
	}

	result, err := Evaluate(sub, SubBoardSize)
	if err != nil {
		return entity.MarkNone, err
	}

	switch {
	case result != nil:
		return result.Winner, nil
	case sub.IsFull():
		return entity.MarkDraw, nil
	default:
		return entity.MarkNone, nil
	}
}

// EvaluateMeta looks for three sub-board wins in a line. Drawn sub-boards never join a line.
func EvaluateMeta(mainBoard [UltimateBoards]entity.Mark) (*WinResult, error) {
	meta, err := boardFromMarks(SubBoardSize, mainBoard[:])
	if err != nil {
		return nil, err
	}

	return Evaluate(meta, SubBoardSize)
}

// NextActiveBoard sends the opponent to the sub-board matching the played cell,
// or frees the choice when that sub-board is already decided.
func NextActiveBoard(mainBoard [UltimateBoards]entity.Mark, cell int) int {
	if cell < 0 || cell >= UltimateBoards || mainBoard[cell] != entity.MarkNone {
		return FreeChoice
	}

	return cell
}

// Play returns the state after the current player marks move. The receiver is left untouched.
func (that *UltimateState) Play(move Move) (*UltimateState, error) {
	if err := that.validateMove(move); err != nil {
		return nil, fmt.Errorf("invalid turn: %w", err)
	}

	next := that.Clone()
	sub := next.SubBoards[move.Board]
	if err := sub.Place(move.Position(), next.CurrentPlayer); err != nil {
		return nil, fmt.Errorf("invalid turn: %w", err)
	}

	outcome, err := EvaluateSubBoard(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate sub-board %d: %w", move.Board, err)
	}
	next.MainBoard[move.Board] = outcome

	if err = next.updateGameStatus(); err != nil {
		return nil, err
	}

	next.ActiveBoard = NextActiveBoard(next.MainBoard, move.Cell())
	next.CurrentPlayer = next.CurrentPlayer.Opponent()

	return next, nil
}

func (that *UltimateState) IsFinished() bool {
	return that.Status.IsFinished()
}

func (that *UltimateState) IsDraw() bool {
	return that.Status.IsFinished() && that.Winner == entity.MarkNone
}

// Playable reports whether a move may target sub-board index.
func (that *UltimateState) Playable(index int) bool {
	if index < 0 || index >= UltimateBoards || that.MainBoard[index] != entity.MarkNone {
		return false
	}

	return that.ActiveBoard == FreeChoice || that.ActiveBoard == index
}

func (that *UltimateState) Clone() *UltimateState {
	clone := *that
	for i, sub := range that.SubBoards {
		clone.SubBoards[i] = sub.Clone()
	}
	clone.WinningCells = append([]Position(nil), that.WinningCells...)

	return &clone
}

func (that *UltimateState) validateMove(move Move) error {
	if move.Board < 0 || move.Board >= UltimateBoards {
		return fmt.Errorf("%w: %d", ErrInvalidBoard, move.Board)
	}

	if !that.SubBoards[move.Board].Contains(move.Position()) {
		return fmt.Errorf("%w: (%d, %d)", ErrInvalidCell, move.Row, move.Col)
	}

	if !that.CurrentPlayer.IsPlayer() {
		return fmt.Errorf("%w: %q", ErrNoPlayerToMove, that.CurrentPlayer)
	}

	if err := confirmPlaying(that.Status); err != nil {
		return err
	}

	if that.MainBoard[move.Board] != entity.MarkNone {
		return fmt.Errorf("%w: board %d is %q", ErrBoardResolved, move.Board, that.MainBoard[move.Board])
	}

	if that.ActiveBoard != FreeChoice && that.ActiveBoard != move.Board {
		return fmt.Errorf("%w: must play in board %d", ErrInactiveBoard, that.ActiveBoard)
	}

	return nil
}

func (that *UltimateState) updateGameStatus() error {
	result, err := EvaluateMeta(that.MainBoard)
	if err != nil {
		return fmt.Errorf("failed to evaluate main board: %w", err)
	}

	switch {
	case result != nil:
		that.Winner = result.Winner
		that.WinningCells = result.Line
		that.Status = entity.StatusFinished
	case that.mainBoardFull():
		that.Status = entity.StatusFinished
	default:
		that.Status = entity.StatusPlaying
	}

	return nil
}

func (that *UltimateState) mainBoardFull() bool {
	for _, outcome := range that.MainBoard {
		if outcome == entity.MarkNone {
			return false
		}
	}

	return true
}
