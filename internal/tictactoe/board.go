package tictactoe

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
)

const (
	MinBoardSize    = 3
	MinWinCondition = 3
)

var (
	ErrInvalidBoardSize = fmt.Errorf("board size must be at least %d: %w", MinBoardSize, apperror.ErrInvalidInput)
	ErrInvalidCell      = fmt.Errorf("cell is out of the board: %w", apperror.ErrInvalidInput)
	ErrInvalidMark      = fmt.Errorf("only X and O can be placed: %w", apperror.ErrInvalidInput)
	ErrCellOccupied     = fmt.Errorf("cell is already occupied: %w", apperror.ErrIllegalMove)
)

// Position addresses a cell by 0-indexed row and column.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Board is a dense size x size grid of marks stored row-major.
type Board struct {
	size  int
	cells []entity.Mark
}

func NewBoard(size int) (*Board, error) {
	if size < MinBoardSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBoardSize, size)
	}

	return &Board{
		size:  size,
		cells: make([]entity.Mark, size*size),
	}, nil
}

// boardFromMarks builds a board from row-major marks, Draw included. Used for the meta-board.
func boardFromMarks(size int, marks []entity.Mark) (*Board, error) {
	board, err := NewBoard(size)
	if err != nil {
		return nil, err
	}

	if len(marks) != len(board.cells) {
		return nil, fmt.Errorf("%w: %d marks for a %dx%d board", apperror.ErrInvalidInput, len(marks), size, size)
	}

	copy(board.cells, marks)

	return board, nil
}

func (that *Board) Size() int {
	return that.size
}

func (that *Board) Contains(pos Position) bool {
	return pos.Row >= 0 && pos.Row < that.size && pos.Col >= 0 && pos.Col < that.size
}

func (that *Board) Get(pos Position) (entity.Mark, error) {
	if !that.Contains(pos) {
		return entity.MarkNone, fmt.Errorf("%w: (%d, %d) on %dx%d", ErrInvalidCell, pos.Row, pos.Col, that.size, that.size)
	}

	return that.cells[that.index(pos)], nil
}

// Place puts a player's mark into an empty cell.
func (that *Board) Place(pos Position, mark entity.Mark) error {
	if !mark.IsPlayer() {
		return fmt.Errorf("%w: %q", ErrInvalidMark, mark)
	}

	current, err := that.Get(pos)
	if err != nil {
		return err
	}

	if current != entity.MarkNone {
		return fmt.Errorf("%w: (%d, %d)", ErrCellOccupied, pos.Row, pos.Col)
	}

	that.cells[that.index(pos)] = mark

	return nil
}

func (that *Board) IsFull() bool {
	for _, cell := range that.cells {
		if cell == entity.MarkNone {
			return false
		}
	}

	return true
}

// Marks returns a row-major copy of the cells.
func (that *Board) Marks() []entity.Mark {
	marks := make([]entity.Mark, len(that.cells))
	copy(marks, that.cells)

	return marks
}

func (that *Board) Clone() *Board {
	return &Board{
		size:  that.size,
		cells: that.Marks(),
	}
}

func (that *Board) Equal(other *Board) bool {
	if that == nil || other == nil {
		return that == other
	}

	if that.size != other.size {
		return false
	}

	for i := range that.cells {
		if that.cells[i] != other.cells[i] {
			return false
		}
	}

	return true
}

func (that *Board) String() string {
	var builder strings.Builder

	for row := range that.size {
		for col := range that.size {
			mark := that.cells[row*that.size+col]
			if mark == entity.MarkNone {
				mark = " "
			}
			fmt.Fprintf(&builder, "[%s]", mark)
		}
		builder.WriteByte('\n')
	}

	return builder.String()
}

func (that *Board) index(pos Position) int {
	return pos.Row*that.size + pos.Col
}
