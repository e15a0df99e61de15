package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
)

// WinResult is the first winning line found on a board.
type WinResult struct {
	Winner entity.Mark `json:"winner"`
	Line   []Position  `json:"line"`
}

// axes in scan order: horizontal, vertical, diagonal down-right, diagonal down-left.
var axes = [4]Position{
	{Row: 0, Col: 1},
	{Row: 1, Col: 0},
	{Row: 1, Col: 1},
	{Row: 1, Col: -1},
}

// Evaluate scans the whole board for winCondition identical player marks in a straight line.
// Start cells are visited rows first, then columns, then axes; the first line found wins.
// A nil result means no winner; detecting a draw is up to the caller.
func Evaluate(board *Board, winCondition int) (*WinResult, error) {
	if board == nil {
		return nil, fmt.Errorf("%w: nil board", apperror.ErrInvalidInput)
	}

	if winCondition < MinWinCondition || winCondition > board.size {
		return nil, fmt.Errorf("%w: win condition %d on a %dx%d board", apperror.ErrInvalidInput, winCondition, board.size, board.size)
	}

	for row := range board.size {
		for col := range board.size {
			start := Position{Row: row, Col: col}

			mark := board.cells[board.index(start)]
			if !mark.IsPlayer() {
				continue
			}

			for _, step := range axes {
				if line := board.run(start, step, winCondition, mark); line != nil {
					return &WinResult{Winner: mark, Line: line}, nil
				}
			}
		}
	}

	return nil, nil //nolint: nilnil // no winner is not an error
}

// run returns the length cells from start along step when all of them hold mark.
func (that *Board) run(start, step Position, length int, mark entity.Mark) []Position {
	end := Position{Row: start.Row + step.Row*(length-1), Col: start.Col + step.Col*(length-1)}
	if !that.Contains(end) {
		return nil
	}

	line := make([]Position, 0, length)
	for i := range length {
		pos := Position{Row: start.Row + step.Row*i, Col: start.Col + step.Col*i}
		if that.cells[that.index(pos)] != mark {
			return nil
		}
		line = append(line, pos)
	}

	return line
}
