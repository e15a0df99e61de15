// Package document translates between the dense engine state and the sparse game document kept in
// the realtime store.
package document

import (
	"encoding/json"
	"time"

	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
)

// Game is the authoritative game document. Classic games use Size, WinCondition and Board;
// ultimate games use Boards, MainBoard and ActiveBoard.
type Game struct {
	ID            string
	Mode          entity.Mode
	Status        entity.Status
	CurrentPlayer entity.Mark
	Winner        entity.Mark
	WinningCells  []tictactoe.Position
	Players       entity.Players
	Version       int64
	CreatedAt     time.Time

	Size         int
	WinCondition int
	// Board holds classic marks keyed by "row_col". Empty cells are absent.
	Board map[string]entity.Mark

	Boards      map[int]map[int]entity.Mark
	MainBoard   [tictactoe.UltimateBoards]entity.Mark
	ActiveBoard *int
}

// NewClassic returns a classic game waiting for its players.
func NewClassic(id string, settings tictactoe.Settings, createdAt time.Time) *Game {
	return &Game{
		ID:            id,
		Mode:          entity.ModeClassic,
		Status:        entity.StatusWaiting,
		CurrentPlayer: entity.MarkX,
		CreatedAt:     createdAt,
		Size:          settings.GridSize,
		WinCondition:  settings.WinCondition,
		Board:         map[string]entity.Mark{},
	}
}

// NewUltimate returns an ultimate game waiting for its players.
func NewUltimate(id string, createdAt time.Time) *Game {
	return &Game{
		ID:            id,
		Mode:          entity.ModeUltimate,
		Status:        entity.StatusWaiting,
		CurrentPlayer: entity.MarkX,
		CreatedAt:     createdAt,
		Boards:        map[int]map[int]entity.Mark{},
	}
}

// Apply returns a copy of the game with fields merged in. The version is left as it was.
func (that *Game) Apply(fields Fields) (*Game, error) {
	merged := Encode(that)
	for key, value := range fields {
		merged[key] = value
	}

	return Decode(that.ID, merged)
}

type players struct {
	X *string `json:"X"`
	O *string `json:"O"`
}

type view struct {
	ID            string                         `json:"id"`
	Mode          entity.Mode                    `json:"mode"`
	Status        entity.Status                  `json:"status"`
	CurrentPlayer entity.Mark                    `json:"currentPlayer"`
	Winner        *entity.Mark                   `json:"winner"`
	WinningCells  [][2]int                       `json:"winningCells"`
	Players       players                        `json:"players"`
	Version       int64                          `json:"version"`
	CreatedAt     time.Time                      `json:"createdAt"`
	Size          int                            `json:"size,omitempty"`
	WinCondition  int                            `json:"winCondition,omitempty"`
	Board         *map[string]entity.Mark        `json:"board,omitempty"`
	Boards        *map[int]map[int]entity.Mark   `json:"boards,omitempty"`
	MainBoard     *[tictactoe.UltimateBoards]any `json:"mainBoard,omitempty"`
	ActiveBoard   *int                           `json:"activeBoard"`
}

// MarshalJSON renders the document the way clients read it: empty marks and slots are null.
func (that *Game) MarshalJSON() ([]byte, error) {
	out := view{
		ID:            that.ID,
		Mode:          that.Mode,
		Status:        that.Status,
		CurrentPlayer: that.CurrentPlayer,
		Winner:        nullableMark(that.Winner),
		WinningCells:  cellPairs(that.WinningCells),
		Players: players{
			X: nullableString(that.Players.X),
			O: nullableString(that.Players.O),
		},
		Version:     that.Version,
		CreatedAt:   that.CreatedAt,
		ActiveBoard: that.ActiveBoard,
	}

	switch that.Mode {
	case entity.ModeUltimate:
		boards := that.Boards
		if boards == nil {
			boards = map[int]map[int]entity.Mark{}
		}
		out.Boards = &boards

		var mainBoard [tictactoe.UltimateBoards]any
		for i, mark := range that.MainBoard {
			if mark != entity.MarkNone {
				mainBoard[i] = mark
			}
		}
		out.MainBoard = &mainBoard
	default:
		out.Size = that.Size
		out.WinCondition = that.WinCondition
		board := that.Board
		if board == nil {
			board = map[string]entity.Mark{}
		}
		out.Board = &board
	}

	return json.Marshal(out)
}

func nullableMark(mark entity.Mark) *entity.Mark {
	if mark == entity.MarkNone {
		return nil
	}

	return &mark
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}

func cellPairs(cells []tictactoe.Position) [][2]int {
	pairs := make([][2]int, 0, len(cells))
	for _, cell := range cells {
		pairs = append(pairs, [2]int{cell.Row, cell.Col})
	}

	return pairs
}

func cellPositions(pairs [][2]int) []tictactoe.Position {
	if len(pairs) == 0 {
		return nil
	}

	cells := make([]tictactoe.Position, 0, len(pairs))
	for _, pair := range pairs {
		cells = append(cells, tictactoe.Position{Row: pair[0], Col: pair[1]})
	}

	return cells
}
