package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
)

// Fields is a partial document: dotted field paths mapped to their stored string values.
type Fields map[string]string

const (
	FieldMode          = "mode"
	FieldStatus        = "status"
	FieldCurrentPlayer = "currentPlayer"
	FieldWinner        = "winner"
	FieldWinningCells  = "winningCells"
	FieldSize          = "size"
	FieldWinCondition  = "winCondition"
	FieldVersion       = "version"
	FieldCreatedAt     = "createdAt"
	FieldPlayerX       = "players.X"
	FieldPlayerO       = "players.O"
	FieldActiveBoard   = "activeBoard"

	prefixBoard     = "board."
	prefixBoards    = "boards."
	prefixMainBoard = "mainBoard."
)

var ErrMalformedDocument = errors.New("malformed game document")

// CellKey is the sparse key of a classic cell, "row_col".
func CellKey(pos tictactoe.Position) string {
	return strconv.Itoa(pos.Row) + "_" + strconv.Itoa(pos.Col)
}

func ParseCellKey(key string) (tictactoe.Position, error) {
	rowText, colText, ok := strings.Cut(key, "_")
	if !ok {
		return tictactoe.Position{}, fmt.Errorf("%w: cell key %q", ErrMalformedDocument, key)
	}

	row, err := strconv.Atoi(rowText)
	if err != nil {
		return tictactoe.Position{}, fmt.Errorf("%w: cell key %q", ErrMalformedDocument, key)
	}

	col, err := strconv.Atoi(colText)
	if err != nil {
		return tictactoe.Position{}, fmt.Errorf("%w: cell key %q", ErrMalformedDocument, key)
	}

	return tictactoe.Position{Row: row, Col: col}, nil
}

// BoardField is the dotted path of a classic cell.
func BoardField(pos tictactoe.Position) string {
	return prefixBoard + CellKey(pos)
}

// BoardsField is the dotted path of cell 0..8 inside ultimate sub-board 0..8.
func BoardsField(board, cell int) string {
	return prefixBoards + strconv.Itoa(board) + "." + strconv.Itoa(cell)
}

func MainBoardField(board int) string {
	return prefixMainBoard + strconv.Itoa(board)
}

// PlayerField is the dotted path of the slot held by role.
func PlayerField(role entity.Role) string {
	if role == entity.RoleO {
		return FieldPlayerO
	}

	return FieldPlayerX
}

// Encode flattens the whole document. The id is the store key and is not a field.
func Encode(game *Game) Fields {
	fields := Fields{
		FieldMode:          string(game.Mode),
		FieldStatus:        string(game.Status),
		FieldCurrentPlayer: string(game.CurrentPlayer),
		FieldWinner:        string(game.Winner),
		FieldWinningCells:  encodeCells(game.WinningCells),
		FieldVersion:       strconv.FormatInt(game.Version, 10),
		FieldCreatedAt:     game.CreatedAt.UTC().Format(time.RFC3339Nano),
		FieldPlayerX:       game.Players.X,
		FieldPlayerO:       game.Players.O,
	}

	switch game.Mode {
	case entity.ModeUltimate:
		fields[FieldActiveBoard] = encodeActiveBoard(game.ActiveBoard)
		for board, cells := range game.Boards {
			for cell, mark := range cells {
				if mark != entity.MarkNone {
					fields[BoardsField(board, cell)] = string(mark)
				}
			}
		}
		for board, mark := range game.MainBoard {
			if mark != entity.MarkNone {
				fields[MainBoardField(board)] = string(mark)
			}
		}
	default:
		fields[FieldSize] = strconv.Itoa(game.Size)
		fields[FieldWinCondition] = strconv.Itoa(game.WinCondition)
		for key, mark := range game.Board {
			if mark != entity.MarkNone {
				fields[prefixBoard+key] = string(mark)
			}
		}
	}

	return fields
}

// Decode rebuilds a document from its flat fields.
func Decode(id string, fields map[string]string) (*Game, error) {
	mode, err := entity.ParseMode(fields[FieldMode])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	game := &Game{ID: id, Mode: mode}
	if mode == entity.ModeClassic {
		game.Board = map[string]entity.Mark{}
	} else {
		game.Boards = map[int]map[int]entity.Mark{}
	}

	for key, value := range fields {
		if err = game.decodeField(key, value); err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrMalformedDocument, key, err)
		}
	}

	return game, nil
}

func (that *Game) decodeField(key, value string) error {
	var err error

	switch {
	case key == FieldMode:
	case key == FieldStatus:
		that.Status, err = entity.ParseStatus(value)
	case key == FieldCurrentPlayer:
		that.CurrentPlayer, err = entity.ParseMark(value)
	case key == FieldWinner:
		that.Winner, err = entity.ParseMark(value)
	case key == FieldWinningCells:
		that.WinningCells, err = decodeCells(value)
	case key == FieldVersion:
		that.Version, err = strconv.ParseInt(value, 10, 64)
	case key == FieldCreatedAt:
		that.CreatedAt, err = time.Parse(time.RFC3339Nano, value)
	case key == FieldPlayerX:
		that.Players.X = value
	case key == FieldPlayerO:
		that.Players.O = value
	case key == FieldSize:
		that.Size, err = strconv.Atoi(value)
	case key == FieldWinCondition:
		that.WinCondition, err = strconv.Atoi(value)
	case key == FieldActiveBoard:
		that.ActiveBoard, err = decodeActiveBoard(value)
	case strings.HasPrefix(key, prefixBoard):
		err = that.decodeBoardCell(strings.TrimPrefix(key, prefixBoard), value)
	case strings.HasPrefix(key, prefixBoards):
		err = that.decodeBoardsCell(strings.TrimPrefix(key, prefixBoards), value)
	case strings.HasPrefix(key, prefixMainBoard):
		err = that.decodeMainBoard(strings.TrimPrefix(key, prefixMainBoard), value)
	default:
		// unknown fields are left for newer readers
	}

	return err
}

func (that *Game) decodeBoardCell(key, value string) error {
	if that.Mode != entity.ModeClassic {
		return errors.New("board cell in an ultimate game")
	}

	pos, err := ParseCellKey(key)
	if err != nil {
		return err
	}

	mark, err := entity.ParseMark(value)
	if err != nil {
		return err
	}

	if mark != entity.MarkNone {
		that.Board[CellKey(pos)] = mark
	}

	return nil
}

func (that *Game) decodeBoardsCell(key, value string) error {
	if that.Mode != entity.ModeUltimate {
		return errors.New("sub-board cell in a classic game")
	}

	boardText, cellText, ok := strings.Cut(key, ".")
	if !ok {
		return errors.New("expected boards.<board>.<cell>")
	}

	board, err := ultimateIndex(boardText)
	if err != nil {
		return err
	}

	cell, err := ultimateIndex(cellText)
	if err != nil {
		return err
	}

	mark, err := entity.ParseMark(value)
	if err != nil {
		return err
	}

	if mark == entity.MarkNone {
		return nil
	}

	if that.Boards[board] == nil {
		that.Boards[board] = map[int]entity.Mark{}
	}
	that.Boards[board][cell] = mark

	return nil
}

func (that *Game) decodeMainBoard(key, value string) error {
	board, err := ultimateIndex(key)
	if err != nil {
		return err
	}

	that.MainBoard[board], err = entity.ParseMark(value)

	return err
}

func ultimateIndex(text string) (int, error) {
	index, err := strconv.Atoi(text)
	if err != nil {
		return 0, err
	}

	if index < 0 || index >= tictactoe.UltimateBoards {
		return 0, fmt.Errorf("index %d is out of range", index)
	}

	return index, nil
}

func encodeCells(cells []tictactoe.Position) string {
	// [][2]int always marshals
	data, _ := json.Marshal(cellPairs(cells))

	return string(data)
}

func decodeCells(value string) ([]tictactoe.Position, error) {
	if value == "" {
		return nil, nil //nolint: nilnil
	}

	var pairs [][2]int
	if err := json.Unmarshal([]byte(value), &pairs); err != nil {
		return nil, err
	}

	return cellPositions(pairs), nil
}

func encodeActiveBoard(active *int) string {
	if active == nil {
		return ""
	}

	return strconv.Itoa(*active)
}

func decodeActiveBoard(value string) (*int, error) {
	if value == "" {
		return nil, nil //nolint: nilnil
	}

	board, err := ultimateIndex(value)
	if err != nil {
		return nil, err
	}

	return &board, nil
}
