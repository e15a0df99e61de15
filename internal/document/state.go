package document

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/rocketscienceinc/tictactoe-backend/internal/entity"
	"github.com/rocketscienceinc/tictactoe-backend/internal/tictactoe"
)

// ClassicState expands a classic document into the dense engine state.
func (that *Game) ClassicState() (*tictactoe.ClassicState, error) {
	if that.Mode != entity.ModeClassic {
		return nil, fmt.Errorf("%w: game %s is %s", ErrMalformedDocument, that.ID, that.Mode)
	}

	settings, err := tictactoe.NewSettings(that.Size, that.WinCondition)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings of game %s: %w", that.ID, err)
	}

	state, err := tictactoe.NewClassicState(settings, that.Status)
	if err != nil {
		return nil, err
	}

	for key, mark := range that.Board {
		pos, err := ParseCellKey(key)
		if err != nil {
			return nil, err
		}

		if err = state.Board.Place(pos, mark); err != nil {
			return nil, fmt.Errorf("failed to restore cell %s of game %s: %w", key, that.ID, err)
		}
	}

	state.CurrentPlayer = that.CurrentPlayer
	state.Winner = that.Winner
	state.WinningCells = slices.Clone(that.WinningCells)

	return state, nil
}

// UltimateState expands an ultimate document into the dense engine state.
func (that *Game) UltimateState() (*tictactoe.UltimateState, error) {
	if that.Mode != entity.ModeUltimate {
		return nil, fmt.Errorf("%w: game %s is %s", ErrMalformedDocument, that.ID, that.Mode)
	}

	state := tictactoe.NewUltimateState(that.Status)
	for board, cells := range that.Boards {
		for cell, mark := range cells {
			if err := state.SubBoards[board].Place(tictactoe.UltimateMove(board, cell).Position(), mark); err != nil {
				return nil, fmt.Errorf("failed to restore cell %d of sub-board %d in game %s: %w", cell, board, that.ID, err)
			}
		}
	}

	state.MainBoard = that.MainBoard
	if that.ActiveBoard != nil {
		state.ActiveBoard = *that.ActiveBoard
	}
	state.CurrentPlayer = that.CurrentPlayer
	state.Winner = that.Winner
	state.WinningCells = slices.Clone(that.WinningCells)

	return state, nil
}

// ClassicMoveFields lists the fields that change when move turns prev into next.
func ClassicMoveFields(prev, next *tictactoe.ClassicState, move tictactoe.Move) Fields {
	fields := Fields{
		BoardField(move.Position()): string(prev.CurrentPlayer),
		FieldCurrentPlayer:          string(next.CurrentPlayer),
	}
	outcomeFields(fields, prev.Winner, next.Winner, prev.WinningCells, next.WinningCells, prev.Status, next.Status)

	return fields
}

// UltimateMoveFields lists the fields that change when move turns prev into next.
func UltimateMoveFields(prev, next *tictactoe.UltimateState, move tictactoe.Move) Fields {
	fields := Fields{
		BoardsField(move.Board, move.Cell()): string(prev.CurrentPlayer),
		FieldCurrentPlayer:                   string(next.CurrentPlayer),
	}

	if prev.MainBoard[move.Board] != next.MainBoard[move.Board] {
		fields[MainBoardField(move.Board)] = string(next.MainBoard[move.Board])
	}

	if prev.ActiveBoard != next.ActiveBoard {
		fields[FieldActiveBoard] = activeBoardValue(next.ActiveBoard)
	}
	outcomeFields(fields, prev.Winner, next.Winner, prev.WinningCells, next.WinningCells, prev.Status, next.Status)

	return fields
}

// ClaimFields claims role for identity; the game starts once both slots are taken.
func ClaimFields(players entity.Players, role entity.Role, identity string) Fields {
	fields := Fields{PlayerField(role): identity}

	switch role {
	case entity.RoleX:
		players.X = identity
	case entity.RoleO:
		players.O = identity
	}

	if players.Full() {
		fields[FieldStatus] = string(entity.StatusPlaying)
	}

	return fields
}

func outcomeFields(
	fields Fields,
	prevWinner, nextWinner entity.Mark,
	prevCells, nextCells []tictactoe.Position,
	prevStatus, nextStatus entity.Status,
) {
	if prevWinner != nextWinner {
		fields[FieldWinner] = string(nextWinner)
	}

	if !slices.Equal(prevCells, nextCells) {
		fields[FieldWinningCells] = encodeCells(nextCells)
	}

	if prevStatus != nextStatus {
		fields[FieldStatus] = string(nextStatus)
	}
}

func activeBoardValue(active int) string {
	if active == tictactoe.FreeChoice {
		return ""
	}

	return strconv.Itoa(active)
}

// FromClassicState builds the sparse document view of a local classic state.
func FromClassicState(id string, state *tictactoe.ClassicState) *Game {
	game := NewClassic(id, state.Settings, time.Time{})
	game.Status = state.Status
	game.CurrentPlayer = state.CurrentPlayer
	game.Winner = state.Winner
	game.WinningCells = slices.Clone(state.WinningCells)

	size := state.Board.Size()
	for i, mark := range state.Board.Marks() {
		if mark != entity.MarkNone {
			game.Board[CellKey(tictactoe.Position{Row: i / size, Col: i % size})] = mark
		}
	}

	return game
}

// FromUltimateState builds the sparse document view of a local ultimate state.
func FromUltimateState(id string, state *tictactoe.UltimateState) *Game {
	game := NewUltimate(id, time.Time{})
	game.Status = state.Status
	game.CurrentPlayer = state.CurrentPlayer
	game.Winner = state.Winner
	game.WinningCells = slices.Clone(state.WinningCells)
	game.MainBoard = state.MainBoard

	if state.ActiveBoard != tictactoe.FreeChoice {
		active := state.ActiveBoard
		game.ActiveBoard = &active
	}

	for board, sub := range state.SubBoards {
		for cell, mark := range sub.Marks() {
			if mark == entity.MarkNone {
				continue
			}

			if game.Boards[board] == nil {
				game.Boards[board] = map[int]entity.Mark{}
			}
			game.Boards[board][cell] = mark
		}
	}

	return game
}
