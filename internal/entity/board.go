package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	PlayerX    = "X"
	PlayerO    = "O"
	ResultDraw = "DRAW"

	EmptyCell = ""

	BoardSize = 9
)

var (
	ErrInvalidBoard = errors.New("invalid board")

	WinCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Board holds the nine cells in row-major order. Empty cells are encoded as JSON null.
type Board [BoardSize]string

// Evaluate - returns PlayerX or PlayerO for a completed line, ResultDraw for a full board and "" while the game goes on.
func Evaluate(board Board) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	// the game will continue until all the squares are full
	for _, cell := range board {
		if cell == EmptyCell {
			return ""
		}
	}

	return ResultDraw
}

func (that Board) MarshalJSON() ([]byte, error) {
	cells := make([]*string, len(that))
	for i := range that {
		if that[i] != EmptyCell {
			cells[i] = &that[i]
		}
	}

	return json.Marshal(cells)
}

func (that *Board) UnmarshalJSON(data []byte) error {
	var cells []*string
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBoard, err)
	}

	if len(cells) != BoardSize {
		return fmt.Errorf("%w: %d cells", ErrInvalidBoard, len(cells))
	}

	var board Board
	for i, cell := range cells {
		switch {
		case cell == nil:
			board[i] = EmptyCell
		case IsShape(*cell):
			board[i] = *cell
		default:
			return fmt.Errorf("%w: cell %d holds %q", ErrInvalidBoard, i, *cell)
		}
	}

	*that = board

	return nil
}
