package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
)

// Field names of the game record hash.
const (
	FieldPlayerX     = "playerX"
	FieldPlayerO     = "playerO"
	FieldSpaces      = "spaces"
	FieldCurrentTurn = "currentTurn"
)

// Game - one game record. It is stored field by field in a hash, see the Field constants.
type Game struct {
	ID          string
	PlayerX     string
	PlayerO     string
	Spaces      Board
	CurrentTurn string
}

func NewGame(id, playerX string) *Game {
	return &Game{
		ID:          id,
		PlayerX:     playerX,
		CurrentTurn: PlayerX,
	}
}

// PlayerFor - returns the player id recorded for shape.
func (that *Game) PlayerFor(shape string) string {
	switch shape {
	case PlayerX:
		return that.PlayerX
	case PlayerO:
		return that.PlayerO
	default:
		return ""
	}
}

// IsMatched reports whether both seats are taken.
func (that *Game) IsMatched() bool {
	return that.PlayerX != "" && that.PlayerO != ""
}

// ValidateMove checks a move in protocol order: empty cell, turn, then player id.
func (that *Game) ValidateMove(shape, playerID string, cell int) error {
	if cell < 0 || cell >= len(that.Spaces) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if !IsShape(shape) {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidShape, shape)
	}

	if !that.IsMatched() {
		return apperror.ErrGameIsNotStarted
	}

	if that.Spaces[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	if that.CurrentTurn != shape {
		return apperror.ErrNotYourTurn
	}

	if that.PlayerFor(shape) != playerID {
		return apperror.ErrPlayerMismatch
	}

	return nil
}

// MakeTurn validates the move, places the mark and passes the turn. It returns the board result.
func (that *Game) MakeTurn(shape, playerID string, cell int) (string, error) {
	if err := that.ValidateMove(shape, playerID, cell); err != nil {
		return "", err
	}

	that.Spaces[cell] = shape
	that.CurrentTurn = ToggleMark(shape)

	return Evaluate(that.Spaces), nil
}

// OpponentOf - returns the id seated against playerID, or "" when playerID holds no seat.
func (that *Game) OpponentOf(playerID string) string {
	switch playerID {
	case "":
		return ""
	case that.PlayerX:
		return that.PlayerO
	case that.PlayerO:
		return that.PlayerX
	default:
		return ""
	}
}
