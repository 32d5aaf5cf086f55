package apperror

import "errors"

var (
	ErrStoreUnavailable = errors.New("game store is unavailable")
	ErrMalformedMessage = errors.New("malformed message")

	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNoWaitingGames = errors.New("no waiting games")

	ErrAlreadyInGame    = errors.New("player is already waiting or playing")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("invalid cell index")
	ErrInvalidShape     = errors.New("invalid player shape")
	ErrPlayerMismatch   = errors.New("player id does not match the shape on record")
)
