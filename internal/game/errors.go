package game

import "errors"

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrGameNotFound       = errors.New("game not found")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrGameFull           = errors.New("game is full")
	ErrInvalidState       = errors.New("invalid game state")
	ErrRoundExpired       = errors.New("round has expired")
)
