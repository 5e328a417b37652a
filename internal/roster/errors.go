package roster

import "errors"

var (
	// ErrDataUnavailable wraps any failure to read the player pool. The
	// selection core is never invoked when it is returned.
	ErrDataUnavailable = errors.New("roster data unavailable")
	// ErrMalformedRecord marks a pool record rejected at the boundary.
	ErrMalformedRecord = errors.New("malformed roster record")

	ErrGameNotFound         = errors.New("game not found")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrInvalidGame          = errors.New("invalid game")

	ErrSelectionClosed     = errors.New("selection already run for game")
	ErrSlotsExceedCapacity = errors.New("requested slots exceed open slots")
	ErrRegistrationClosed  = errors.New("registration closed")
	ErrAlreadyRegistered   = errors.New("player already registered")
	ErrNoPriorityToken     = errors.New("player has no priority token")
	ErrNotSelected         = errors.New("player is not selected")
	ErrGameNotActive       = errors.New("game is not awaiting kick-off")
	ErrNotEnoughPlayers    = errors.New("not enough selected players")
)
