package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("invalid request")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStoreFull         = errors.New("store at capacity")
	ErrSlotOccupied      = errors.New("slot already occupied")
	ErrPetAlreadyPlaced  = errors.New("pet already placed in a slot")
	ErrNotOwned          = errors.New("pet not owned by player")
	ErrTradeInvalid      = errors.New("trade offer not actionable")
	ErrStaleState        = errors.New("state version conflict")
	ErrLockHeld          = errors.New("lock already held")
	ErrContextDone       = errors.New("context cancelled")
)
