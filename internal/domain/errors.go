package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Validation errors, raised at sale creation or reconfiguration.
	ErrZeroPerAccountCap    = errors.New("per-account cap must be non-zero")
	ErrZeroDecreaseInterval = errors.New("decrease interval must be positive")
	ErrInvalidQuantity      = errors.New("quantity must be non-zero")
	ErrInvalidSchedule      = errors.New("schedule is missing price fields")

	// Cap errors, raised at purchase time. Never partially applied.
	ErrPerAccountCapExceeded = errors.New("per-account mint cap exceeded")
	ErrSaleCapExceeded       = errors.New("sale-wide mint cap exceeded")

	// Arithmetic errors, raised by the pricing engine when a misconfigured
	// schedule would wrap instead of producing a valid price.
	ErrPriceUnderflow = errors.New("price decrease exceeds start price")
	ErrPriceOverflow  = errors.New("price computation overflows")

	// Sale-state errors, raised when the lifecycle window rejects a mint.
	ErrMintPaused     = errors.New("minting is paused")
	ErrSaleNotStarted = errors.New("sale has not started")
	ErrSaleEnded      = errors.New("sale has ended")
)
