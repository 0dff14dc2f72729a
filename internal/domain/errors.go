package domain

import "errors"

// Errores de dominio. El API los traduce a códigos HTTP con errors.Is.
var (
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketInactive      = errors.New("market is not active")
	ErrInvalidOutcome      = errors.New("invalid outcome")
	ErrMissingPrice        = errors.New("limit orders require a price")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidPrice        = errors.New("price must be between 0 and 1")
	ErrOrderMarketMismatch = errors.New("order market does not match book")
)
