package bank

import (
	"errors"

	"github.com/tellerline/teller/internal/money"
	"github.com/tellerline/teller/internal/store"
)

var (
	ErrNotFound          = store.ErrNotFound
	ErrConflict          = store.ErrConflict
	ErrInvalidAmount     = money.ErrInvalidAmount
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidState      = errors.New("invalid state")
	ErrLimitExceeded     = errors.New("limit exceeded")
)
