package runner

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrOrderTooSmall      = errors.New("order too small")
	ErrExchangeRejected   = errors.New("exchange rejected")
	ErrCooldownActive     = errors.New("cooldown active")
	ErrPositionCapReached = errors.New("position cap reached")
	ErrAlreadyWatched     = errors.New("symbol already watched")
	ErrInvalidSignal      = errors.New("invalid signal")
)

// RejectedError - отказ биржи с исходной причиной.
// errors.Is(err, ErrExchangeRejected) == true, errors.As до *APIError клиента тоже работает.
type RejectedError struct {
	Op  string
	Err error
}

func (e *RejectedError) Error() string {
	return e.Op + ": " + ErrExchangeRejected.Error() + ": " + e.Err.Error()
}

func (e *RejectedError) Unwrap() error { return e.Err }

func (e *RejectedError) Is(target error) bool { return target == ErrExchangeRejected }

func rejected(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RejectedError{Op: op, Err: err}
}
