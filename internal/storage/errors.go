package storage

import "errors"

var (
	// ErrTradeNotFound is returned when no trade has the requested ID
	ErrTradeNotFound = errors.New("trade not found")
	// ErrTradeClosed is returned when closing a trade that is already closed
	ErrTradeClosed = errors.New("trade already closed")
	// ErrDuplicateTrade is returned when adding or importing an existing ID
	ErrDuplicateTrade = errors.New("trade already exists")
	// ErrInvalidTrade is returned when a trade fails validation
	ErrInvalidTrade = errors.New("invalid trade")
)
