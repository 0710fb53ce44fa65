package strategy

import "errors"

var (
	// ErrUnknownStrategy is returned when a strategy name is not registered
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrPreconditionViolation is returned when strikes violate a strategy's ordering rule.
	// Strikes are never reordered to satisfy it.
	ErrPreconditionViolation = errors.New("strategy precondition violated")
	// ErrInvalidParams is returned for missing or out-of-range strategy parameters
	ErrInvalidParams = errors.New("invalid strategy parameters")
)
