package pricing

import "errors"

// ErrInvalidInput is returned before any pricing math runs when an input is
// out of range (non-positive spot, strike or volatility, non-finite values).
var ErrInvalidInput = errors.New("invalid pricing input")
