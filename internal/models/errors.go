package models

import "errors"

// ErrInvalidLeg is returned when a strategy leg violates its field constraints
var ErrInvalidLeg = errors.New("invalid strategy leg")

// ErrInvalidSnapshot is returned when a market snapshot cannot be priced against
var ErrInvalidSnapshot = errors.New("invalid market snapshot")
