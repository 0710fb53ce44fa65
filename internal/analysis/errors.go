package analysis

import "errors"

// ErrNoLegs is returned when a strategy without legs is aggregated
var ErrNoLegs = errors.New("strategy has no legs")
