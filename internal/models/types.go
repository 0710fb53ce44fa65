// Package models provides the value types shared by the pricing, strategy and
// journal packages.
package models

// SharesPerContract is the standard equity option multiplier.
const SharesPerContract = 100.0

// OptionKind identifies a call or a put.
type OptionKind string

const (
	// Call is the right to buy the underlying at the strike
	Call OptionKind = "call"
	// Put is the right to sell the underlying at the strike
	Put OptionKind = "put"
)

// Valid returns true if the OptionKind is one of the defined constants
func (k OptionKind) Valid() bool {
	switch k {
	case Call, Put:
		return true
	default:
		return false
	}
}

// Title returns the capitalized word used in human readable trade text.
func (k OptionKind) Title() string {
	if k == Put {
		return "Put"
	}
	return "Call"
}

// ActionKind identifies the side of a leg.
type ActionKind string

const (
	// Buy opens a long option position
	Buy ActionKind = "buy"
	// Sell opens a short option position
	Sell ActionKind = "sell"
)

// Valid returns true if the ActionKind is one of the defined constants
func (a ActionKind) Valid() bool {
	switch a {
	case Buy, Sell:
		return true
	default:
		return false
	}
}

// Sign is +1 for long legs and -1 for short legs.
func (a ActionKind) Sign() float64 {
	if a == Sell {
		return -1
	}
	return 1
}

// Title returns the capitalized word used in human readable trade text.
func (a ActionKind) Title() string {
	if a == Sell {
		return "Sell"
	}
	return "Buy"
}

// MarketBias is the directional view a strategy expresses.
type MarketBias string

const (
	BiasBullish MarketBias = "bullish"
	BiasBearish MarketBias = "bearish"
	BiasNeutral MarketBias = "neutral"
)

// Valid returns true if the MarketBias is one of the defined constants
func (b MarketBias) Valid() bool {
	switch b {
	case BiasBullish, BiasBearish, BiasNeutral:
		return true
	default:
		return false
	}
}

// RiskLevel is a coarse label for how much capital a strategy puts at risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Valid returns true if the RiskLevel is one of the defined constants
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskModerate, RiskHigh:
		return true
	default:
		return false
	}
}

// Severity ranks validation findings.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank orders severities from LOW (1) to CRITICAL (4); unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
