// Package util provides common utility functions for price calculations.
package util

import "math"

// tickEpsilon absorbs binary representation error before rounding, so
// 1.235/0.01 (123.49999999999999) is treated as the tie it is.
const tickEpsilon = 1e-9

// strikeIncrements are the listed strike spacings, smallest first.
var strikeIncrements = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10}

// RoundToTick rounds x to the nearest tick increment, ties away from zero.
// A zero tick, NaN or infinite x returns x unchanged; a negative tick uses its
// absolute value.
func RoundToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if !roundable(x, tick) {
		return x
	}
	q := x / tick
	return math.Round(q+math.Copysign(tickEpsilon, q)) * tick
}

// FloorToTick rounds x down to a tick increment.
func FloorToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if !roundable(x, tick) {
		return x
	}
	return math.Floor(x/tick+tickEpsilon) * tick
}

// CeilToTick rounds x up to a tick increment.
func CeilToTick(x, tick float64) float64 {
	tick = math.Abs(tick)
	if !roundable(x, tick) {
		return x
	}
	return math.Ceil(x/tick-tickEpsilon) * tick
}

// StrikeIncrement returns the strike spacing used for an underlying trading
// at price: the largest listed increment not above 1% of price.
func StrikeIncrement(price float64) float64 {
	inc := strikeIncrements[0]
	for _, candidate := range strikeIncrements {
		if candidate <= price*0.01 {
			inc = candidate
		}
	}
	return inc
}

func roundable(x, tick float64) bool {
	return tick != 0 && !math.IsNaN(tick) && !math.IsNaN(x) && !math.IsInf(x, 0)
}
