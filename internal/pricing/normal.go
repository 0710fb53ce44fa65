package pricing

import "math"

// Abramowitz & Stegun 26.2.17 coefficients.
const (
	asP  = 0.2316419
	asB1 = 0.319381530
	asB2 = -0.356563782
	asB3 = 1.781477937
	asB4 = -1.821255978
	asB5 = 1.330274429
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return invSqrt2Pi * math.Exp(-0.5*x*x)
}

// NormCDF is the standard normal cumulative distribution, using the
// Abramowitz-Stegun rational approximation (absolute error below 7.5e-8).
// NormCDF(-x) == 1 - NormCDF(x) holds exactly.
func NormCDF(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if x < 0 {
		return 1 - NormCDF(-x)
	}
	t := 1 / (1 + asP*x)
	poly := t * (asB1 + t*(asB2+t*(asB3+t*(asB4+t*asB5))))
	return 1 - NormPDF(x)*poly
}
