// Package greeks implements Black-Scholes pricing, greeks and implied
// volatility for European options. All functions are pure and safe for
// concurrent use.
//
// Notation: S spot, K strike, T years to expiry, r continuous annualised
// risk-free rate, sigma annualised volatility.
package greeks

import (
	"math"

	"deltastack/internal/errors"
	"deltastack/internal/models"
)

// Greeks holds per-share option sensitivities. Vega is per 1% move in
// volatility; Theta is per calendar day.
type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

func d1(S, K, T, r, sigma float64) float64 {
	return (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
}

func d2(S, K, T, r, sigma float64) float64 {
	return d1(S, K, T, r, sigma) - sigma*math.Sqrt(T)
}

// normCDF is the standard normal cumulative distribution.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// CallPrice returns the Black-Scholes price of a European call.
func CallPrice(S, K, T, r, sigma float64) float64 {
	da, db := d1(S, K, T, r, sigma), d2(S, K, T, r, sigma)
	return S*normCDF(da) - K*math.Exp(-r*T)*normCDF(db)
}

// PutPrice returns the Black-Scholes price of a European put.
func PutPrice(S, K, T, r, sigma float64) float64 {
	da, db := d1(S, K, T, r, sigma), d2(S, K, T, r, sigma)
	return K*math.Exp(-r*T)*normCDF(-db) - S*normCDF(-da)
}

// Compute returns price and greeks for a European option.
func Compute(S, K, T, r, sigma float64, optType models.OptionType) (Greeks, error) {
	if T <= 0 || sigma <= 0 || S <= 0 || K <= 0 {
		return Greeks{}, errors.NewValidationError("greeks", nil, "S, K, T and sigma must be positive")
	}

	da := d1(S, K, T, r, sigma)
	db := d2(S, K, T, r, sigma)
	sqrtT := math.Sqrt(T)
	pdf := normPDF(da)

	g := Greeks{
		Gamma: pdf / (S * sigma * sqrtT),
		Vega:  S * pdf * sqrtT / 100,
	}
	if optType == models.OptionCall {
		g.Delta = normCDF(da)
		g.Theta = (-(S*pdf*sigma)/(2*sqrtT) - r*K*math.Exp(-r*T)*normCDF(db)) / 365
		g.Price = CallPrice(S, K, T, r, sigma)
	} else {
		g.Delta = normCDF(da) - 1
		g.Theta = (-(S*pdf*sigma)/(2*sqrtT) + r*K*math.Exp(-r*T)*normCDF(-db)) / 365
		g.Price = PutPrice(S, K, T, r, sigma)
	}
	return g, nil
}

// ImpliedVol solves for the volatility matching marketPrice by
// Newton-Raphson. The second return value is false when the solver does
// not converge.
func ImpliedVol(marketPrice, S, K, T, r float64, optType models.OptionType) (float64, bool) {
	if marketPrice <= 0 || T <= 0 || S <= 0 || K <= 0 {
		return 0, false
	}

	const (
		tol     = 1e-6
		maxIter = 100
	)
	sigma := 0.3
	for i := 0; i < maxIter; i++ {
		var price float64
		if optType == models.OptionCall {
			price = CallPrice(S, K, T, r, sigma)
		} else {
			price = PutPrice(S, K, T, r, sigma)
		}
		diff := price - marketPrice
		if math.Abs(diff) < tol {
			return sigma, true
		}

		vega := S * normPDF(d1(S, K, T, r, sigma)) * math.Sqrt(T)
		if math.Abs(vega) < 1e-12 {
			return 0, false
		}
		sigma -= diff / vega
		if sigma <= 0 {
			sigma = 0.001
		}
		if sigma > 10 {
			return 0, false
		}
	}
	return 0, false
}
