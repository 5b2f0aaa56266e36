package calculator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInsufficientData is returned when fewer than three observations are supplied.
	ErrInsufficientData = errors.New("not enough data for regression")
	// ErrSingular is returned when every x value is identical and no slope can be fitted.
	ErrSingular = errors.New("singular design matrix")
)

// MinRegressionPoints is the smallest sample that leaves a residual degree of freedom.
const MinRegressionPoints = 3

// Fit is an ordinary-least-squares line y = Intercept + Slope*x.
type Fit struct {
	Slope     float64
	Intercept float64
	// PValue is the two-sided p-value of the slope under a Student's t distribution.
	PValue   float64
	RSquared float64
	N        int
}

// LinearRegression fits y against x with an intercept term.
func LinearRegression(xs, ys []float64) (Fit, error) {
	if len(xs) != len(ys) {
		return Fit{}, fmt.Errorf("length mismatch: %d x values, %d y values", len(xs), len(ys))
	}
	n := len(xs)
	if n < MinRegressionPoints {
		return Fit{}, ErrInsufficientData
	}

	meanX := stat.Mean(xs, nil)
	var sxx float64
	for _, x := range xs {
		sxx += (x - meanX) * (x - meanX)
	}
	if sxx == 0 {
		return Fit{}, ErrSingular
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	meanY := stat.Mean(ys, nil)
	var sse, sst float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		sse += r * r
		sst += (ys[i] - meanY) * (ys[i] - meanY)
	}

	fit := Fit{Slope: slope, Intercept: intercept, N: n}
	if sst == 0 {
		fit.RSquared = 1
	} else {
		fit.RSquared = stat.RSquared(xs, ys, nil, intercept, slope)
	}
	fit.PValue = slopePValue(slope, sse, sxx, n)
	return fit, nil
}

func slopePValue(slope, sse, sxx float64, n int) float64 {
	df := float64(n - 2)
	se := math.Sqrt(sse / df / sxx)
	// Exact fit: the slope is certain unless it is zero.
	if se == 0 || math.IsNaN(se) {
		if slope == 0 {
			return 1
		}
		return 0
	}
	t := math.Abs(slope / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(t)
}
