package jam

import "math"

// Clamp limits x to [lo, hi]. NaN maps to the midpoint.
func Clamp(x, lo, hi float64) float64 {
	switch {
	case math.IsNaN(x):
		return (lo + hi) / 2
	case x < lo:
		return lo
	case x > hi:
		return hi
	}
	return x
}

// Unit clamps x to [0,1].
func Unit(x float64) float64 {
	return Clamp(x, 0, 1)
}

// Lerp interpolates between a and b by t in [0,1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// HalfLifeAlpha converts a half-life into the per-step EMA weight for a step
// of dt. A non-positive half-life disables smoothing.
func HalfLifeAlpha(halfLife, dt float64) float64 {
	if halfLife <= 0 || dt <= 0 {
		return 1
	}
	return 1 - math.Exp(-math.Ln2*dt/halfLife)
}

// TimeConstantCoef is the one-pole feedback coefficient for time constant tau
// at the given step.
func TimeConstantCoef(tau, dt float64) float64 {
	if tau <= 0 || dt <= 0 {
		return 0
	}
	return math.Exp(-dt / tau)
}
