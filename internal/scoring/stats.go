package scoring

import (
	"math"
	"time"
)

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round rounds half away from zero. All integer rupee and score
// rounding in the engine goes through this so the rounding mode is
// stated once: math.Round rounds half away from zero, matching the
// calibration the thresholds were tuned against.
func round(v float64) float64 {
	return math.Round(v)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation. Returns 0 with fewer
// than 2 points: variance is undefined there and the callers treat
// "no variance data" as "no penalty".
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// coefficientOfVariation is stddev/mean, 0 when the mean is 0.
func coefficientOfVariation(values []float64) float64 {
	m := mean(values)
	if m <= 0 {
		return 0
	}
	return stddev(values) / m
}

// olsSlope fits y = a + b·x over x = 0..n-1 by ordinary least squares
// and returns b. Fewer than 2 points have no trend and return 0.
func olsSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mx := float64(n-1) / 2
	my := mean(values)
	var num, den float64
	for i, v := range values {
		dx := float64(i) - mx
		num += dx * (v - my)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// nonZero filters out zero (inactive) months from a GMV trend.
func nonZero(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// daysBetween is the whole number of 24h periods from a to b, floored.
// Negative when b precedes a.
func daysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

// hoursBetween is the fractional hour distance from a to b.
func hoursBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours()
}

// monthsBetween is the calendar-month distance from a to b, ignoring
// the day of month: Jan 31 to Feb 1 is one month.
func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
