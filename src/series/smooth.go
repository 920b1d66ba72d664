package series

// Smoothing methods accepted by Smooth.
const (
	SmoothEMA = "ema"
	SmoothMA  = "ma"
)

// Smooth returns a smoothed copy of values with the same length. A window of
// 1 or less, an empty method, or an empty input returns the input unchanged.
// Unknown methods fall through to EMA, the default.
func Smooth(values []float64, method string, window int) []float64 {
	if method == "" || window <= 1 || len(values) == 0 {
		return values
	}
	if method == SmoothMA {
		return movingAverage(values, window)
	}
	return expMovingAverage(values, window)
}

// movingAverage convolves with a uniform 1/window kernel using same-length,
// zero-padded-edge semantics: edge bins average against implicit zeros past
// the sequence boundary.
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	half := (window - 1) / 2
	for i := range values {
		var sum float64
		for j := i + half - (window - 1); j <= i+half; j++ {
			if j >= 0 && j < len(values) {
				sum += values[j]
			}
		}
		out[i] = sum / float64(window)
	}
	return out
}

// expMovingAverage applies s[i] = alpha*v[i] + (1-alpha)*s[i-1] with
// alpha = 2/(window+1), seeded at the first value.
func expMovingAverage(values []float64, window int) []float64 {
	alpha := 2.0 / (float64(window) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1.0-alpha)*out[i-1]
	}
	return out
}
