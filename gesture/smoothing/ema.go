package smoothing

// DefaultEMAAlpha is the default blend weight for the exponential moving
// average: responsive enough for gesture control while removing most
// frame-to-frame jitter.
const DefaultEMAAlpha = 0.3

// EMA is an exponential-moving-average filter over one scalar
// coordinate, a lighter alternative to the Kalman filter when tracking
// noise is mild.
type EMA struct {
	alpha       float64
	initialized bool
	value       float64
}

// NewEMA creates a filter with the given blend weight in (0, 1]; values
// outside that range fall back to DefaultEMAAlpha.
func NewEMA(alpha float64) *EMA {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultEMAAlpha
	}
	return &EMA{alpha: alpha}
}

// Step folds the observation into the running average and returns the
// smoothed value. The first observation passes through unchanged.
func (e *EMA) Step(z float64) float64 {
	if !e.initialized {
		e.value = z
		e.initialized = true
		return z
	}
	e.value = e.alpha*z + (1-e.alpha)*e.value
	return e.value
}

// Reset discards the running average; the next Step reinitializes.
func (e *EMA) Reset() {
	e.initialized = false
	e.value = 0
}
