package mixer

import "math"

// Curve selects the crossfader's position-to-gain mapping.
type Curve uint8

const (
	// CurveLinear maps position directly to a complementary gain pair.
	CurveLinear Curve = iota
	// CurveLogarithmic is the constant-power curve: perceived loudness
	// stays constant through the center (sum of squared gains ≈ 1).
	CurveLogarithmic
	// CurveExponential biases power toward the extremes for abrupt cuts.
	CurveExponential
	// CurveScratch holds both channels at full gain through the middle and
	// cuts sharply in the outer travel, for scratch-style work.
	CurveScratch
	// CurveSmooth uses a smoothstep blend between the channels.
	CurveSmooth
)

// String returns the curve name for logging and CLI flags.
func (c Curve) String() string {
	switch c {
	case CurveLinear:
		return "linear"
	case CurveLogarithmic:
		return "logarithmic"
	case CurveExponential:
		return "exponential"
	case CurveScratch:
		return "scratch"
	case CurveSmooth:
		return "smooth"
	default:
		return "unknown"
	}
}

// ParseCurve maps a curve name to its value; unknown names fall back to
// constant-power.
func ParseCurve(name string) Curve {
	switch name {
	case "linear":
		return CurveLinear
	case "logarithmic", "log", "constant-power":
		return CurveLogarithmic
	case "exponential", "exp":
		return CurveExponential
	case "scratch":
		return CurveScratch
	case "smooth":
		return CurveSmooth
	default:
		return CurveLogarithmic
	}
}

// smoothstep is the 3t²-2t³ blend used by the smooth curve.
func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Gains maps a crossfader position in [-1, +1] to the (deckA, deckB) gain
// pair for this curve. Position is clamped before mapping.
func (c Curve) Gains(position float64) (gainA, gainB float64) {
	if position < -1 {
		position = -1
	} else if position > 1 {
		position = 1
	}
	// t is the normalized travel toward deck B.
	t := (position + 1) / 2

	switch c {
	case CurveLinear:
		return 1 - t, t
	case CurveExponential:
		return (1 - t) * (1 - t), t * t
	case CurveScratch:
		// Full gain through the middle half, sharp cut in the outer travel.
		return math.Min(1, 2*(1-t)), math.Min(1, 2*t)
	case CurveSmooth:
		g := smoothstep(t)
		return 1 - g, g
	default: // CurveLogarithmic, constant power
		theta := t * math.Pi / 2
		return math.Cos(theta), math.Sin(theta)
	}
}
