package smoothing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/gesturemix/gesture"
)

func TestKalmanFirstObservationPassesThrough(t *testing.T) {
	k := NewKalman1D(DefaultKalmanConfig())
	assert.Equal(t, 0.42, k.Step(0.42))
}

func TestKalmanStepResponseConverges(t *testing.T) {
	k := NewKalman1D(DefaultKalmanConfig())
	k.Step(0.0)

	// A step to 1.0: the constant-velocity model may overshoot briefly
	// but must settle on the target.
	var last float64
	for i := 0; i < 400; i++ {
		last = k.Step(1.0)
		assert.Greater(t, last, -0.5)
		assert.Less(t, last, 2.0)
	}
	assert.InDelta(t, 1.0, last, 0.05, "estimate should settle on the step target")
}

func TestKalmanResetReinitializes(t *testing.T) {
	k := NewKalman1D(DefaultKalmanConfig())
	for i := 0; i < 50; i++ {
		k.Step(0.2)
	}
	k.Reset()
	assert.Equal(t, 0.9, k.Step(0.9), "first step after reset passes through")
}

func TestEMAConvergesToConstant(t *testing.T) {
	e := NewEMA(0.3)
	assert.Equal(t, 0.0, e.Step(0.0))
	var last float64
	for i := 0; i < 60; i++ {
		last = e.Step(1.0)
	}
	assert.InDelta(t, 1.0, last, 1e-6)
}

func TestEMAInvalidAlphaFallsBack(t *testing.T) {
	assert.Equal(t, DefaultEMAAlpha, NewEMA(0).alpha)
	assert.Equal(t, DefaultEMAAlpha, NewEMA(1.5).alpha)
	assert.Equal(t, 0.7, NewEMA(0.7).alpha)
}

// noisyHand builds a stationary hand with gaussian jitter on every
// coordinate.
func noisyHand(rng *rand.Rand, sigma float64) *gesture.HandLandmarks {
	h := &gesture.HandLandmarks{Confidence: 0.9}
	for i := range h.Points {
		h.Points[i] = gesture.Point{
			X: 0.5 + rng.NormFloat64()*sigma,
			Y: 0.5 + rng.NormFloat64()*sigma,
			Z: rng.NormFloat64() * sigma,
		}
	}
	return h
}

// TestKalmanSuppressesStationaryJitter feeds a stationary hand with 1%
// gaussian noise and checks the filtered variance, pooled over every
// coordinate, drops below 5% of the input variance.
func TestKalmanSuppressesStationaryJitter(t *testing.T) {
	const (
		sigma   = 0.01
		warmup  = 100
		measure = 500
	)
	rng := rand.New(rand.NewSource(1))
	s := NewKalmanSmoother(DefaultKalmanConfig())

	for i := 0; i < warmup; i++ {
		s.Smooth(&gesture.LandmarkFrame{Right: noisyHand(rng, sigma), Timestamp: time.Now()})
	}

	var rawSq, filtSq float64
	var n int
	for i := 0; i < measure; i++ {
		raw := noisyHand(rng, sigma)
		out := s.Smooth(&gesture.LandmarkFrame{Right: raw, Timestamp: time.Now()})
		require.NotNil(t, out.Right)
		for j := range raw.Points {
			rd := raw.Points[j].X - 0.5
			fd := out.Right.Points[j].X - 0.5
			rawSq += rd * rd
			filtSq += fd * fd
			rd = raw.Points[j].Y - 0.5
			fd = out.Right.Points[j].Y - 0.5
			rawSq += rd * rd
			filtSq += fd * fd
			n += 2
		}
	}

	rawVar := rawSq / float64(n)
	filtVar := filtSq / float64(n)
	assert.Less(t, filtVar, 0.05*rawVar,
		"filtered variance %g should be under 5%% of input variance %g", filtVar, rawVar)
}

func TestSmoothPreservesConfidenceAndTimestamp(t *testing.T) {
	s := NewEMASmoother(0.5)
	ts := time.Now()
	hand := &gesture.HandLandmarks{Confidence: 0.77}
	out := s.Smooth(&gesture.LandmarkFrame{Left: hand, Timestamp: ts})

	require.NotNil(t, out.Left)
	assert.Nil(t, out.Right)
	assert.Equal(t, 0.77, out.Left.Confidence)
	assert.Equal(t, ts, out.Timestamp)
}

func TestMissingHandResetsBank(t *testing.T) {
	s := NewEMASmoother(0.1)

	// Converge the right-hand bank toward 0.2.
	hand := &gesture.HandLandmarks{}
	for i := range hand.Points {
		hand.Points[i] = gesture.Point{X: 0.2, Y: 0.2}
	}
	for i := 0; i < 30; i++ {
		s.Smooth(&gesture.LandmarkFrame{Right: hand})
	}

	// Tracking drops for one frame, then reacquires far away. Without the
	// reset an alpha of 0.1 would land near the old position.
	s.Smooth(&gesture.LandmarkFrame{})

	far := &gesture.HandLandmarks{}
	for i := range far.Points {
		far.Points[i] = gesture.Point{X: 0.9, Y: 0.9}
	}
	out := s.Smooth(&gesture.LandmarkFrame{Right: far})
	require.NotNil(t, out.Right)
	assert.Equal(t, 0.9, out.Right.Points[0].X, "reacquired hand reinitializes from its first observation")
}

func TestSmootherResetClearsBothHands(t *testing.T) {
	s := NewEMASmoother(0.1)
	hand := &gesture.HandLandmarks{}
	for i := range hand.Points {
		hand.Points[i] = gesture.Point{X: 0.3}
	}
	s.Smooth(&gesture.LandmarkFrame{Left: hand, Right: hand})
	s.Reset()

	far := &gesture.HandLandmarks{}
	for i := range far.Points {
		far.Points[i] = gesture.Point{X: 0.8}
	}
	out := s.Smooth(&gesture.LandmarkFrame{Left: far, Right: far})
	assert.Equal(t, 0.8, out.Left.Points[0].X)
	assert.Equal(t, 0.8, out.Right.Points[0].X)
}
