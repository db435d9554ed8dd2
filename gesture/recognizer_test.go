package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseHand builds a hand with the wrist at (0.5, 0.5), knuckles 0.1 away
// and every fingertip folded (0.05 from the wrist), well inside the frame.
func baseHand() *HandLandmarks {
	h := &HandLandmarks{Confidence: 0.95}
	for i := range h.Points {
		h.Points[i] = Point{X: 0.5, Y: 0.55}
	}
	h.Points[LandmarkWrist] = Point{X: 0.5, Y: 0.5}
	for _, mcp := range []Landmark{LandmarkThumbMCP, LandmarkIndexMCP, LandmarkMiddleMCP, LandmarkRingMCP, LandmarkPinkyMCP} {
		h.Points[mcp] = Point{X: 0.5, Y: 0.6}
	}
	return h
}

// extend moves a fingertip far enough from the wrist to count as extended.
func extend(h *HandLandmarks, tip Landmark, x float64) {
	h.Points[tip] = Point{X: x, Y: 0.75}
}

func openPalmHand() *HandLandmarks {
	h := baseHand()
	extend(h, LandmarkThumbTip, 0.40)
	extend(h, LandmarkIndexTip, 0.45)
	extend(h, LandmarkMiddleTip, 0.50)
	extend(h, LandmarkRingTip, 0.55)
	extend(h, LandmarkPinkyTip, 0.60)
	return h
}

func pointHand() *HandLandmarks {
	h := baseHand()
	extend(h, LandmarkIndexTip, 0.5)
	return h
}

// pinchHand builds a pinch with the given thumb-index aperture.
func pinchHand(aperture float64) *HandLandmarks {
	h := baseHand()
	extend(h, LandmarkThumbTip, 0.45)
	extend(h, LandmarkIndexTip, 0.45+aperture)
	return h
}

func frameWith(left, right *HandLandmarks) *LandmarkFrame {
	return &LandmarkFrame{Left: left, Right: right, Timestamp: time.Now()}
}

func singleResult(t *testing.T, r *Recognizer, frame *LandmarkFrame) Result {
	t.Helper()
	results := r.Recognize(frame)
	require.Len(t, results, 1)
	return results[0]
}

func TestClassifyClosedFist(t *testing.T) {
	r := NewRecognizer(DefaultConfig())
	res := singleResult(t, r, frameWith(nil, baseHand()))
	assert.Equal(t, GestureClosedFist, res.Type)
	assert.Equal(t, HandRight, res.Hand)
}

func TestClassifyOpenPalm(t *testing.T) {
	r := NewRecognizer(DefaultConfig())
	res := singleResult(t, r, frameWith(openPalmHand(), nil))
	assert.Equal(t, GestureOpenPalm, res.Type)
	assert.Equal(t, HandLeft, res.Hand)
}

func TestClassifyPoint(t *testing.T) {
	r := NewRecognizer(DefaultConfig())
	res := singleResult(t, r, frameWith(nil, pointHand()))
	assert.Equal(t, GesturePoint, res.Type)
}

func TestClassifyPinchWithAperture(t *testing.T) {
	r := NewRecognizer(DefaultConfig())

	res := singleResult(t, r, frameWith(nil, pinchHand(0.20)))
	assert.Equal(t, GesturePinch, res.Type)
	// Aperture 0.20 against the 0.25 max maps to a value of 0.8.
	assert.InDelta(t, 0.8, res.Value, 1e-9)

	res = singleResult(t, r, frameWith(nil, pinchHand(0.05)))
	assert.Equal(t, GesturePinch, res.Type)
	assert.InDelta(t, 0.2, res.Value, 1e-9)
}

func TestTwoHandSpread(t *testing.T) {
	r := NewRecognizer(DefaultConfig())

	left := openPalmHand()
	right := openPalmHand()
	// Move the right hand's wrist 0.4 away: half of the 0.8 max spread.
	offsetHand(right, 0.4)

	results := r.Recognize(frameWith(left, right))
	var spread *Result
	for i := range results {
		if results[i].Type == GestureTwoHandSpread {
			spread = &results[i]
		}
	}
	require.NotNil(t, spread, "expected a two-hand spread result")
	assert.Equal(t, HandBoth, spread.Hand)
	assert.InDelta(t, 0.5, spread.Value, 1e-6)
}

// offsetHand shifts every landmark of h right by dx.
func offsetHand(h *HandLandmarks, dx float64) {
	for i := range h.Points {
		h.Points[i].X += dx
	}
}

func TestLowDetectionConfidenceIsFiltered(t *testing.T) {
	r := NewRecognizer(DefaultConfig())
	hand := baseHand()
	hand.Confidence = 0.3

	results := r.Recognize(frameWith(nil, hand))
	assert.Empty(t, results, "low-confidence results must not be forwarded")
}

func TestEdgeProximityReducesConfidence(t *testing.T) {
	r := NewRecognizer(DefaultConfig())

	center := singleResult(t, r, frameWith(nil, baseHand()))
	r.Reset()

	// Same pose pressed against the left frame border.
	edgeHand := baseHand()
	offsetHand(edgeHand, -0.48)
	edge := singleResult(t, r, frameWith(nil, edgeHand))

	assert.Equal(t, center.Type, edge.Type)
	assert.Less(t, edge.Confidence, center.Confidence)
}

func TestTemporalConsistencyBonus(t *testing.T) {
	r := NewRecognizer(DefaultConfig())

	first := singleResult(t, r, frameWith(nil, baseHand()))
	var last Result
	for i := 0; i < 5; i++ {
		last = singleResult(t, r, frameWith(nil, baseHand()))
	}
	assert.Greater(t, last.Confidence, first.Confidence,
		"consistent discrete classifications earn a confidence bonus")
	assert.LessOrEqual(t, last.Confidence, 1.0)
}

func TestClassificationFlipIsPenalized(t *testing.T) {
	r := NewRecognizer(DefaultConfig())

	// Establish a fist, then flip to open palm; the flip frame's
	// confidence takes the consistency penalty.
	for i := 0; i < 4; i++ {
		singleResult(t, r, frameWith(nil, baseHand()))
	}
	flipped := singleResult(t, r, frameWith(nil, openPalmHand()))

	r2 := NewRecognizer(DefaultConfig())
	fresh := singleResult(t, r2, frameWith(nil, openPalmHand()))

	assert.Less(t, flipped.Confidence, fresh.Confidence)
}

func TestMissingHandResetsHistory(t *testing.T) {
	r := NewRecognizer(DefaultConfig())

	for i := 0; i < 5; i++ {
		singleResult(t, r, frameWith(nil, baseHand()))
	}
	// Hand disappears; history must clear.
	r.Recognize(frameWith(nil, nil))

	// The reacquired hand starts without the consistency bonus.
	res := singleResult(t, r, frameWith(nil, baseHand()))
	assert.InDelta(t, 0.95, res.Confidence, 0.02)
}

func TestEmptyFrameYieldsNoResults(t *testing.T) {
	r := NewRecognizer(DefaultConfig())
	assert.Empty(t, r.Recognize(frameWith(nil, nil)))
}

func TestHistoryRingBufferBounds(t *testing.T) {
	h := newHistory(4)

	for i := 0; i < 100; i++ {
		h.push(GestureClosedFist)
	}
	assert.Equal(t, 4, h.filled, "history must not grow past capacity")
	assert.True(t, h.lastAgree(GestureClosedFist, 4))

	h.push(GestureOpenPalm)
	assert.False(t, h.lastAgree(GestureClosedFist, 4))
	assert.Equal(t, GestureOpenPalm, h.previous())

	h.reset()
	assert.Equal(t, GestureNone, h.previous())
	assert.False(t, h.lastAgree(GestureOpenPalm, 1))
}

func TestLandmarkFrameHandCount(t *testing.T) {
	assert.Equal(t, 0, frameWith(nil, nil).HandCount())
	assert.Equal(t, 1, frameWith(baseHand(), nil).HandCount())
	assert.Equal(t, 2, frameWith(baseHand(), baseHand()).HandCount())
}

func TestPointDistance(t *testing.T) {
	a := Point{X: 0, Y: 0, Z: 0.5}
	b := Point{X: 3, Y: 4, Z: -0.5}
	// Depth is excluded from the geometric distance.
	assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-9)
}
