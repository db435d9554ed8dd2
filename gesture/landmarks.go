package gesture

import (
	"math"
	"time"
)

// Landmark identifies one of the 21 tracked hand points. The numbering
// matches the standard hand-landmark model: wrist first, then four points
// per finger from base to tip.
type Landmark uint8

const (
	LandmarkWrist Landmark = iota
	LandmarkThumbCMC
	LandmarkThumbMCP
	LandmarkThumbIP
	LandmarkThumbTip
	LandmarkIndexMCP
	LandmarkIndexPIP
	LandmarkIndexDIP
	LandmarkIndexTip
	LandmarkMiddleMCP
	LandmarkMiddlePIP
	LandmarkMiddleDIP
	LandmarkMiddleTip
	LandmarkRingMCP
	LandmarkRingPIP
	LandmarkRingDIP
	LandmarkRingTip
	LandmarkPinkyMCP
	LandmarkPinkyPIP
	LandmarkPinkyDIP
	LandmarkPinkyTip
)

// LandmarkCount is the number of tracked points per hand.
const LandmarkCount = 21

// HandSide identifies which hand a landmark set or result belongs to.
type HandSide uint8

const (
	// HandLeft is the left hand.
	HandLeft HandSide = iota
	// HandRight is the right hand.
	HandRight
	// HandBoth marks results derived from both hands together.
	HandBoth
)

// String returns the hand side name for logging.
func (h HandSide) String() string {
	switch h {
	case HandLeft:
		return "left"
	case HandRight:
		return "right"
	case HandBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Point is one landmark position. X and Y are normalized to [0, 1] within
// the camera frame; Z is depth relative to the wrist, roughly [-1, 1].
type Point struct {
	X float64
	Y float64
	Z float64
}

// DistanceTo returns the 2-D distance to other, ignoring depth. Depth from
// single-camera tracking is too noisy for geometric thresholds.
func (p Point) DistanceTo(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HandLandmarks is one detected hand: a fixed array of the 21 tracked
// points plus the tracker's overall detection confidence in [0, 1].
type HandLandmarks struct {
	Points     [LandmarkCount]Point
	Confidence float64
}

// At returns the point for the given landmark.
func (h *HandLandmarks) At(l Landmark) Point {
	return h.Points[l]
}

// LandmarkFrame is the ephemeral per-frame input from the hand-tracking
// provider: zero, one or two detected hands plus the capture timestamp.
// Frames are consumed immediately and not retained.
type LandmarkFrame struct {
	Left      *HandLandmarks
	Right     *HandLandmarks
	Timestamp time.Time
}

// HandCount returns the number of detected hands in the frame.
func (f *LandmarkFrame) HandCount() int {
	n := 0
	if f.Left != nil {
		n++
	}
	if f.Right != nil {
		n++
	}
	return n
}
