package gesture

import (
	"github.com/sirupsen/logrus"
)

// Type classifies a recognized hand gesture.
type Type uint8

const (
	// GestureNone is the absence of a recognizable gesture.
	GestureNone Type = iota
	// GestureOpenPalm is a flat hand with fingers extended.
	GestureOpenPalm
	// GestureClosedFist is a hand with all fingers folded.
	GestureClosedFist
	// GesturePinch is thumb and index converging; its continuous value is
	// the normalized pinch aperture.
	GesturePinch
	// GesturePoint is an extended index finger with the others folded.
	GesturePoint
	// GestureTwoHandSpread is both hands present; its continuous value is
	// the normalized inter-hand distance.
	GestureTwoHandSpread
)

// String returns the gesture name for logging and configuration.
func (t Type) String() string {
	switch t {
	case GestureNone:
		return "none"
	case GestureOpenPalm:
		return "open_palm"
	case GestureClosedFist:
		return "closed_fist"
	case GesturePinch:
		return "pinch"
	case GesturePoint:
		return "point"
	case GestureTwoHandSpread:
		return "two_hand_spread"
	default:
		return "unknown"
	}
}

// continuous reports whether the gesture carries a continuous value. The
// temporal-consistency confidence factor only applies to discrete
// gestures.
func (t Type) continuous() bool {
	return t == GesturePinch || t == GestureTwoHandSpread
}

// Result is the output of the recognizer for one gesture in one frame.
type Result struct {
	Type       Type
	Hand       HandSide
	Confidence float64
	// Value is the continuous derived value for pinch (aperture) and
	// two-hand spread (inter-hand distance), normalized to [0, 1]. Zero
	// for discrete gestures.
	Value float64
}

// Config holds the tunable recognition parameters. The confidence weights
// are deliberately configuration rather than constants; deployments tune
// them against their tracking provider.
type Config struct {
	// MinConfidence filters results below this confidence before return.
	MinConfidence float64
	// EdgeMargin is the normalized distance from the frame border within
	// which a landmark counts as edge-proximate.
	EdgeMargin float64
	// EdgePenalty is the maximum confidence reduction when every landmark
	// sits at the frame edge.
	EdgePenalty float64
	// HistorySize is the ring-buffer capacity per hand side.
	HistorySize int
	// ConsistencyFrames is how many recent frames must agree for the
	// temporal-consistency bonus on discrete gestures.
	ConsistencyFrames int
	// ConsistencyBonus is the confidence multiplier bonus when the last
	// ConsistencyFrames classifications agree.
	ConsistencyBonus float64
	// ConsistencyPenalty is the confidence reduction when the current
	// classification disagrees with the previous frame.
	ConsistencyPenalty float64
	// ExtensionRatio is the tip-vs-knuckle wrist-distance ratio above
	// which a finger counts as extended.
	ExtensionRatio float64
	// PinchMaxAperture is the thumb-index distance mapped to a pinch
	// value of 1.0; larger apertures are not a pinch.
	PinchMaxAperture float64
	// SpreadMaxDistance is the inter-hand distance mapped to a two-hand
	// spread value of 1.0.
	SpreadMaxDistance float64
}

// DefaultConfig returns recognition parameters tuned for typical webcam
// hand tracking at 30–60 Hz.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      0.5,
		EdgeMargin:         0.05,
		EdgePenalty:        0.4,
		HistorySize:        8,
		ConsistencyFrames:  3,
		ConsistencyBonus:   0.15,
		ConsistencyPenalty: 0.25,
		ExtensionRatio:     1.25,
		PinchMaxAperture:   0.25,
		SpreadMaxDistance:  0.8,
	}
}

// history is a bounded ring buffer of per-frame classifications for one
// hand side. Old entries beyond capacity are overwritten.
type history struct {
	entries []Type
	next    int
	filled  int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{entries: make([]Type, capacity)}
}

// push records a classification, overwriting the oldest when full.
func (h *history) push(t Type) {
	h.entries[h.next] = t
	h.next = (h.next + 1) % len(h.entries)
	if h.filled < len(h.entries) {
		h.filled++
	}
}

// lastAgree reports whether the most recent n entries all equal t.
func (h *history) lastAgree(t Type, n int) bool {
	if h.filled < n {
		return false
	}
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.entries)) % len(h.entries)
		if h.entries[idx] != t {
			return false
		}
	}
	return true
}

// previous returns the most recent entry, or GestureNone when empty.
func (h *history) previous() Type {
	if h.filled == 0 {
		return GestureNone
	}
	idx := (h.next - 1 + len(h.entries)) % len(h.entries)
	return h.entries[idx]
}

// reset clears the buffer, used when tracking for the side is lost.
func (h *history) reset() {
	h.next = 0
	h.filled = 0
}

// Recognizer classifies smoothed landmark frames into gesture results.
// It keeps a short per-hand classification history for the temporal
// confidence factor; it holds no other state.
type Recognizer struct {
	config  Config
	leftHx  *history
	rightHx *history
}

// NewRecognizer creates a recognizer with the given configuration.
func NewRecognizer(config Config) *Recognizer {
	logrus.WithFields(logrus.Fields{
		"function":       "NewRecognizer",
		"min_confidence": config.MinConfidence,
		"history_size":   config.HistorySize,
	}).Info("Creating gesture recognizer")
	return &Recognizer{
		config:  config,
		leftHx:  newHistory(config.HistorySize),
		rightHx: newHistory(config.HistorySize),
	}
}

// Recognize classifies the hands in the frame and returns the confident
// results: zero or more single-hand gestures plus, when both hands are
// present, the two-hand spread with its continuous inter-hand distance.
// Hands absent from the frame reset their classification history so a
// reacquired hand starts fresh.
func (r *Recognizer) Recognize(frame *LandmarkFrame) []Result {
	var results []Result

	if frame.Left != nil {
		if res, ok := r.recognizeHand(frame.Left, HandLeft, r.leftHx); ok {
			results = append(results, res)
		}
	} else {
		r.leftHx.reset()
	}

	if frame.Right != nil {
		if res, ok := r.recognizeHand(frame.Right, HandRight, r.rightHx); ok {
			results = append(results, res)
		}
	} else {
		r.rightHx.reset()
	}

	if frame.Left != nil && frame.Right != nil {
		if res, ok := r.recognizeSpread(frame.Left, frame.Right); ok {
			results = append(results, res)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Recognizer.Recognize",
		"hand_count":   frame.HandCount(),
		"result_count": len(results),
	}).Debug("Frame recognized")
	return results
}

// recognizeHand classifies a single hand and scores its confidence.
func (r *Recognizer) recognizeHand(hand *HandLandmarks, side HandSide, hx *history) (Result, bool) {
	gestureType, value := r.classify(hand)

	// Score temporal consistency against the frames before this one, then
	// record the classification.
	consistency := r.consistencyFactor(gestureType, hx)
	hx.push(gestureType)
	if gestureType == GestureNone {
		return Result{}, false
	}

	confidence := hand.Confidence * r.edgeFactor(hand)
	if !gestureType.continuous() {
		confidence *= consistency
	}
	if confidence > 1 {
		confidence = 1
	}

	if confidence < r.config.MinConfidence {
		logrus.WithFields(logrus.Fields{
			"function":   "Recognizer.recognizeHand",
			"hand":       side.String(),
			"gesture":    gestureType.String(),
			"confidence": confidence,
		}).Debug("Result filtered below minimum confidence")
		return Result{}, false
	}

	return Result{Type: gestureType, Hand: side, Confidence: confidence, Value: value}, true
}

// recognizeSpread produces the two-hand spread result.
func (r *Recognizer) recognizeSpread(left, right *HandLandmarks) (Result, bool) {
	distance := left.At(LandmarkWrist).DistanceTo(right.At(LandmarkWrist))
	value := distance / r.config.SpreadMaxDistance
	if value > 1 {
		value = 1
	}

	// Two-hand confidence is the weaker hand scaled by both edge factors.
	confidence := left.Confidence
	if right.Confidence < confidence {
		confidence = right.Confidence
	}
	confidence *= r.edgeFactor(left) * r.edgeFactor(right)

	if confidence < r.config.MinConfidence {
		return Result{}, false
	}
	return Result{Type: GestureTwoHandSpread, Hand: HandBoth, Confidence: confidence, Value: value}, true
}

// classify maps hand geometry to a gesture type and continuous value.
//
// Finger extension compares each fingertip's wrist distance against its
// knuckle's; the pinch aperture is the thumb-index tip distance. Priority:
// fist and open palm from the extension count, point from the index alone,
// pinch from the aperture with the remaining fingers folded.
func (r *Recognizer) classify(hand *HandLandmarks) (Type, float64) {
	wrist := hand.At(LandmarkWrist)
	extended := func(tip, knuckle Landmark) bool {
		return wrist.DistanceTo(hand.At(tip)) > wrist.DistanceTo(hand.At(knuckle))*r.config.ExtensionRatio
	}

	indexExt := extended(LandmarkIndexTip, LandmarkIndexMCP)
	middleExt := extended(LandmarkMiddleTip, LandmarkMiddleMCP)
	ringExt := extended(LandmarkRingTip, LandmarkRingMCP)
	pinkyExt := extended(LandmarkPinkyTip, LandmarkPinkyMCP)
	thumbExt := extended(LandmarkThumbTip, LandmarkThumbMCP)

	extendedCount := 0
	for _, e := range []bool{indexExt, middleExt, ringExt, pinkyExt, thumbExt} {
		if e {
			extendedCount++
		}
	}

	aperture := hand.At(LandmarkThumbTip).DistanceTo(hand.At(LandmarkIndexTip))

	switch {
	case extendedCount == 0:
		return GestureClosedFist, 0
	case extendedCount >= 4:
		return GestureOpenPalm, 0
	case indexExt && !middleExt && !ringExt && !pinkyExt && !thumbExt:
		return GesturePoint, 0
	case aperture < r.config.PinchMaxAperture && !middleExt && !ringExt && !pinkyExt:
		// Pinch value: fingers together is 0, aperture at the detection
		// limit is 1, a natural fader travel for thumb-index control.
		return GesturePinch, aperture / r.config.PinchMaxAperture
	default:
		return GestureNone, 0
	}
}

// edgeFactor penalizes hands whose landmarks crowd the frame border,
// where tracking quality degrades.
func (r *Recognizer) edgeFactor(hand *HandLandmarks) float64 {
	margin := r.config.EdgeMargin
	edgeCount := 0
	for _, p := range hand.Points {
		if p.X < margin || p.X > 1-margin || p.Y < margin || p.Y > 1-margin {
			edgeCount++
		}
	}
	return 1 - r.config.EdgePenalty*float64(edgeCount)/LandmarkCount
}

// consistencyFactor rewards classifications that agree with recent
// history and penalizes flips against the previous frame.
func (r *Recognizer) consistencyFactor(t Type, hx *history) float64 {
	if hx.lastAgree(t, r.config.ConsistencyFrames) {
		return 1 + r.config.ConsistencyBonus
	}
	if prev := hx.previous(); prev != t && prev != GestureNone {
		return 1 - r.config.ConsistencyPenalty
	}
	return 1
}

// Reset clears all per-hand history, used alongside the smoothing layer's
// reset when tracking is lost.
func (r *Recognizer) Reset() {
	r.leftHx.reset()
	r.rightHx.reset()
}
