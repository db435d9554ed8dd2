package smoothing

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gesturemix/gesture"
)

// Filter smooths one scalar coordinate stream frame by frame.
type Filter interface {
	// Step consumes one observation and returns the filtered value.
	Step(z float64) float64
	// Reset discards all filter state.
	Reset()
}

// coordsPerLandmark covers X, Y and Z of each tracked point.
const coordsPerLandmark = 3

// handBank is the per-hand array of coordinate filters.
type handBank struct {
	filters [gesture.LandmarkCount][coordsPerLandmark]Filter
}

func newHandBank(factory func() Filter) *handBank {
	b := &handBank{}
	for i := range b.filters {
		for j := range b.filters[i] {
			b.filters[i][j] = factory()
		}
	}
	return b
}

// apply returns a smoothed copy of the hand; confidence passes through.
func (b *handBank) apply(hand *gesture.HandLandmarks) *gesture.HandLandmarks {
	out := &gesture.HandLandmarks{Confidence: hand.Confidence}
	for i, p := range hand.Points {
		out.Points[i] = gesture.Point{
			X: b.filters[i][0].Step(p.X),
			Y: b.filters[i][1].Step(p.Y),
			Z: b.filters[i][2].Step(p.Z),
		}
	}
	return out
}

func (b *handBank) reset() {
	for i := range b.filters {
		for j := range b.filters[i] {
			b.filters[i][j].Reset()
		}
	}
}

// Smoother filters both hands of the landmark stream. It is stateful
// across frames and not safe for concurrent use; the frame pipeline
// processes one frame at a time.
type Smoother struct {
	left  *handBank
	right *handBank
}

// NewSmoother creates a smoother whose per-coordinate filters come from
// the given factory.
func NewSmoother(factory func() Filter) *Smoother {
	return &Smoother{
		left:  newHandBank(factory),
		right: newHandBank(factory),
	}
}

// NewKalmanSmoother creates a smoother backed by constant-velocity
// Kalman filters, the default pipeline configuration.
func NewKalmanSmoother(config KalmanConfig) *Smoother {
	logrus.WithFields(logrus.Fields{
		"function":          "NewKalmanSmoother",
		"process_noise":     config.ProcessNoise,
		"measurement_noise": config.MeasurementNoise,
		"frame_interval":    config.FrameInterval,
	}).Info("Creating Kalman landmark smoother")
	return NewSmoother(func() Filter { return NewKalman1D(config) })
}

// NewEMASmoother creates a smoother backed by exponential moving
// averages with the given blend weight.
func NewEMASmoother(alpha float64) *Smoother {
	logrus.WithFields(logrus.Fields{
		"function": "NewEMASmoother",
		"alpha":    alpha,
	}).Info("Creating EMA landmark smoother")
	return NewSmoother(func() Filter { return NewEMA(alpha) })
}

// Smooth returns a filtered copy of the frame. A hand absent from the
// frame resets its filter bank so reacquired tracking reinitializes from
// its first observation instead of converging from stale state.
func (s *Smoother) Smooth(frame *gesture.LandmarkFrame) *gesture.LandmarkFrame {
	out := &gesture.LandmarkFrame{Timestamp: frame.Timestamp}

	if frame.Left != nil {
		out.Left = s.left.apply(frame.Left)
	} else {
		s.left.reset()
	}

	if frame.Right != nil {
		out.Right = s.right.apply(frame.Right)
	} else {
		s.right.reset()
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Smoother.Smooth",
		"hand_count": frame.HandCount(),
	}).Debug("Frame smoothed")
	return out
}

// Reset clears both filter banks.
func (s *Smoother) Reset() {
	s.left.reset()
	s.right.reset()
}
