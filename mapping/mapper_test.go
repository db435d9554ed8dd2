package mapping

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/gesturemix/gesture"
)

// recordingSurface captures dispatched control changes for assertions.
type recordingSurface struct {
	continuous []continuousCall
	discrete   []discreteCall
	err        error
}

type continuousCall struct {
	target Target
	value  float64
}

type discreteCall struct {
	target  Target
	engaged bool
}

func (s *recordingSurface) ApplyContinuous(target Target, value float64) error {
	if s.err != nil {
		return s.err
	}
	s.continuous = append(s.continuous, continuousCall{target, value})
	return nil
}

func (s *recordingSurface) ApplyDiscrete(target Target, engaged bool) error {
	if s.err != nil {
		return s.err
	}
	s.discrete = append(s.discrete, discreteCall{target, engaged})
	return nil
}

func newTestMapper(t *testing.T) (*Mapper, *recordingSurface) {
	t.Helper()
	surface := &recordingSurface{}
	mp, err := NewMapper(surface)
	require.NoError(t, err)
	return mp, surface
}

func pinchResult(hand gesture.HandSide, value float64) gesture.Result {
	return gesture.Result{Type: gesture.GesturePinch, Hand: hand, Confidence: 0.9, Value: value}
}

func fistResult() gesture.Result {
	return gesture.Result{Type: gesture.GestureClosedFist, Hand: gesture.HandRight, Confidence: 0.9}
}

func TestNewMapperRequiresSurface(t *testing.T) {
	_, err := NewMapper(nil)
	assert.ErrorIs(t, err, ErrNilSurface)
}

func TestContinuousDispatchRoutesValue(t *testing.T) {
	mp, surface := newTestMapper(t)

	// A right-hand pinch at 0.8 lands on channel 0's volume.
	_, err := mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandRightOnly,
		Target:  Target{Channel: 0, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandRight, 0.8)})

	require.Len(t, surface.continuous, 1)
	assert.Equal(t, Target{Channel: 0, Control: ControlChannelVolume}, surface.continuous[0].target)
	assert.InDelta(t, 0.8, surface.continuous[0].value, 1e-9)
}

func TestHandFilterRejectsOtherSide(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandLeftOnly,
		Target:  Target{Channel: 0, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandRight, 0.8)})
	assert.Empty(t, surface.continuous)
}

func TestHandEitherMatchesBothSides(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandEither,
		Target:  Target{Channel: 1, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.2)})
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandRight, 0.6)})
	assert.Len(t, surface.continuous, 2)
}

func TestDeadzoneAndSensitivityTransform(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture:     gesture.GesturePinch,
		Hand:        HandEither,
		Target:      Target{Channel: 0, Control: ControlChannelVolume},
		Mode:        ModeContinuous,
		Deadzone:    0.2,
		Sensitivity: 2.0,
	})
	require.NoError(t, err)

	// Below the deadzone the output pins to zero.
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.1)})
	// 0.6 rescales to 0.5 past the deadzone, then doubles to 1.0.
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.6)})
	// Sensitivity output clamps at 1.
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.9)})

	require.Len(t, surface.continuous, 3)
	assert.InDelta(t, 0.0, surface.continuous[0].value, 1e-9)
	assert.InDelta(t, 1.0, surface.continuous[1].value, 1e-9)
	assert.InDelta(t, 1.0, surface.continuous[2].value, 1e-9)
}

func TestInvertFlipsValue(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandEither,
		Target:  Target{Channel: 0, Control: ControlChannelFilter},
		Mode:    ModeContinuous,
		Invert:  true,
	})
	require.NoError(t, err)

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.3)})
	require.Len(t, surface.continuous, 1)
	assert.InDelta(t, 0.7, surface.continuous[0].value, 1e-9)
}

func TestTriggerFiresOncePerEngagement(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture: gesture.GestureClosedFist,
		Hand:    HandEither,
		Target:  Target{Channel: 0, Control: ControlStop},
		Mode:    ModeTrigger,
	})
	require.NoError(t, err)

	// Fifty consecutive frames of the same fist fire exactly once.
	for i := 0; i < 50; i++ {
		mp.DispatchAll([]gesture.Result{fistResult()})
	}
	require.Len(t, surface.discrete, 1)
	assert.True(t, surface.discrete[0].engaged)

	// Release re-arms; the next fist fires again.
	mp.DispatchAll(nil)
	mp.DispatchAll([]gesture.Result{fistResult()})
	assert.Len(t, surface.discrete, 2)
}

func TestToggleFlipsOnEachRisingEdge(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture: gesture.GestureOpenPalm,
		Hand:    HandEither,
		Target:  Target{Channel: 0, Control: ControlPlay},
		Mode:    ModeToggle,
	})
	require.NoError(t, err)

	palm := gesture.Result{Type: gesture.GestureOpenPalm, Hand: gesture.HandLeft, Confidence: 0.9}

	// Held palm flips once to on.
	for i := 0; i < 10; i++ {
		mp.DispatchAll([]gesture.Result{palm})
	}
	require.Len(t, surface.discrete, 1)
	assert.True(t, surface.discrete[0].engaged)

	// Release and re-present: flips back off.
	mp.DispatchAll(nil)
	mp.DispatchAll([]gesture.Result{palm})
	require.Len(t, surface.discrete, 2)
	assert.False(t, surface.discrete[1].engaged)
}

func TestThresholdGatesEngagement(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture:   gesture.GesturePinch,
		Hand:      HandEither,
		Target:    Target{Channel: 0, Control: ControlCueTrigger},
		Mode:      ModeTrigger,
		Threshold: 0.7,
	})
	require.NoError(t, err)

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.5)})
	assert.Empty(t, surface.discrete, "below threshold must not fire")

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.9)})
	assert.Len(t, surface.discrete, 1)

	// Dropping below the threshold releases and re-arms.
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.2)})
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.9)})
	assert.Len(t, surface.discrete, 2)
}

func TestAddValidation(t *testing.T) {
	mp, _ := newTestMapper(t)

	_, err := mp.Add(Mapping{Mode: ModeContinuous, Target: Target{Control: ControlChannelVolume}})
	assert.ErrorIs(t, err, ErrInvalidMapping, "gesture none must be rejected")

	_, err = mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Target:  Target{Control: ControlPlay},
		Mode:    ModeContinuous,
	})
	assert.ErrorIs(t, err, ErrInvalidMapping, "discrete control cannot take a continuous stream")

	_, err = mp.Add(Mapping{
		Gesture: gesture.GestureOpenPalm,
		Target:  Target{Control: ControlChannelVolume},
		Mode:    ModeToggle,
	})
	assert.ErrorIs(t, err, ErrInvalidMapping, "continuous control requires continuous mode")

	_, err = mp.Add(Mapping{
		Gesture:  gesture.GesturePinch,
		Target:   Target{Control: ControlChannelVolume},
		Mode:     ModeContinuous,
		Deadzone: 1.5,
	})
	assert.ErrorIs(t, err, ErrInvalidMapping)
}

func TestRemoveMapping(t *testing.T) {
	mp, surface := newTestMapper(t)
	id, err := mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandEither,
		Target:  Target{Channel: 0, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)

	require.NoError(t, mp.Remove(id))
	assert.ErrorIs(t, mp.Remove(id), ErrMappingNotFound)
	assert.ErrorIs(t, mp.Remove(uuid.New()), ErrMappingNotFound)

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.5)})
	assert.Empty(t, surface.continuous)
	assert.Empty(t, mp.Mappings())
}

func TestSurfaceErrorsDoNotStopDispatch(t *testing.T) {
	surface := &recordingSurface{err: errors.New("deck busy")}
	mp, err := NewMapper(surface)
	require.NoError(t, err)

	_, err = mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandEither,
		Target:  Target{Channel: 0, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)

	// Must not panic or abort; the error is logged and dropped.
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.5)})

	surface.err = nil
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.5)})
	assert.Len(t, surface.continuous, 1)
}

func TestDefaultProfileInstalls(t *testing.T) {
	mp, _ := newTestMapper(t)
	for _, m := range DefaultProfile() {
		_, err := mp.Add(m)
		require.NoError(t, err, "default profile mapping %s must validate", m.Target.String())
	}
	assert.Len(t, mp.Mappings(), len(DefaultProfile()))
}

func TestConflictingMappingReplacesPrevious(t *testing.T) {
	mp, surface := newTestMapper(t)

	first, err := mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandRightOnly,
		Target:  Target{Channel: 0, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)

	// Same (gesture, hand) pair with a new target takes over.
	second, err := mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandRightOnly,
		Target:  Target{Channel: 1, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandRight, 0.4)})
	require.Len(t, surface.continuous, 1)
	assert.Equal(t, 1, surface.continuous[0].target.Channel)

	// A different hand filter is not a conflict.
	_, err = mp.Add(Mapping{
		Gesture: gesture.GesturePinch,
		Hand:    HandLeftOnly,
		Target:  Target{Channel: 0, Control: ControlChannelVolume},
		Mode:    ModeContinuous,
	})
	require.NoError(t, err)
	assert.Len(t, mp.Mappings(), 2)
}

func TestOutputSmoothingLagsStepChanges(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture:   gesture.GesturePinch,
		Hand:      HandEither,
		Target:    Target{Channel: 0, Control: ControlChannelVolume},
		Mode:      ModeContinuous,
		Smoothing: 0.2,
	})
	require.NoError(t, err)

	// First frame seeds the smoother and passes through.
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 0.0)})
	// A step to 1.0 arrives gradually instead of instantly.
	mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 1.0)})

	require.Len(t, surface.continuous, 2)
	assert.InDelta(t, 0.0, surface.continuous[0].value, 1e-9)
	assert.Greater(t, surface.continuous[1].value, 0.0)
	assert.Less(t, surface.continuous[1].value, 0.5)

	// Sustained input converges on the target.
	for i := 0; i < 100; i++ {
		mp.DispatchAll([]gesture.Result{pinchResult(gesture.HandLeft, 1.0)})
	}
	last := surface.continuous[len(surface.continuous)-1]
	assert.InDelta(t, 1.0, last.value, 0.01)
}

func TestResetClearsToggleState(t *testing.T) {
	mp, surface := newTestMapper(t)
	_, err := mp.Add(Mapping{
		Gesture: gesture.GestureOpenPalm,
		Hand:    HandEither,
		Target:  Target{Channel: 0, Control: ControlPlay},
		Mode:    ModeToggle,
	})
	require.NoError(t, err)

	palm := gesture.Result{Type: gesture.GestureOpenPalm, Hand: gesture.HandLeft, Confidence: 0.9}
	mp.DispatchAll([]gesture.Result{palm})
	require.Len(t, surface.discrete, 1)
	assert.True(t, surface.discrete[0].engaged)

	mp.Reset()

	// After a reset the next palm is a fresh rising edge starting from off.
	mp.DispatchAll([]gesture.Result{palm})
	require.Len(t, surface.discrete, 2)
	assert.True(t, surface.discrete[1].engaged)
}
