package gesturemix

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gesturemix/deck"
	"github.com/opd-ai/gesturemix/gesture"
	"github.com/opd-ai/gesturemix/gesture/smoothing"
	"github.com/opd-ai/gesturemix/mapping"
	"github.com/opd-ai/gesturemix/mixer"
	"github.com/opd-ai/gesturemix/session"
)

// ErrUnknownChannel is returned when a mapped control names a channel
// the rig does not have.
var ErrUnknownChannel = errors.New("unknown channel")

// defaultFilterResonance is applied when the filter cutoff is driven by
// gesture, a mild emphasis that keeps sweeps audible without ringing.
const defaultFilterResonance = 0.7

// Config assembles the per-layer configurations of a rig.
type Config struct {
	// Session configures the audio session and master chain.
	Session session.Config
	// Recognizer configures gesture classification and confidence.
	Recognizer gesture.Config
	// Smoothing configures the Kalman landmark filters.
	Smoothing smoothing.KalmanConfig
	// UseEMASmoothing selects the exponential-moving-average smoother
	// instead of the Kalman filter bank.
	UseEMASmoothing bool
	// EMAAlpha is the EMA blend weight when UseEMASmoothing is set; zero
	// uses the package default.
	EMAAlpha float64
	// InstallDefaultProfile installs the stock gesture mappings.
	InstallDefaultProfile bool
}

// DefaultConfig returns a rig configuration with every layer at its
// defaults and the stock mapping profile installed.
func DefaultConfig() *Config {
	return &Config{
		Session:               session.DefaultConfig(),
		Recognizer:            gesture.DefaultConfig(),
		Smoothing:             smoothing.DefaultKalmanConfig(),
		InstallDefaultProfile: true,
	}
}

// Rig is the top-level mixer instance: audio session, two decks, the
// crossfader bus and the gesture pipeline, wired together.
//
// Frame handling follows a latest-wins discipline: SubmitFrame replaces
// any frame still waiting, and ProcessPending consumes at most one frame
// per call. Frames are never queued deeper than one and never processed
// concurrently.
type Rig struct {
	config *Config

	session *session.Session
	deckA   *deck.Deck
	deckB   *deck.Deck
	mixer   *mixer.Mixer

	smoother   *smoothing.Smoother
	recognizer *gesture.Recognizer
	mapper     *mapping.Mapper

	// pending is the depth-1 frame slot.
	frameMu sync.Mutex
	pending *gesture.LandmarkFrame
	dropped uint64

	// processMu serializes pipeline runs.
	processMu    sync.Mutex
	handsPresent bool

	callbackMu       sync.Mutex
	gestureCallback  func(result gesture.Result)
	trackingCallback func(present bool)
}

// New creates and initializes a rig. The activation token carries the
// user-interaction requirement through to session initialization, and
// the track source backs both decks' loads.
func New(config *Config, activation *session.UserActivation, source deck.TrackSource) (*Rig, error) {
	if config == nil {
		config = DefaultConfig()
	}
	logrus.WithFields(logrus.Fields{
		"function":    "gesturemix.New",
		"sample_rate": config.Session.SampleRate,
		"buffer_size": config.Session.BufferSize,
	}).Info("Creating rig")

	sess, err := session.New(config.Session)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if err := sess.Initialize(activation); err != nil {
		return nil, fmt.Errorf("session initialize: %w", err)
	}

	deckA, err := deck.New(0, sess, source)
	if err != nil {
		sess.Dispose()
		return nil, err
	}
	deckB, err := deck.New(1, sess, source)
	if err != nil {
		sess.Dispose()
		return nil, err
	}
	mix, err := mixer.New(sess, deckA, deckB)
	if err != nil {
		sess.Dispose()
		return nil, err
	}

	var smoother *smoothing.Smoother
	if config.UseEMASmoothing {
		smoother = smoothing.NewEMASmoother(config.EMAAlpha)
	} else {
		smoother = smoothing.NewKalmanSmoother(config.Smoothing)
	}

	r := &Rig{
		config:     config,
		session:    sess,
		deckA:      deckA,
		deckB:      deckB,
		mixer:      mix,
		smoother:   smoother,
		recognizer: gesture.NewRecognizer(config.Recognizer),
	}

	mapper, err := mapping.NewMapper(r)
	if err != nil {
		sess.Dispose()
		return nil, err
	}
	r.mapper = mapper

	if config.InstallDefaultProfile {
		for _, m := range mapping.DefaultProfile() {
			if _, err := mapper.Add(m); err != nil {
				sess.Dispose()
				return nil, fmt.Errorf("default profile: %w", err)
			}
		}
	}
	return r, nil
}

// Session returns the underlying audio session.
func (r *Rig) Session() *session.Session { return r.session }

// DeckA returns channel 0, the deck on the -1 crossfader side.
func (r *Rig) DeckA() *deck.Deck { return r.deckA }

// DeckB returns channel 1, the deck on the +1 crossfader side.
func (r *Rig) DeckB() *deck.Deck { return r.deckB }

// Mixer returns the crossfader and master bus.
func (r *Rig) Mixer() *mixer.Mixer { return r.mixer }

// Mapper returns the gesture-to-control mapping table.
func (r *Rig) Mapper() *mapping.Mapper { return r.mapper }

// SetGestureCallback registers a callback invoked for every recognition
// result that passed the confidence filter. Delivery is synchronous on
// the ProcessPending goroutine.
func (r *Rig) SetGestureCallback(callback func(result gesture.Result)) {
	r.callbackMu.Lock()
	defer r.callbackMu.Unlock()
	r.gestureCallback = callback
}

// SetTrackingCallback registers a callback for hand presence changes:
// true when hands appear after an empty stretch, false when tracking is
// lost.
func (r *Rig) SetTrackingCallback(callback func(present bool)) {
	r.callbackMu.Lock()
	defer r.callbackMu.Unlock()
	r.trackingCallback = callback
}

// SubmitFrame offers a landmark frame to the pipeline. The newest frame
// always wins: a frame still waiting is replaced, never queued behind.
func (r *Rig) SubmitFrame(frame *gesture.LandmarkFrame) {
	if frame == nil {
		return
	}
	r.frameMu.Lock()
	if r.pending != nil {
		r.dropped++
	}
	r.pending = frame
	r.frameMu.Unlock()
}

// DroppedFrames returns how many submitted frames were replaced before
// being processed.
func (r *Rig) DroppedFrames() uint64 {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.dropped
}

// ProcessPending runs the newest submitted frame through the pipeline:
// smoothing, recognition, then control dispatch. It reports whether a
// frame was consumed. Concurrent calls serialize; frames are never
// processed in parallel.
func (r *Rig) ProcessPending() bool {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	r.frameMu.Lock()
	frame := r.pending
	r.pending = nil
	r.frameMu.Unlock()
	if frame == nil {
		return false
	}

	smoothed := r.smoother.Smooth(frame)
	r.notifyTracking(smoothed.HandCount() > 0)

	results := r.recognizer.Recognize(smoothed)
	r.mapper.DispatchAll(results)

	r.callbackMu.Lock()
	callback := r.gestureCallback
	r.callbackMu.Unlock()
	if callback != nil {
		for _, result := range results {
			callback(result)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Rig.ProcessPending",
		"hand_count":   smoothed.HandCount(),
		"result_count": len(results),
	}).Debug("Frame processed")
	return true
}

// notifyTracking fires the tracking callback on presence transitions.
// Caller holds processMu.
func (r *Rig) notifyTracking(present bool) {
	if present == r.handsPresent {
		return
	}
	r.handsPresent = present
	if !present {
		// Lost tracking also clears mapper edge state so a reacquired
		// gesture starts a fresh engagement.
		r.mapper.Reset()
	}

	r.callbackMu.Lock()
	callback := r.trackingCallback
	r.callbackMu.Unlock()
	if callback != nil {
		callback(present)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Rig.notifyTracking",
		"present":  present,
	}).Info("Hand tracking presence changed")
}

// deckFor resolves a mapped channel number.
func (r *Rig) deckFor(channel int) (*deck.Deck, error) {
	switch channel {
	case 0:
		return r.deckA, nil
	case 1:
		return r.deckB, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
}

// ApplyContinuous implements mapping.ControlSurface for streamed
// controls. Values arrive in [0, 1] and are scaled to each control's
// native range.
func (r *Rig) ApplyContinuous(target mapping.Target, value float64) error {
	if target.Control == mapping.ControlCrossfader {
		r.mixer.SetCrossfaderPosition(value*2 - 1)
		return nil
	}

	d, err := r.deckFor(target.Channel)
	if err != nil {
		return err
	}
	switch target.Control {
	case mapping.ControlChannelVolume:
		d.SetVolume(value)
	case mapping.ControlChannelEQLow:
		d.SetEQBand(session.EQLow, eqGainFromValue(value))
	case mapping.ControlChannelEQMid:
		d.SetEQBand(session.EQMid, eqGainFromValue(value))
	case mapping.ControlChannelEQHigh:
		d.SetEQBand(session.EQHigh, eqGainFromValue(value))
	case mapping.ControlChannelFilter:
		d.SetFilter(session.FilterLowPass, filterFrequencyFromValue(value), defaultFilterResonance)
	default:
		return fmt.Errorf("control %s is not continuous", target.Control)
	}
	return nil
}

// ApplyDiscrete implements mapping.ControlSurface for toggle and
// trigger controls.
func (r *Rig) ApplyDiscrete(target mapping.Target, engaged bool) error {
	d, err := r.deckFor(target.Channel)
	if err != nil {
		return err
	}
	switch target.Control {
	case mapping.ControlPlay:
		if engaged {
			return d.Play()
		}
		return d.Pause()
	case mapping.ControlStop:
		return d.Stop()
	case mapping.ControlCueTrigger:
		return r.jumpToFirstCue(d)
	default:
		return fmt.Errorf("control %s is not discrete", target.Control)
	}
}

// jumpToFirstCue jumps to the lowest set cue slot.
func (r *Rig) jumpToFirstCue(d *deck.Deck) error {
	for i := 0; i < deck.MaxCuePoints; i++ {
		if _, set := d.CuePoint(i); set {
			return d.JumpToCue(i)
		}
	}
	return deck.ErrCueNotSet
}

// eqGainFromValue maps a unit control value onto the EQ gain range, with
// 0.5 at flat.
func eqGainFromValue(value float64) float64 {
	return session.MinEQGainDB + value*(session.MaxEQGainDB-session.MinEQGainDB)
}

// filterFrequencyFromValue maps a unit control value onto the filter's
// 20 Hz – 20 kHz range on a logarithmic scale.
func filterFrequencyFromValue(value float64) float64 {
	span := session.MaxFilterFrequency / session.MinFilterFrequency
	return session.MinFilterFrequency * math.Pow(span, value)
}

// RenderInto renders one buffer of the full mix, a convenience passing
// through to the mixer bus.
func (r *Rig) RenderInto(dst []int16) error {
	return r.mixer.RenderInto(dst)
}

// Close tears down the rig: the session is disposed, releasing every
// audio node. The rig must not be used afterwards.
func (r *Rig) Close() {
	logrus.WithField("function", "Rig.Close").Info("Closing rig")
	r.session.Dispose()
}
