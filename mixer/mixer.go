package mixer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gesturemix/deck"
	"github.com/opd-ai/gesturemix/session"
)

// MaxCutLag bounds the crossfader dead zone at the extremes.
const MaxCutLag = 50 * time.Millisecond

// Effect return defaults.
const (
	DefaultEffectDelay    = 250 * time.Millisecond
	DefaultEffectFeedback = 0.4
)

// Mixer is the crossfader and master bus: it blends the two deck outputs
// by the active curve and runs the sum through the session's master chain.
type Mixer struct {
	session *session.Session
	deckA   *deck.Deck
	deckB   *deck.Deck

	crossfade *session.CrossfadeNode

	// Shared effect return: both decks' send taps run through this delay
	// and the wet output is summed into the mix after the crossfade.
	effect *session.DelayNode

	mu       sync.Mutex
	position float64
	curve    Curve
	cutLag   time.Duration

	// Sync relationship; zero value means not synced.
	syncActive bool
	syncMaster int
	syncSlave  int

	positionCallback func(position float64)
	syncCallback     func(engaged bool, masterID int)

	// Scratch buffers reused across RenderInto calls.
	bufA    []int16
	bufB    []int16
	bufTap  []int16
	bufSend []int16
}

// New creates a mixer bus over the two decks. The session must be
// initialized; the crossfade node is created through it.
func New(sess *session.Session, deckA, deckB *deck.Deck) (*Mixer, error) {
	logrus.WithFields(logrus.Fields{
		"function": "mixer.New",
		"deck_a":   deckA.ID(),
		"deck_b":   deckB.ID(),
	}).Info("Creating mixer bus")

	crossfade, err := sess.CreateCrossfade(0)
	if err != nil {
		return nil, fmt.Errorf("mixer crossfade: %w", err)
	}
	effect, err := sess.CreateDelay(DefaultEffectDelay, DefaultEffectFeedback)
	if err != nil {
		return nil, fmt.Errorf("mixer effect return: %w", err)
	}

	m := &Mixer{
		session:   sess,
		deckA:     deckA,
		deckB:     deckB,
		crossfade: crossfade,
		effect:    effect,
		curve:     CurveLogarithmic,
		bufA:      make([]int16, sess.BufferSize()),
		bufB:      make([]int16, sess.BufferSize()),
		bufTap:    make([]int16, sess.BufferSize()),
		bufSend:   make([]int16, sess.BufferSize()),
	}
	// Center the fader through the active curve.
	m.applyPosition(0)
	return m, nil
}

// DeckA returns the deck on the -1 side of the crossfader.
func (m *Mixer) DeckA() *deck.Deck { return m.deckA }

// DeckB returns the deck on the +1 side of the crossfader.
func (m *Mixer) DeckB() *deck.Deck { return m.deckB }

// SetPositionCallback registers a callback for crossfader movement.
// Delivery is synchronous on the calling goroutine.
func (m *Mixer) SetPositionCallback(callback func(position float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionCallback = callback
}

// SetSyncCallback registers a callback for sync engage/disengage events.
func (m *Mixer) SetSyncCallback(callback func(engaged bool, masterID int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCallback = callback
}

// SetCrossfaderPosition moves the crossfader. The value is clamped to
// [-1, +1] and mapped through the currently selected curve and cut-lag
// before the channel gains are updated.
func (m *Mixer) SetCrossfaderPosition(position float64) {
	if position < -1 {
		position = -1
	} else if position > 1 {
		position = 1
	}
	m.mu.Lock()
	m.applyPosition(position)
	callback := m.positionCallback
	m.mu.Unlock()

	if callback != nil {
		callback(position)
	}
}

// applyPosition recomputes the gain pair for position under the active
// curve and cut-lag. Caller holds m.mu.
func (m *Mixer) applyPosition(position float64) {
	m.position = position
	effective := m.applyCutLag(position)
	gainA, gainB := m.curve.Gains(effective)
	m.crossfade.SetGains(gainA, gainB)

	logrus.WithFields(logrus.Fields{
		"function": "Mixer.applyPosition",
		"position": position,
		"curve":    m.curve.String(),
		"gain_a":   gainA,
		"gain_b":   gainB,
	}).Debug("Crossfader position applied")
}

// applyCutLag expands the position so the opposite channel reaches full
// silence slightly before the mechanical extreme. The cut-lag duration
// maps to a fraction of fader travel (50 ms ≙ 10% of travel on each side).
func (m *Mixer) applyCutLag(position float64) float64 {
	if m.cutLag <= 0 {
		return position
	}
	fraction := float64(m.cutLag) / float64(MaxCutLag) * 0.1
	scaled := position / (1 - fraction)
	if scaled > 1 {
		return 1
	}
	if scaled < -1 {
		return -1
	}
	return scaled
}

// CrossfaderPosition returns the last applied position.
func (m *Mixer) CrossfaderPosition() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// SetCrossfaderCurve selects the fade curve. The change takes effect on
// the next position update; gains held from the previous position are not
// recomputed retroactively.
func (m *Mixer) SetCrossfaderCurve(curve Curve) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.curve = curve
	logrus.WithFields(logrus.Fields{
		"function": "Mixer.SetCrossfaderCurve",
		"curve":    curve.String(),
	}).Info("Crossfader curve selected")
}

// CrossfaderCurve returns the active fade curve.
func (m *Mixer) CrossfaderCurve() Curve {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curve
}

// SetCutLag configures the dead zone at the fader extremes, clamped to
// [0, 50ms]. Takes effect on the next position update.
func (m *Mixer) SetCutLag(lag time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lag < 0 {
		lag = 0
	}
	if lag > MaxCutLag {
		lag = MaxCutLag
	}
	m.cutLag = lag
}

// ChannelGains returns the current (deckA, deckB) gain targets.
func (m *Mixer) ChannelGains() (float64, float64) {
	return m.crossfade.Gains()
}

// SetMasterVolume ramps the master gain toward level, clamped to [0, 1].
func (m *Mixer) SetMasterVolume(level float64) error {
	return m.session.SetMasterVolume(level)
}

// MasterVolume returns the master gain target level.
func (m *Mixer) MasterVolume() float64 {
	return m.session.MasterVolume()
}

// SetLimiterEnabled toggles the master limiter.
func (m *Mixer) SetLimiterEnabled(enabled bool) error {
	limiter := m.session.Limiter()
	if limiter == nil {
		return session.ErrSessionNotReady
	}
	limiter.SetEnabled(enabled)
	logrus.WithFields(logrus.Fields{
		"function": "Mixer.SetLimiterEnabled",
		"enabled":  enabled,
	}).Info("Master limiter toggled")
	return nil
}

// SetEffectParams configures the shared effect return: delay time clamped
// to [1ms, 2s] and feedback to [0, 0.95]. Takes effect on the next render.
func (m *Mixer) SetEffectParams(delay time.Duration, feedback float64) {
	m.effect.SetParams(delay, feedback)
	logrus.WithFields(logrus.Fields{
		"function": "Mixer.SetEffectParams",
		"delay":    delay.String(),
		"feedback": feedback,
	}).Info("Effect return configured")
}

// EffectParams returns the effect return's stored delay time and feedback.
func (m *Mixer) EffectParams() (time.Duration, float64) {
	return m.effect.Params()
}

// deckByID resolves a deck identifier to the deck and its counterpart.
func (m *Mixer) deckByID(id int) (master, slave *deck.Deck, err error) {
	switch id {
	case m.deckA.ID():
		return m.deckA, m.deckB, nil
	case m.deckB.ID():
		return m.deckB, m.deckA, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownDeck, id)
	}
}

// Sync aligns the non-master deck's playback rate to the master deck's
// tempo by computing a pitch adjustment within the deck's ±8% range.
// All-or-nothing: if the required adjustment exceeds the range, the sync
// fails with ErrSyncRangeExceeded and nothing changes.
func (m *Mixer) Sync(masterID int) error {
	master, slave, err := m.deckByID(masterID)
	if err != nil {
		return err
	}

	masterTempo := master.Tempo()
	slaveTempo := slave.Tempo()
	if masterTempo <= 0 || slaveTempo <= 0 {
		logrus.WithFields(logrus.Fields{
			"function":     "Mixer.Sync",
			"master_id":    masterID,
			"master_tempo": masterTempo,
			"slave_tempo":  slaveTempo,
		}).Error("Sync rejected, tempo unknown")
		return ErrTempoUnknown
	}

	// Effective slave tempo already includes its pitch; the adjustment is
	// computed against the deck's base tempo.
	required := (masterTempo/slaveTempo - 1) * 100
	if required > deck.MaxPitchPercent || required < -deck.MaxPitchPercent {
		logrus.WithFields(logrus.Fields{
			"function":       "Mixer.Sync",
			"master_id":      masterID,
			"required_pitch": required,
			"pitch_range":    deck.MaxPitchPercent,
		}).Error("Sync rejected, required pitch outside deck range")
		return fmt.Errorf("%w: %.2f%% needed", ErrSyncRangeExceeded, required)
	}

	slave.SetPitch(required)

	m.mu.Lock()
	m.syncActive = true
	m.syncMaster = master.ID()
	m.syncSlave = slave.ID()
	callback := m.syncCallback
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":      "Mixer.Sync",
		"master_id":     master.ID(),
		"slave_id":      slave.ID(),
		"pitch_applied": required,
	}).Info("Tempo sync engaged")

	if callback != nil {
		callback(true, master.ID())
	}
	return nil
}

// Unsync removes the active sync relationship. Each deck's pitch stays at
// its last applied value; callers that want the slave back at zero pitch
// set it explicitly.
func (m *Mixer) Unsync() error {
	m.mu.Lock()
	if !m.syncActive {
		m.mu.Unlock()
		return ErrNotSynced
	}
	masterID := m.syncMaster
	m.syncActive = false
	m.syncMaster = 0
	m.syncSlave = 0
	callback := m.syncCallback
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Mixer.Unsync",
		"master_id": masterID,
	}).Info("Tempo sync disengaged")

	if callback != nil {
		callback(false, masterID)
	}
	return nil
}

// Synced reports the active sync relationship, if any.
func (m *Mixer) Synced() (active bool, masterID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncActive, m.syncMaster
}

// RenderInto renders one buffer of the full mix into dst: both decks are
// pulled, their send taps run through the shared effect return, the dry
// outputs are blended by the crossfader gains, the return is summed back in
// and the total runs through the master chain (gain → compressor → limiter).
//
// The send taps are taken before the crossfade, so a channel faded out of
// the mix can still feed the effect.
func (m *Mixer) RenderInto(dst []int16) error {
	m.mu.Lock()
	if len(m.bufA) < len(dst) {
		m.bufA = make([]int16, len(dst))
		m.bufB = make([]int16, len(dst))
		m.bufTap = make([]int16, len(dst))
		m.bufSend = make([]int16, len(dst))
	}
	bufA := m.bufA[:len(dst)]
	bufB := m.bufB[:len(dst)]
	bufTap := m.bufTap[:len(dst)]
	bufSend := m.bufSend[:len(dst)]
	m.mu.Unlock()

	m.deckA.Render(bufA)
	m.deckB.Render(bufB)

	// Per-channel effect sends, summed into the shared return.
	for i := range bufSend {
		bufSend[i] = 0
	}
	if err := m.deckA.ProcessSend(bufA, bufTap); err != nil {
		return fmt.Errorf("deck A send: %w", err)
	}
	mixInto(bufSend, bufTap)
	if err := m.deckB.ProcessSend(bufB, bufTap); err != nil {
		return fmt.Errorf("deck B send: %w", err)
	}
	mixInto(bufSend, bufTap)
	if _, err := m.effect.Process(bufSend); err != nil {
		return fmt.Errorf("effect return: %w", err)
	}

	if err := m.crossfade.Blend(dst, bufA, bufB); err != nil {
		return fmt.Errorf("crossfade blend: %w", err)
	}
	mixInto(dst, bufSend)
	if _, err := m.session.RenderMaster(dst); err != nil {
		return fmt.Errorf("master chain: %w", err)
	}
	return nil
}

// mixInto adds src into dst sample by sample with clipping.
func mixInto(dst, src []int16) {
	for i := range dst {
		sum := int32(dst[i]) + int32(src[i])
		if sum > math.MaxInt16 {
			sum = math.MaxInt16
		} else if sum < math.MinInt16 {
			sum = math.MinInt16
		}
		dst[i] = int16(sum)
	}
}
