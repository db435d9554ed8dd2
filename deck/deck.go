package deck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gesturemix/session"
)

// State represents the playback state of a deck.
type State uint8

const (
	// StateEmpty indicates no track is loaded.
	StateEmpty State = iota
	// StateLoading indicates an asynchronous load is in flight.
	StateLoading
	// StateLoaded indicates a track is loaded and ready to play.
	StateLoaded
	// StatePlaying indicates the track is playing.
	StatePlaying
	// StatePaused indicates playback is paused with position preserved.
	StatePaused
	// StateStopped indicates playback stopped with position reset to zero;
	// the track remains loaded and ready to replay.
	StateStopped
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Deck limits.
const (
	// MaxCuePoints is the number of cue slots per deck.
	MaxCuePoints = 8
	// MaxPitchPercent bounds pitch adjustment to ±8%.
	MaxPitchPercent = 8.0
)

// LoopRegion describes a playback loop within the track.
type LoopRegion struct {
	Start  time.Duration
	End    time.Duration
	Active bool
}

// Deck is one mixer channel: a playable track plus its processing chain
// (equalizer → filter → channel gain) and transport state.
//
// All methods are safe for use from the control goroutine; rendering pulls
// samples through Render, which the mixer bus calls once per buffer.
type Deck struct {
	id      int
	session *session.Session
	source  TrackSource

	mu    sync.Mutex
	state State
	track *Track

	// position is the playhead in fractional frames; pitch adjustment makes
	// the per-sample step non-integral.
	position float64
	pitch    float64 // percent, clamped to ±MaxPitchPercent

	// Processing chain nodes; owned by the session, held by reference.
	gain   *session.GainNode
	eq     *session.EqualizerNode
	filter *session.FilterNode
	send   *session.GainNode // effect send level

	cues   [MaxCuePoints]time.Duration
	cueSet [MaxCuePoints]bool
	loop   LoopRegion

	// tempoOverride, when non-zero, takes precedence over the track's
	// analysed BPM. Set via SetTempo.
	tempoOverride float64

	// Load supersession: the generation counter identifies the newest load;
	// completions from older generations are discarded whole.
	loadGeneration uint64
	loadCancel     context.CancelFunc

	stateCallback func(id int, state State)
	errorCallback func(id int, err error)
}

// New creates a deck bound to the given session and track source. The
// session must be initialized: node creation fails with
// session.ErrSessionNotReady otherwise.
func New(id int, sess *session.Session, source TrackSource) (*Deck, error) {
	logrus.WithFields(logrus.Fields{
		"function": "deck.New",
		"deck_id":  id,
	}).Info("Creating deck")

	gain, err := sess.CreateGain(1.0)
	if err != nil {
		return nil, fmt.Errorf("deck %d gain: %w", id, err)
	}
	eq, err := sess.CreateEqualizer()
	if err != nil {
		return nil, fmt.Errorf("deck %d equalizer: %w", id, err)
	}
	filter, err := sess.CreateFilter(session.MaxFilterFrequency)
	if err != nil {
		return nil, fmt.Errorf("deck %d filter: %w", id, err)
	}
	send, err := sess.CreateGain(0.0)
	if err != nil {
		return nil, fmt.Errorf("deck %d send: %w", id, err)
	}

	return &Deck{
		id:      id,
		session: sess,
		source:  source,
		state:   StateEmpty,
		gain:    gain,
		eq:      eq,
		filter:  filter,
		send:    send,
	}, nil
}

// ID returns the deck identifier.
func (d *Deck) ID() int { return d.id }

// State returns the current transport state.
func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Track returns the loaded track, or nil.
func (d *Deck) Track() *Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.track
}

// SetStateCallback registers a callback for transport state transitions.
// Delivery is synchronous and in order on the goroutine that caused the
// transition.
func (d *Deck) SetStateCallback(callback func(id int, state State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateCallback = callback
}

// SetErrorCallback registers a callback for asynchronous load failures,
// including superseded loads being discarded (ErrLoadSuperseded).
func (d *Deck) SetErrorCallback(callback func(id int, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorCallback = callback
}

// setState transitions state and notifies. Caller holds d.mu; the callback
// fires after unlocking via the returned func.
func (d *Deck) setState(state State) func() {
	d.state = state
	callback := d.stateCallback
	id := d.id
	if callback == nil {
		return func() {}
	}
	return func() { callback(id, state) }
}

// Load asynchronously resolves the referenced track and transitions the
// deck loading → loaded, or back to empty with a reported error on
// failure. A second Load while one is pending supersedes the first: the
// older result is discarded whole, never partially applied.
func (d *Deck) Load(ctx context.Context, ref TrackRef) {
	d.mu.Lock()
	d.loadGeneration++
	generation := d.loadGeneration
	if d.loadCancel != nil {
		d.loadCancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	d.loadCancel = cancel
	notify := d.setState(StateLoading)
	d.mu.Unlock()
	notify()

	logrus.WithFields(logrus.Fields{
		"function":   "Deck.Load",
		"deck_id":    d.id,
		"ref":        string(ref),
		"generation": generation,
	}).Info("Starting track load")

	go func() {
		track, err := d.source.Resolve(loadCtx, ref)
		d.completeLoad(generation, track, err)
	}()
}

// completeLoad applies a finished load if it is still the newest one.
func (d *Deck) completeLoad(generation uint64, track *Track, err error) {
	d.mu.Lock()
	if generation != d.loadGeneration {
		current := d.loadGeneration
		errCallback := d.errorCallback
		id := d.id
		d.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "Deck.completeLoad",
			"deck_id":    id,
			"generation": generation,
			"current":    current,
		}).Debug("Discarding superseded load result")
		if errCallback != nil {
			errCallback(id, fmt.Errorf("%w: generation %d", ErrLoadSuperseded, generation))
		}
		return
	}

	if err != nil {
		d.track = nil
		d.position = 0
		d.loop = LoopRegion{}
		notify := d.setState(StateEmpty)
		errCallback := d.errorCallback
		id := d.id
		d.mu.Unlock()
		notify()
		logrus.WithFields(logrus.Fields{
			"function": "Deck.completeLoad",
			"deck_id":  id,
			"error":    err.Error(),
		}).Error("Track load failed")
		if errCallback != nil {
			errCallback(id, err)
		}
		return
	}

	d.track = track
	d.position = 0
	d.loop = LoopRegion{}
	d.cueSet = [MaxCuePoints]bool{}
	notify := d.setState(StateLoaded)
	d.mu.Unlock()
	notify()

	logrus.WithFields(logrus.Fields{
		"function": "Deck.completeLoad",
		"deck_id":  d.id,
		"title":    track.Title,
		"duration": track.Duration().String(),
		"bpm":      track.BPM,
	}).Info("Track loaded")
}

// Play starts or resumes playback. Idempotent while already playing; a
// reported no-op (ErrNoTrackLoaded / ErrDeckLoading) when no track is
// available.
func (d *Deck) Play() error {
	d.mu.Lock()
	switch d.state {
	case StatePlaying:
		d.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Deck.Play",
			"deck_id":  d.id,
		}).Debug("Play ignored, already playing")
		return nil
	case StateEmpty:
		d.mu.Unlock()
		return ErrNoTrackLoaded
	case StateLoading:
		d.mu.Unlock()
		return ErrDeckLoading
	}
	if d.state == StateStopped {
		d.position = 0
	}
	notify := d.setState(StatePlaying)
	d.mu.Unlock()
	notify()

	logrus.WithFields(logrus.Fields{
		"function": "Deck.Play",
		"deck_id":  d.id,
	}).Info("Playback started")
	return nil
}

// Pause pauses playback, preserving position.
func (d *Deck) Pause() error {
	d.mu.Lock()
	if d.state != StatePlaying {
		state := d.state
		d.mu.Unlock()
		if state == StateEmpty {
			return ErrNoTrackLoaded
		}
		logrus.WithFields(logrus.Fields{
			"function": "Deck.Pause",
			"deck_id":  d.id,
			"state":    state.String(),
		}).Debug("Pause ignored in current state")
		return nil
	}
	notify := d.setState(StatePaused)
	d.mu.Unlock()
	notify()
	return nil
}

// Stop halts playback and resets position to zero. The track stays loaded
// and can be replayed.
func (d *Deck) Stop() error {
	d.mu.Lock()
	switch d.state {
	case StateEmpty:
		d.mu.Unlock()
		return ErrNoTrackLoaded
	case StateLoading:
		d.mu.Unlock()
		return ErrDeckLoading
	case StateStopped:
		d.mu.Unlock()
		return nil
	}
	d.position = 0
	notify := d.setState(StateStopped)
	d.mu.Unlock()
	notify()

	logrus.WithFields(logrus.Fields{
		"function": "Deck.Stop",
		"deck_id":  d.id,
	}).Info("Playback stopped")
	return nil
}

// Unload removes the loaded track and returns the deck to empty. Playback
// must not be active.
func (d *Deck) Unload() error {
	d.mu.Lock()
	switch d.state {
	case StateEmpty:
		d.mu.Unlock()
		return nil
	case StatePlaying, StatePaused:
		// Stop first; unloading mid-play would yank the buffer out from
		// under the renderer.
		d.position = 0
	case StateLoading:
		d.mu.Unlock()
		return ErrDeckLoading
	}
	d.track = nil
	d.position = 0
	d.loop = LoopRegion{}
	d.cueSet = [MaxCuePoints]bool{}
	notify := d.setState(StateEmpty)
	d.mu.Unlock()
	notify()
	return nil
}

// Seek moves the playhead to position, clamped to [0, duration]. Playback
// state is unaffected: a playing deck keeps playing from the new position.
func (d *Deck) Seek(position time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		if d.state == StateLoading {
			return ErrDeckLoading
		}
		return ErrNoTrackLoaded
	}
	if position < 0 {
		position = 0
	}
	if duration := d.track.Duration(); position > duration {
		position = duration
	}
	d.position = position.Seconds() * float64(d.track.SampleRate)
	logrus.WithFields(logrus.Fields{
		"function": "Deck.Seek",
		"deck_id":  d.id,
		"position": position.String(),
	}).Debug("Seek applied")
	return nil
}

// Position returns the current playhead position.
func (d *Deck) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil || d.track.SampleRate <= 0 {
		return 0
	}
	return time.Duration(d.position / float64(d.track.SampleRate) * float64(time.Second))
}

// SetVolume ramps the channel gain toward level, clamped to [0, 1].
func (d *Deck) SetVolume(level float64) {
	d.gain.SetLevel(level)
}

// Volume returns the channel gain target level.
func (d *Deck) Volume() float64 {
	return d.gain.Level()
}

// SetSendLevel ramps the effect send gain toward level, clamped to [0, 1].
func (d *Deck) SetSendLevel(level float64) {
	d.send.SetLevel(level)
}

// SendLevel returns the effect send target level.
func (d *Deck) SendLevel() float64 {
	return d.send.Level()
}

// ProcessSend writes the effect-send tap of the rendered channel output src
// into dst, scaled by the send gain. The mixer bus sums both decks' taps
// into the shared effect return; a send level of zero keeps the channel out
// of the effect entirely.
func (d *Deck) ProcessSend(src, dst []int16) error {
	if len(dst) != len(src) {
		return fmt.Errorf("send buffer length mismatch: src=%d dst=%d", len(src), len(dst))
	}
	copy(dst, src)
	_, err := d.send.Process(dst)
	return err
}

// SetPitch sets the pitch adjustment in percent, clamped to ±8%.
// The stored (clamped) value is returned.
func (d *Deck) SetPitch(percent float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if percent > MaxPitchPercent {
		percent = MaxPitchPercent
	} else if percent < -MaxPitchPercent {
		percent = -MaxPitchPercent
	}
	d.pitch = percent
	logrus.WithFields(logrus.Fields{
		"function": "Deck.SetPitch",
		"deck_id":  d.id,
		"pitch":    percent,
	}).Debug("Pitch updated")
	return percent
}

// Pitch returns the pitch adjustment in percent.
func (d *Deck) Pitch() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pitch
}

// SetEQBand ramps the given EQ band toward db, clamped to ±26 dB. The
// stored value is returned.
func (d *Deck) SetEQBand(band session.EQBand, db float64) float64 {
	return d.eq.SetBandGainDB(band, db)
}

// EQBandGain returns the stored gain for the given band in dB.
func (d *Deck) EQBandGain(band session.EQBand) float64 {
	return d.eq.BandGainDB(band)
}

// SetFilter updates the channel filter type, cutoff and resonance, with
// inputs clamped to their documented ranges.
func (d *Deck) SetFilter(filterType session.FilterType, frequency, resonance float64) {
	d.filter.SetParams(filterType, frequency, resonance)
}

// Filter returns the channel filter node for inspection.
func (d *Deck) Filter() *session.FilterNode {
	return d.filter
}

// SetCuePoint stores the current playhead position in the given cue slot.
func (d *Deck) SetCuePoint(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= MaxCuePoints {
		logrus.WithFields(logrus.Fields{
			"function": "Deck.SetCuePoint",
			"deck_id":  d.id,
			"index":    index,
		}).Error("Cue index out of range")
		return fmt.Errorf("%w: %d", ErrInvalidCueIndex, index)
	}
	if d.track == nil {
		return ErrNoTrackLoaded
	}
	d.cues[index] = time.Duration(d.position / float64(d.track.SampleRate) * float64(time.Second))
	d.cueSet[index] = true
	logrus.WithFields(logrus.Fields{
		"function": "Deck.SetCuePoint",
		"deck_id":  d.id,
		"index":    index,
		"position": d.cues[index].String(),
	}).Info("Cue point set")
	return nil
}

// JumpToCue moves the playhead to the stored cue point.
func (d *Deck) JumpToCue(index int) error {
	d.mu.Lock()
	if index < 0 || index >= MaxCuePoints {
		d.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidCueIndex, index)
	}
	if d.track == nil {
		d.mu.Unlock()
		return ErrNoTrackLoaded
	}
	if !d.cueSet[index] {
		d.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrCueNotSet, index)
	}
	cue := d.cues[index]
	d.mu.Unlock()
	return d.Seek(cue)
}

// CuePoint returns the stored cue position and whether the slot is set.
func (d *Deck) CuePoint(index int) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= MaxCuePoints {
		return 0, false
	}
	return d.cues[index], d.cueSet[index]
}

// SetLoop activates a loop region. Start must be before end and both must
// lie within the track; otherwise ErrInvalidLoopRegion is returned and any
// existing loop is left untouched.
func (d *Deck) SetLoop(start, end time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return ErrNoTrackLoaded
	}
	if start < 0 || end <= start || end > d.track.Duration() {
		logrus.WithFields(logrus.Fields{
			"function": "Deck.SetLoop",
			"deck_id":  d.id,
			"start":    start.String(),
			"end":      end.String(),
			"duration": d.track.Duration().String(),
		}).Error("Loop region validation failed")
		return fmt.Errorf("%w: [%s, %s]", ErrInvalidLoopRegion, start, end)
	}
	d.loop = LoopRegion{Start: start, End: end, Active: true}
	logrus.WithFields(logrus.Fields{
		"function": "Deck.SetLoop",
		"deck_id":  d.id,
		"start":    start.String(),
		"end":      end.String(),
	}).Info("Loop region set")
	return nil
}

// ClearLoop deactivates any active loop.
func (d *Deck) ClearLoop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loop = LoopRegion{}
}

// Loop returns the current loop region.
func (d *Deck) Loop() LoopRegion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loop
}

// SetTempo overrides the track's analysed tempo in BPM. Passing 0 reverts
// to the track metadata value.
func (d *Deck) SetTempo(bpm float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if bpm < 0 {
		bpm = 0
	}
	d.tempoOverride = bpm
}

// Tempo returns the effective tempo in BPM: the explicit override when
// set, otherwise the track's analysed BPM, otherwise 0.
func (d *Deck) Tempo() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tempoOverride > 0 {
		return d.tempoOverride
	}
	if d.track != nil {
		return d.track.BPM
	}
	return 0
}

// Render pulls the next len(dst) frames of processed audio from the deck
// into dst and returns the number of frames written. A deck that is not
// playing zero-fills dst and returns 0.
//
// Samples are read at the pitch-adjusted rate with linear interpolation,
// the active loop wraps the playhead, and the result runs through the
// channel chain: equalizer → filter → gain. Reaching the end of the track
// stops the deck.
func (d *Deck) Render(dst []int16) int {
	d.mu.Lock()
	if d.state != StatePlaying || d.track == nil {
		d.mu.Unlock()
		for i := range dst {
			dst[i] = 0
		}
		return 0
	}

	track := d.track
	rate := 1.0 + d.pitch/100.0
	pos := d.position
	frames := track.Frames()

	loopStart, loopEnd := -1.0, -1.0
	if d.loop.Active && track.SampleRate > 0 {
		loopStart = d.loop.Start.Seconds() * float64(track.SampleRate)
		loopEnd = d.loop.End.Seconds() * float64(track.SampleRate)
	}

	written := 0
	ended := false
	for i := range dst {
		if loopEnd > 0 && pos >= loopEnd {
			pos = loopStart + (pos - loopEnd)
		}
		if pos >= float64(frames-1) {
			dst[i] = 0
			ended = true
			continue
		}
		// Linear interpolation between adjacent frames.
		idx := int(pos)
		frac := pos - float64(idx)
		a := float64(track.PCM[idx])
		b := float64(track.PCM[idx+1])
		dst[i] = int16(a + (b-a)*frac)
		pos += rate
		written++
	}
	d.position = pos

	var notify func()
	if ended {
		d.position = 0
		notify = d.setState(StateStopped)
	}
	d.mu.Unlock()

	// Channel chain outside the transport lock; nodes carry their own
	// synchronization.
	out, err := d.eq.Process(dst)
	if err == nil {
		out, err = d.filter.Process(out)
	}
	if err == nil {
		_, err = d.gain.Process(out)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Deck.Render",
			"deck_id":  d.id,
			"error":    err.Error(),
		}).Error("Channel chain processing failed")
	}

	if notify != nil {
		notify()
		logrus.WithFields(logrus.Fields{
			"function": "Deck.Render",
			"deck_id":  d.id,
		}).Info("Track reached end, deck stopped")
	}
	return written
}
