package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionState represents the lifecycle state of the audio session.
type SessionState uint8

const (
	// SessionSuspended indicates the engine exists but has not been started
	// by a user gesture yet.
	SessionSuspended SessionState = iota
	// SessionRunning indicates the engine is initialized and processing.
	SessionRunning
	// SessionClosed indicates the session has been disposed.
	SessionClosed
)

// String returns the state name for logging.
func (s SessionState) String() string {
	switch s {
	case SessionSuspended:
		return "suspended"
	case SessionRunning:
		return "running"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds audio session configuration.
type Config struct {
	// SampleRate is the engine sample rate in Hz.
	SampleRate int
	// BufferSize is the render buffer length in frames.
	BufferSize int
	// MasterVolume is the initial master gain level [0, 1].
	MasterVolume float64
	// LimiterThresholdDB is the master limiter ceiling in dB [-30, 0].
	LimiterThresholdDB float64
}

// DefaultConfig returns the standard session configuration: 48 kHz, 20 ms
// render buffers, master gain at 0.8 and the limiter just under full scale.
func DefaultConfig() Config {
	return Config{
		SampleRate:         48000,
		BufferSize:         960,
		MasterVolume:       0.8,
		LimiterThresholdDB: -1.0,
	}
}

// validate checks the configuration for usable values.
func (c Config) validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("%w: sample rate %d out of range [8000, 192000]", ErrInvalidConfig, c.SampleRate)
	}
	if c.BufferSize < 64 || c.BufferSize > 16384 {
		return fmt.Errorf("%w: buffer size %d out of range [64, 16384]", ErrInvalidConfig, c.BufferSize)
	}
	if c.MasterVolume < 0 || c.MasterVolume > 1 {
		return fmt.Errorf("%w: master volume %f out of range [0, 1]", ErrInvalidConfig, c.MasterVolume)
	}
	return nil
}

// UserActivation is a single-use token proving that the current call chain
// originated from a genuine user interaction (click/tap). The embedding
// layer mints one inside its input handler and passes it to Initialize,
// which consumes it. This models the platform autoplay restriction without
// depending on a browser runtime.
type UserActivation struct {
	mu       sync.Mutex
	issued   time.Time
	consumed bool
}

// NewUserActivation mints an activation token. Call this only from a real
// user-input handler; minting tokens elsewhere defeats the contract.
func NewUserActivation() *UserActivation {
	return &UserActivation{issued: time.Now()}
}

// consume marks the token used. Returns false if it was already consumed.
func (a *UserActivation) consume() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.consumed {
		return false
	}
	a.consumed = true
	return true
}

// Session owns the shared audio engine instance: its lifecycle, every node
// created through it, and the master output chain (summing gain →
// compressor → limiter).
//
// All graph mutation must happen from a single control goroutine; see the
// package documentation. The Session exclusively owns the nodes it creates.
// Decks and the mixer bus hold non-owning handles and must not use them
// after Dispose.
type Session struct {
	config Config

	mu           sync.RWMutex
	state        SessionState
	initializing bool

	// nodes tracks every node created through this session, in creation
	// order. Dispose closes them in reverse order so downstream nodes are
	// released before the nodes that feed them.
	nodes []Node

	// Master chain, built during Initialize.
	masterGain *GainNode
	compressor *CompressorNode
	limiter    *LimiterNode

	stateCallback func(SessionState)
}

// New creates a suspended session with the given configuration. The engine
// does not start until Initialize is called with a user activation token.
func New(config Config) (*Session, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "session.New",
		"sample_rate": config.SampleRate,
		"buffer_size": config.BufferSize,
	}).Info("Creating audio session")

	if err := config.validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "session.New",
			"error":    err.Error(),
		}).Error("Session configuration validation failed")
		return nil, err
	}

	return &Session{
		config: config,
		state:  SessionSuspended,
	}, nil
}

// Initialize starts the audio engine and constructs the master output
// chain. It must be invoked as a direct consequence of a user interaction;
// pass the activation token minted in that input handler.
//
// Fails with ErrUserGestureRequired when the token is nil or already
// consumed, ErrAlreadyInitializing when a prior call is still in flight,
// and ErrSessionClosed after Dispose. Calling Initialize on a running
// session is a no-op.
func (s *Session) Initialize(activation *UserActivation) error {
	s.mu.Lock()
	switch {
	case s.state == SessionClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.state == SessionRunning:
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Session.Initialize",
		}).Debug("Session already running, ignoring initialize")
		return nil
	case s.initializing:
		s.mu.Unlock()
		return ErrAlreadyInitializing
	}

	if activation == nil || !activation.consume() {
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Session.Initialize",
			"has_token": activation != nil,
		}).Error("Initialize rejected without valid user activation")
		return ErrUserGestureRequired
	}

	s.initializing = true
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Session.Initialize",
		"sample_rate": s.config.SampleRate,
	}).Info("Initializing audio session")

	// Build the master chain: summing gain → compressor → limiter.
	masterGain := newGainNode(s.config.MasterVolume, s.config.SampleRate)
	compressor := newCompressorNode()
	limiter := newLimiterNode(s.config.LimiterThresholdDB)

	s.mu.Lock()
	s.masterGain = masterGain
	s.compressor = compressor
	s.limiter = limiter
	s.nodes = append(s.nodes, masterGain, compressor, limiter)
	s.state = SessionRunning
	s.initializing = false
	callback := s.stateCallback
	s.mu.Unlock()

	if callback != nil {
		callback(SessionRunning)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.Initialize",
		"state":    SessionRunning.String(),
	}).Info("Audio session initialized")
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SampleRate returns the engine sample rate in Hz.
func (s *Session) SampleRate() int {
	return s.config.SampleRate
}

// BufferSize returns the render buffer length in frames.
func (s *Session) BufferSize() int {
	return s.config.BufferSize
}

// Latency returns the nominal processing latency of one render buffer.
func (s *Session) Latency() time.Duration {
	return time.Duration(float64(s.config.BufferSize) / float64(s.config.SampleRate) * float64(time.Second))
}

// SetStateCallback registers a callback invoked on lifecycle transitions.
// Delivery is synchronous on the calling goroutine.
func (s *Session) SetStateCallback(callback func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateCallback = callback
}

// checkReady returns an error unless the session is running.
func (s *Session) checkReady(operation string) error {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()
	if state != SessionRunning {
		logrus.WithFields(logrus.Fields{
			"function": operation,
			"state":    state.String(),
		}).Error("Operation rejected, session not ready")
		if state == SessionClosed {
			return ErrSessionClosed
		}
		return ErrSessionNotReady
	}
	return nil
}

// register adds a node to the session's ownership list.
func (s *Session) register(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, n)
	logrus.WithFields(logrus.Fields{
		"function":   "Session.register",
		"node":       n.Name(),
		"node_count": len(s.nodes),
	}).Debug("Node registered with session")
}

// CreateGain creates a gain node at the given initial level [0, 1].
// Fails with ErrSessionNotReady before Initialize completes.
func (s *Session) CreateGain(initialLevel float64) (*GainNode, error) {
	if err := s.checkReady("Session.CreateGain"); err != nil {
		return nil, err
	}
	n := newGainNode(initialLevel, s.config.SampleRate)
	s.register(n)
	return n, nil
}

// CreateEqualizer creates a 3-band equalizer node with all bands at unity.
func (s *Session) CreateEqualizer() (*EqualizerNode, error) {
	if err := s.checkReady("Session.CreateEqualizer"); err != nil {
		return nil, err
	}
	n := newEqualizerNode(s.config.SampleRate)
	s.register(n)
	return n, nil
}

// CreateFilter creates a state-variable filter node at the given initial
// cutoff frequency.
func (s *Session) CreateFilter(initialFrequency float64) (*FilterNode, error) {
	if err := s.checkReady("Session.CreateFilter"); err != nil {
		return nil, err
	}
	n := newFilterNode(initialFrequency, s.config.SampleRate)
	s.register(n)
	return n, nil
}

// CreateCrossfade creates a crossfade node at the given initial position
// [-1, +1].
func (s *Session) CreateCrossfade(initialPosition float64) (*CrossfadeNode, error) {
	if err := s.checkReady("Session.CreateCrossfade"); err != nil {
		return nil, err
	}
	n := newCrossfadeNode(initialPosition, s.config.SampleRate)
	s.register(n)
	return n, nil
}

// CreateCompressor creates a compressor node with default settings.
func (s *Session) CreateCompressor() (*CompressorNode, error) {
	if err := s.checkReady("Session.CreateCompressor"); err != nil {
		return nil, err
	}
	n := newCompressorNode()
	s.register(n)
	return n, nil
}

// CreateDelay creates a wet-only feedback delay node for effect returns.
func (s *Session) CreateDelay(delay time.Duration, feedback float64) (*DelayNode, error) {
	if err := s.checkReady("Session.CreateDelay"); err != nil {
		return nil, err
	}
	n := newDelayNode(delay, feedback, s.config.SampleRate)
	s.register(n)
	return n, nil
}

// CreateLimiter creates a limiter node with the given ceiling in dB.
func (s *Session) CreateLimiter(thresholdDB float64) (*LimiterNode, error) {
	if err := s.checkReady("Session.CreateLimiter"); err != nil {
		return nil, err
	}
	n := newLimiterNode(thresholdDB)
	s.register(n)
	return n, nil
}

// SetMasterVolume ramps the master gain toward level, clamped to [0, 1].
func (s *Session) SetMasterVolume(level float64) error {
	if err := s.checkReady("Session.SetMasterVolume"); err != nil {
		return err
	}
	clamped := clamp(level, 0.0, 1.0)
	s.mu.RLock()
	gain := s.masterGain
	s.mu.RUnlock()
	gain.SetLevel(clamped)
	logrus.WithFields(logrus.Fields{
		"function": "Session.SetMasterVolume",
		"level":    clamped,
	}).Debug("Master volume updated")
	return nil
}

// MasterVolume returns the master gain target level.
func (s *Session) MasterVolume() float64 {
	s.mu.RLock()
	gain := s.masterGain
	s.mu.RUnlock()
	if gain == nil {
		return s.config.MasterVolume
	}
	return gain.Level()
}

// Limiter returns the master limiter node, or nil before Initialize.
func (s *Session) Limiter() *LimiterNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limiter
}

// Compressor returns the master compressor node, or nil before Initialize.
func (s *Session) Compressor() *CompressorNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compressor
}

// RenderMaster runs an already-summed buffer through the master chain:
// gain, compressor, limiter. The buffer is processed in place.
func (s *Session) RenderMaster(samples []int16) ([]int16, error) {
	if err := s.checkReady("Session.RenderMaster"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	gain, compressor, limiter := s.masterGain, s.compressor, s.limiter
	s.mu.RUnlock()

	out, err := gain.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("master gain failed: %w", err)
	}
	out, err = compressor.Process(out)
	if err != nil {
		return nil, fmt.Errorf("master compressor failed: %w", err)
	}
	out, err = limiter.Process(out)
	if err != nil {
		return nil, fmt.Errorf("master limiter failed: %w", err)
	}
	return out, nil
}

// Dispose tears the session down: every node created through this session
// is closed in reverse creation order (disconnect before release) and the
// state transitions to closed. Dispose is idempotent; calling it twice is
// a no-op.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Session.Dispose",
		}).Debug("Session already closed, ignoring dispose")
		return
	}
	nodes := s.nodes
	s.nodes = nil
	s.masterGain = nil
	s.compressor = nil
	s.limiter = nil
	s.state = SessionClosed
	callback := s.stateCallback
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "Session.Dispose",
		"node_count": len(nodes),
	}).Info("Disposing audio session")

	// Reverse creation order: consumers close before producers, so no node
	// is released while something downstream could still reference it.
	for i := len(nodes) - 1; i >= 0; i-- {
		if err := nodes[i].Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Session.Dispose",
				"node":     nodes[i].Name(),
				"error":    err.Error(),
			}).Warn("Node close reported an error during dispose")
		}
	}

	if callback != nil {
		callback(SessionClosed)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.Dispose",
	}).Info("Audio session disposed")
}
