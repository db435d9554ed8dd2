package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRunningSession creates and initializes a session for tests.
func newRunningSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(NewUserActivation()))
	return s
}

func TestNewSessionStartsSuspended(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	if s.State() != SessionSuspended {
		t.Errorf("Expected initial state suspended, got %s", s.State())
	}
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate too low", func(c *Config) { c.SampleRate = 4000 }},
		{"sample rate too high", func(c *Config) { c.SampleRate = 400000 }},
		{"buffer too small", func(c *Config) { c.BufferSize = 16 }},
		{"master volume out of range", func(c *Config) { c.MasterVolume = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestInitializeRequiresUserActivation(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	err = s.Initialize(nil)
	assert.ErrorIs(t, err, ErrUserGestureRequired)
	assert.Equal(t, SessionSuspended, s.State())
}

func TestInitializeRejectsConsumedActivation(t *testing.T) {
	s1, err := New(DefaultConfig())
	require.NoError(t, err)
	s2, err := New(DefaultConfig())
	require.NoError(t, err)

	activation := NewUserActivation()
	require.NoError(t, s1.Initialize(activation))

	// The same token cannot start a second session.
	err = s2.Initialize(activation)
	assert.ErrorIs(t, err, ErrUserGestureRequired)
}

func TestInitializeIsIdempotentWhileRunning(t *testing.T) {
	s := newRunningSession(t)
	defer s.Dispose()

	// A second initialize on a running session is a no-op, not an error.
	assert.NoError(t, s.Initialize(NewUserActivation()))
	assert.Equal(t, SessionRunning, s.State())
}

func TestNodeFactoriesFailBeforeInitialize(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	if _, err := s.CreateGain(0.5); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("CreateGain before initialize: expected ErrSessionNotReady, got %v", err)
	}
	if _, err := s.CreateEqualizer(); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("CreateEqualizer before initialize: expected ErrSessionNotReady, got %v", err)
	}
	if _, err := s.CreateFilter(1000); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("CreateFilter before initialize: expected ErrSessionNotReady, got %v", err)
	}
	if _, err := s.CreateCrossfade(0); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("CreateCrossfade before initialize: expected ErrSessionNotReady, got %v", err)
	}
	if _, err := s.CreateCompressor(); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("CreateCompressor before initialize: expected ErrSessionNotReady, got %v", err)
	}
	if _, err := s.CreateLimiter(-1); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("CreateLimiter before initialize: expected ErrSessionNotReady, got %v", err)
	}
}

func TestNodeFactoriesAfterInitialize(t *testing.T) {
	s := newRunningSession(t)
	defer s.Dispose()

	gain, err := s.CreateGain(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, gain.Level(), 1e-9)

	eq, err := s.CreateEqualizer()
	require.NoError(t, err)
	assert.Equal(t, 0.0, eq.BandGainDB(EQLow))

	filter, err := s.CreateFilter(2000)
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, filter.Frequency(), 1e-9)

	_, err = s.CreateCrossfade(0)
	require.NoError(t, err)
}

func TestSetMasterVolumeClampsAndReadsBack(t *testing.T) {
	s := newRunningSession(t)
	defer s.Dispose()

	require.NoError(t, s.SetMasterVolume(0.25))
	assert.InDelta(t, 0.25, s.MasterVolume(), 1e-9)

	// Out-of-range values clamp, they do not error.
	require.NoError(t, s.SetMasterVolume(3.0))
	assert.InDelta(t, 1.0, s.MasterVolume(), 1e-9)

	require.NoError(t, s.SetMasterVolume(-1.0))
	assert.InDelta(t, 0.0, s.MasterVolume(), 1e-9)
}

func TestDisposeIsIdempotent(t *testing.T) {
	s := newRunningSession(t)

	s.Dispose()
	if s.State() != SessionClosed {
		t.Fatalf("Expected closed state after dispose, got %s", s.State())
	}

	// Second dispose must be a silent no-op.
	s.Dispose()
	if s.State() != SessionClosed {
		t.Errorf("Expected state to remain closed after double dispose, got %s", s.State())
	}
}

func TestOperationsAfterDispose(t *testing.T) {
	s := newRunningSession(t)
	s.Dispose()

	_, err := s.CreateGain(0.5)
	assert.ErrorIs(t, err, ErrSessionClosed)

	err = s.SetMasterVolume(0.5)
	assert.ErrorIs(t, err, ErrSessionClosed)

	err = s.Initialize(NewUserActivation())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestStateCallbackDelivery(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	var transitions []SessionState
	s.SetStateCallback(func(state SessionState) {
		transitions = append(transitions, state)
	})

	require.NoError(t, s.Initialize(NewUserActivation()))
	s.Dispose()

	require.Len(t, transitions, 2)
	assert.Equal(t, SessionRunning, transitions[0])
	assert.Equal(t, SessionClosed, transitions[1])
}

func TestRenderMasterAppliesMasterGain(t *testing.T) {
	s := newRunningSession(t)
	defer s.Dispose()

	require.NoError(t, s.SetMasterVolume(0.5))

	// Burn through the ramp so the gain has settled at 0.5.
	warm := make([]int16, s.SampleRate())
	_, err := s.RenderMaster(warm)
	require.NoError(t, err)

	buf := make([]int16, 128)
	for i := range buf {
		buf[i] = 1000
	}
	out, err := s.RenderMaster(buf)
	require.NoError(t, err)

	// Low-level signal: compressor and limiter should leave it alone, so
	// the output reflects the 0.5 master gain.
	assert.InDelta(t, 500, float64(out[64]), 20)
}

func TestLatencyMatchesBufferSize(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	// 960 frames at 48 kHz is 20 ms.
	assert.InDelta(t, 0.020, s.Latency().Seconds(), 1e-6)
}
