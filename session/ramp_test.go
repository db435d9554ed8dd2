package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRampedParamReachesTarget(t *testing.T) {
	r := NewRampedParam(0.0, 0.010, 48000)
	r.SetTarget(1.0)

	// 10 ms at 48 kHz is 480 samples; give it the full ramp length.
	for i := 0; i < 480; i++ {
		r.Next()
	}
	assert.InDelta(t, 1.0, r.Value(), 1e-9)
	assert.True(t, r.Settled())
}

func TestRampedParamIsMonotonic(t *testing.T) {
	r := NewRampedParam(1.0, 0.010, 48000)
	r.SetTarget(0.0)

	prev := r.Value()
	for i := 0; i < 480; i++ {
		v := r.Next()
		if v > prev {
			t.Fatalf("Ramp moved away from target at step %d: %f > %f", i, v, prev)
		}
		prev = v
	}
}

func TestRampedParamDoesNotOvershoot(t *testing.T) {
	r := NewRampedParam(0.0, 0.010, 48000)
	r.SetTarget(0.3)

	for i := 0; i < 2000; i++ {
		if v := r.Next(); v > 0.3+1e-9 {
			t.Fatalf("Ramp overshot target: %f", v)
		}
	}
	assert.InDelta(t, 0.3, r.Value(), 1e-9)
}

func TestRampedParamAdvance(t *testing.T) {
	r := NewRampedParam(0.0, 0.010, 48000)
	r.SetTarget(1.0)
	r.Advance(10000)
	assert.True(t, r.Settled())
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 1.0, clamp(5.0, 0.0, 1.0))
	assert.Equal(t, 0.0, clamp(-5.0, 0.0, 1.0))
	assert.Equal(t, 0.5, clamp(0.5, 0.0, 1.0))

	assert.Equal(t, int16(32767), clipSample(1e9))
	assert.Equal(t, int16(-32768), clipSample(-1e9))
	assert.Equal(t, int16(123), clipSample(123.4))
}
