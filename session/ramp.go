package session

// DefaultRampSeconds is the length of the linear ramp applied to audible
// parameter changes. Short enough to feel instantaneous, long enough to
// avoid clicks from stepping a gain mid-buffer.
const DefaultRampSeconds = 0.010

// RampedParam is a parameter value that moves toward its target linearly,
// one sample at a time, instead of jumping. Every audible control in the
// graph (channel gain, master gain, crossfade gains) goes through one of
// these so that value changes never produce discontinuities in the output.
//
// RampedParam is not internally synchronized; callers serialize access the
// same way they serialize graph mutation (single control thread).
type RampedParam struct {
	current float64
	target  float64
	step    float64 // absolute per-sample increment
}

// NewRampedParam creates a parameter at the given initial value with a ramp
// duration of rampSeconds at the given sample rate.
func NewRampedParam(initial, rampSeconds float64, sampleRate int) *RampedParam {
	steps := rampSeconds * float64(sampleRate)
	if steps < 1 {
		steps = 1
	}
	return &RampedParam{
		current: initial,
		target:  initial,
		step:    1.0 / steps,
	}
}

// SetTarget begins a ramp toward v from the current value.
func (r *RampedParam) SetTarget(v float64) {
	r.target = v
}

// Target returns the value the parameter is ramping toward.
func (r *RampedParam) Target() float64 {
	return r.target
}

// Value returns the instantaneous parameter value without advancing it.
func (r *RampedParam) Value() float64 {
	return r.current
}

// Next advances the ramp by one sample and returns the new value.
func (r *RampedParam) Next() float64 {
	switch {
	case r.current < r.target:
		r.current += r.step
		if r.current > r.target {
			r.current = r.target
		}
	case r.current > r.target:
		r.current -= r.step
		if r.current < r.target {
			r.current = r.target
		}
	}
	return r.current
}

// Advance steps the ramp forward by n samples without producing output,
// used when a buffer is skipped but time still passes.
func (r *RampedParam) Advance(n int) {
	for i := 0; i < n && r.current != r.target; i++ {
		r.Next()
	}
}

// Settled reports whether the ramp has reached its target.
func (r *RampedParam) Settled() bool {
	return r.current == r.target
}

// clamp constrains v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clipSample constrains a float sample to the int16 range.
func clipSample(v float64) int16 {
	if v > 32767.0 {
		return 32767
	}
	if v < -32768.0 {
		return -32768
	}
	return int16(v)
}
