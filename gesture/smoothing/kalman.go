package smoothing

// KalmanConfig holds the tunable parameters of the per-coordinate
// constant-velocity Kalman filter.
type KalmanConfig struct {
	// ProcessNoise is the white-acceleration spectral density of the
	// motion model. Larger values track fast motion more tightly at the
	// cost of passing more jitter through.
	ProcessNoise float64
	// MeasurementNoise is the variance of the landmark observation noise
	// in normalized coordinates.
	MeasurementNoise float64
	// FrameInterval is the nominal time between landmark frames in
	// seconds.
	FrameInterval float64
}

// DefaultKalmanConfig returns parameters tuned for webcam hand tracking
// around 30 Hz: observation noise on the order of 1% of the frame and a
// motion model loose enough to follow deliberate hand movement.
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfig{
		ProcessNoise:     1e-4,
		MeasurementNoise: 1e-4,
		FrameInterval:    1.0 / 30.0,
	}
}

// Kalman1D is a constant-velocity Kalman filter over one scalar
// coordinate. State is position and velocity; each Step performs one
// predict/correct cycle against a position observation.
type Kalman1D struct {
	config      KalmanConfig
	initialized bool

	pos float64
	vel float64

	// Covariance of the [position, velocity] state estimate.
	p00, p01, p10, p11 float64
}

// NewKalman1D creates an uninitialized filter; the first Step seeds the
// state from its observation.
func NewKalman1D(config KalmanConfig) *Kalman1D {
	return &Kalman1D{config: config}
}

// Step advances the filter by one frame interval against the observation
// z and returns the filtered position estimate.
func (k *Kalman1D) Step(z float64) float64 {
	if !k.initialized {
		k.pos = z
		k.vel = 0
		k.p00 = k.config.MeasurementNoise
		k.p01 = 0
		k.p10 = 0
		k.p11 = 1
		k.initialized = true
		return z
	}

	dt := k.config.FrameInterval
	q := k.config.ProcessNoise

	// Predict under constant velocity with white-acceleration noise.
	k.pos += k.vel * dt
	p00 := k.p00 + dt*(k.p01+k.p10) + dt*dt*k.p11 + q*dt*dt*dt*dt/4
	p01 := k.p01 + dt*k.p11 + q*dt*dt*dt/2
	p10 := k.p10 + dt*k.p11 + q*dt*dt*dt/2
	p11 := k.p11 + q*dt*dt

	// Correct against the position observation.
	innovation := z - k.pos
	s := p00 + k.config.MeasurementNoise
	g0 := p00 / s
	g1 := p10 / s

	k.pos += g0 * innovation
	k.vel += g1 * innovation
	k.p00 = (1 - g0) * p00
	k.p01 = (1 - g0) * p01
	k.p10 = p10 - g1*p00
	k.p11 = p11 - g1*p01

	return k.pos
}

// Reset discards all state; the next Step reinitializes from its
// observation.
func (k *Kalman1D) Reset() {
	k.initialized = false
	k.pos = 0
	k.vel = 0
	k.p00 = 0
	k.p01 = 0
	k.p10 = 0
	k.p11 = 0
}
