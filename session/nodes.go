// Node implementations for the gesturemix audio graph.
//
// Nodes process PCM audio samples in int16 form, doing their arithmetic in
// float64 and clipping on the way back out. They are designed to be chained:
// deck output runs through equalizer → filter → gain, and the master bus
// runs through gain → compressor → limiter.
package session

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Node is the interface implemented by every audio processing node created
// through a Session.
//
// Process applies the node's effect to PCM samples, in place where possible.
// Nodes must tolerate empty input. Close releases node resources and is
// called by the owning Session during Dispose.
type Node interface {
	// Process applies the effect to PCM audio samples.
	Process(samples []int16) ([]int16, error)

	// Name returns a human-readable name for logging and debugging.
	Name() string

	// Close releases any resources used by the node.
	Close() error
}

// EQ band limits in decibels.
const (
	MinEQGainDB = -26.0
	MaxEQGainDB = 26.0
)

// Filter frequency limits in Hz.
const (
	MinFilterFrequency = 20.0
	MaxFilterFrequency = 20000.0
)

// EQBand identifies one of the three equalizer bands.
type EQBand uint8

const (
	// EQLow is the band below the low/mid crossover (~250 Hz).
	EQLow EQBand = iota
	// EQMid is the band between the crossovers.
	EQMid
	// EQHigh is the band above the mid/high crossover (~4 kHz).
	EQHigh
)

// String returns the band name for logging.
func (b EQBand) String() string {
	switch b {
	case EQLow:
		return "low"
	case EQMid:
		return "mid"
	case EQHigh:
		return "high"
	default:
		return "unknown"
	}
}

// FilterType selects the response of a FilterNode.
type FilterType uint8

const (
	// FilterLowPass passes frequencies below the cutoff.
	FilterLowPass FilterType = iota
	// FilterHighPass passes frequencies above the cutoff.
	FilterHighPass
	// FilterBandPass passes frequencies around the cutoff.
	FilterBandPass
)

// String returns the filter type name for logging.
func (t FilterType) String() string {
	switch t {
	case FilterLowPass:
		return "lowpass"
	case FilterHighPass:
		return "highpass"
	case FilterBandPass:
		return "bandpass"
	default:
		return "unknown"
	}
}

// GainNode applies a ramped gain to its input.
//
// Level is clamped to [0, 1] and every change moves through a short linear
// ramp so gain updates from gesture input never click.
type GainNode struct {
	mu    sync.Mutex
	level *RampedParam
}

func newGainNode(initialLevel float64, sampleRate int) *GainNode {
	level := clamp(initialLevel, 0.0, 1.0)
	logrus.WithFields(logrus.Fields{
		"function": "newGainNode",
		"level":    level,
	}).Debug("Creating gain node")
	return &GainNode{
		level: NewRampedParam(level, DefaultRampSeconds, sampleRate),
	}
}

// SetLevel ramps the gain toward level, clamped to [0, 1].
func (g *GainNode) SetLevel(level float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.level.SetTarget(clamp(level, 0.0, 1.0))
}

// Level returns the target gain level.
func (g *GainNode) Level() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level.Target()
}

// Process applies the ramped gain to samples in place.
func (g *GainNode) Process(samples []int16) ([]int16, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, sample := range samples {
		samples[i] = clipSample(float64(sample) * g.level.Next())
	}
	return samples, nil
}

// Name returns the node name for logging.
func (g *GainNode) Name() string {
	return fmt.Sprintf("Gain(%.2f)", g.Level())
}

// Close releases node resources (no-op for gain).
func (g *GainNode) Close() error { return nil }

// EqualizerNode implements a 3-band equalizer with runtime-adjustable gains.
//
// The signal is split into low/mid/high bands with two cascaded one-pole
// crossovers (250 Hz and 4 kHz), each band is scaled by its gain, and the
// bands are summed back together. Band gains are set in decibels and
// clamped to [-26, +26] dB.
type EqualizerNode struct {
	mu     sync.Mutex
	gains  [3]*RampedParam // linear gains, ramped
	gainDB [3]float64      // last requested dB values, post-clamp
	alphas [2]float64      // crossover filter coefficients
	lp     [2]float64      // lowpass state per crossover
}

var eqCrossovers = [2]float64{250, 4000}

func newEqualizerNode(sampleRate int) *EqualizerNode {
	eq := &EqualizerNode{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range eqCrossovers {
		rc := 1.0 / (2.0 * math.Pi * freq)
		eq.alphas[i] = dt / (rc + dt)
	}
	for i := range eq.gains {
		eq.gains[i] = NewRampedParam(1.0, DefaultRampSeconds, sampleRate)
	}
	logrus.WithFields(logrus.Fields{
		"function":    "newEqualizerNode",
		"sample_rate": sampleRate,
		"crossovers":  eqCrossovers,
	}).Debug("Creating equalizer node")
	return eq
}

// SetBandGainDB ramps the given band toward db, clamped to [-26, +26] dB.
// The clamped value is returned so callers can reflect the stored setting.
func (eq *EqualizerNode) SetBandGainDB(band EQBand, db float64) float64 {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	if band > EQHigh {
		logrus.WithFields(logrus.Fields{
			"function": "EqualizerNode.SetBandGainDB",
			"band":     band,
		}).Warn("Ignoring gain change for unknown EQ band")
		return 0
	}
	clamped := clamp(db, MinEQGainDB, MaxEQGainDB)
	eq.gainDB[band] = clamped
	eq.gains[band].SetTarget(math.Pow(10, clamped/20.0))
	return clamped
}

// BandGainDB returns the stored gain for the given band in decibels.
func (eq *EqualizerNode) BandGainDB(band EQBand) float64 {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	if band > EQHigh {
		return 0
	}
	return eq.gainDB[band]
}

// Process splits samples into three bands, applies the band gains and sums
// the result back into the input slice.
func (eq *EqualizerNode) Process(samples []int16) ([]int16, error) {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	for i, sample := range samples {
		in := float64(sample)
		// Cascaded crossovers: band 0 below 250 Hz, band 1 between the
		// crossovers, band 2 the remainder.
		var bands [3]float64
		rem := in
		for c := 0; c < 2; c++ {
			eq.lp[c] += eq.alphas[c] * (rem - eq.lp[c])
			bands[c] = eq.lp[c]
			rem -= bands[c]
		}
		bands[2] = rem

		var out float64
		for b := 0; b < 3; b++ {
			out += bands[b] * eq.gains[b].Next()
		}
		samples[i] = clipSample(out)
	}
	return samples, nil
}

// Name returns the node name for logging.
func (eq *EqualizerNode) Name() string {
	return fmt.Sprintf("EQ3(%.1f/%.1f/%.1f dB)", eq.BandGainDB(EQLow), eq.BandGainDB(EQMid), eq.BandGainDB(EQHigh))
}

// Close releases node resources (no-op for the equalizer).
func (eq *EqualizerNode) Close() error { return nil }

// Reset clears the crossover filter state.
func (eq *EqualizerNode) Reset() {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	eq.lp[0] = 0
	eq.lp[1] = 0
}

// FilterNode implements a state-variable filter with selectable response
// (low-pass, high-pass, band-pass), cutoff frequency and resonance.
type FilterNode struct {
	mu         sync.Mutex
	sampleRate int
	filterType FilterType
	frequency  float64
	resonance  float64 // Q, [0.5, 20]
	coeff      float64 // frequency coefficient, derived
	damp       float64 // damping, derived from resonance
	low        float64 // integrator state
	band       float64 // integrator state
}

func newFilterNode(initialFrequency float64, sampleRate int) *FilterNode {
	f := &FilterNode{
		sampleRate: sampleRate,
		filterType: FilterLowPass,
	}
	f.configure(initialFrequency, 0.7)
	logrus.WithFields(logrus.Fields{
		"function":    "newFilterNode",
		"frequency":   f.frequency,
		"sample_rate": sampleRate,
	}).Debug("Creating filter node")
	return f
}

// SetParams updates filter type, cutoff frequency and resonance together.
// Frequency is clamped to [20, 20000] Hz and resonance to [0.5, 20].
func (f *FilterNode) SetParams(filterType FilterType, frequency, resonance float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filterType > FilterBandPass {
		filterType = FilterLowPass
	}
	f.filterType = filterType
	f.configure(frequency, resonance)
}

// SetFrequency updates the cutoff frequency, clamped to [20, 20000] Hz.
func (f *FilterNode) SetFrequency(frequency float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configure(frequency, f.resonance)
}

// configure recomputes derived coefficients. Caller holds f.mu.
func (f *FilterNode) configure(frequency, resonance float64) {
	f.frequency = clamp(frequency, MinFilterFrequency, MaxFilterFrequency)
	f.resonance = clamp(resonance, 0.5, 20.0)
	// Keep the normalized frequency below Nyquist for stability.
	norm := f.frequency / float64(f.sampleRate)
	if norm > 0.22 {
		norm = 0.22
	}
	f.coeff = 2.0 * math.Sin(math.Pi*norm)
	f.damp = 1.0 / f.resonance
}

// Frequency returns the stored cutoff frequency.
func (f *FilterNode) Frequency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frequency
}

// Resonance returns the stored resonance (Q).
func (f *FilterNode) Resonance() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resonance
}

// Type returns the active filter response.
func (f *FilterNode) Type() FilterType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterType
}

// Process runs samples through the state-variable filter in place.
func (f *FilterNode) Process(samples []int16) ([]int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sample := range samples {
		in := float64(sample)
		f.low += f.coeff * f.band
		high := in - f.low - f.damp*f.band
		f.band += f.coeff * high

		var out float64
		switch f.filterType {
		case FilterLowPass:
			out = f.low
		case FilterHighPass:
			out = high
		case FilterBandPass:
			out = f.band
		}
		samples[i] = clipSample(out)
	}
	return samples, nil
}

// Name returns the node name for logging.
func (f *FilterNode) Name() string {
	return fmt.Sprintf("Filter(%s %.0fHz Q%.1f)", f.Type(), f.Frequency(), f.Resonance())
}

// Close releases node resources (no-op for the filter).
func (f *FilterNode) Close() error { return nil }

// Reset clears the filter integrator state.
func (f *FilterNode) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.low = 0
	f.band = 0
}

// CrossfadeNode blends two input streams into one output according to a
// pair of ramped channel gains. The mixer bus computes the gain pair from
// the crossfader position and curve; the node only applies it.
type CrossfadeNode struct {
	mu    sync.Mutex
	gainA *RampedParam
	gainB *RampedParam
}

func newCrossfadeNode(initialPosition float64, sampleRate int) *CrossfadeNode {
	// Start with a constant-power split of the initial position.
	pos := clamp(initialPosition, -1.0, 1.0)
	theta := (pos + 1.0) / 2.0 * math.Pi / 2.0
	logrus.WithFields(logrus.Fields{
		"function": "newCrossfadeNode",
		"position": pos,
	}).Debug("Creating crossfade node")
	return &CrossfadeNode{
		gainA: NewRampedParam(math.Cos(theta), DefaultRampSeconds, sampleRate),
		gainB: NewRampedParam(math.Sin(theta), DefaultRampSeconds, sampleRate),
	}
}

// SetGains ramps the channel gain pair toward (gainA, gainB), each clamped
// to [0, 1].
func (c *CrossfadeNode) SetGains(gainA, gainB float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gainA.SetTarget(clamp(gainA, 0.0, 1.0))
	c.gainB.SetTarget(clamp(gainB, 0.0, 1.0))
}

// Gains returns the target gain pair.
func (c *CrossfadeNode) Gains() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gainA.Target(), c.gainB.Target()
}

// Blend mixes a and b into dst using the current gain pair. All three
// slices must have the same length.
func (c *CrossfadeNode) Blend(dst, a, b []int16) error {
	if len(a) != len(dst) || len(b) != len(dst) {
		return fmt.Errorf("crossfade buffer length mismatch: dst=%d a=%d b=%d", len(dst), len(a), len(b))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range dst {
		mixed := float64(a[i])*c.gainA.Next() + float64(b[i])*c.gainB.Next()
		dst[i] = clipSample(mixed)
	}
	return nil
}

// Process passes samples through unchanged; the node only has an effect
// through Blend, which takes both input streams.
func (c *CrossfadeNode) Process(samples []int16) ([]int16, error) {
	return samples, nil
}

// Name returns the node name for logging.
func (c *CrossfadeNode) Name() string {
	a, b := c.Gains()
	return fmt.Sprintf("Crossfade(%.2f/%.2f)", a, b)
}

// Close releases node resources (no-op for crossfade).
func (c *CrossfadeNode) Close() error { return nil }

// CompressorNode applies downward compression above a threshold.
//
// Uses a smoothed peak follower with separate attack and release rates so
// gain reduction engages quickly on transients and recovers gradually,
// avoiding pumping. Modeled on the same peak-follow approach as the
// automatic gain stage it replaces.
type CompressorNode struct {
	mu          sync.Mutex
	thresholdDB float64
	ratio       float64
	envelope    float64 // smoothed peak, normalized [0, 1]
	attack      float64
	release     float64
}

func newCompressorNode() *CompressorNode {
	logrus.WithFields(logrus.Fields{
		"function": "newCompressorNode",
	}).Debug("Creating compressor node")
	return &CompressorNode{
		thresholdDB: -12.0,
		ratio:       4.0,
		attack:      0.2,
		release:     0.01,
	}
}

// SetThresholdDB updates the compression threshold, clamped to [-60, 0] dB.
func (c *CompressorNode) SetThresholdDB(db float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thresholdDB = clamp(db, -60.0, 0.0)
}

// SetRatio updates the compression ratio, clamped to [1, 20].
func (c *CompressorNode) SetRatio(ratio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ratio = clamp(ratio, 1.0, 20.0)
}

// ThresholdDB returns the stored threshold in decibels.
func (c *CompressorNode) ThresholdDB() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thresholdDB
}

// Process applies gain reduction to samples above the threshold.
func (c *CompressorNode) Process(samples []int16) ([]int16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(samples) == 0 {
		return samples, nil
	}
	threshold := math.Pow(10, c.thresholdDB/20.0)
	for i, sample := range samples {
		level := math.Abs(float64(sample)) / 32768.0
		if level > c.envelope {
			c.envelope += (level - c.envelope) * c.attack
		} else {
			c.envelope += (level - c.envelope) * c.release
		}

		gain := 1.0
		if c.envelope > threshold {
			// Compress the portion of the envelope above threshold.
			compressed := threshold + (c.envelope-threshold)/c.ratio
			gain = compressed / c.envelope
		}
		samples[i] = clipSample(float64(sample) * gain)
	}
	return samples, nil
}

// Name returns the node name for logging.
func (c *CompressorNode) Name() string {
	return fmt.Sprintf("Compressor(%.1fdB %.1f:1)", c.ThresholdDB(), c.ratio)
}

// Close releases node resources (no-op for the compressor).
func (c *CompressorNode) Close() error { return nil }

// LimiterNode applies brick-wall limiting at a ceiling.
//
// A fast-attack envelope follower reduces gain so the output never exceeds
// the configured ceiling; release is slow to avoid distortion on sustained
// loud passages.
type LimiterNode struct {
	mu          sync.Mutex
	thresholdDB float64
	ceiling     float64 // linear ceiling derived from thresholdDB
	envelope    float64
	enabled     bool
}

func newLimiterNode(thresholdDB float64) *LimiterNode {
	l := &LimiterNode{enabled: true}
	l.setThreshold(thresholdDB)
	logrus.WithFields(logrus.Fields{
		"function":     "newLimiterNode",
		"threshold_db": l.thresholdDB,
	}).Debug("Creating limiter node")
	return l
}

// SetThresholdDB updates the limiter ceiling, clamped to [-30, 0] dB.
func (l *LimiterNode) SetThresholdDB(db float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setThreshold(db)
}

func (l *LimiterNode) setThreshold(db float64) {
	l.thresholdDB = clamp(db, -30.0, 0.0)
	l.ceiling = math.Pow(10, l.thresholdDB/20.0)
}

// SetEnabled toggles the limiter; when disabled Process passes through.
func (l *LimiterNode) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Enabled reports whether the limiter is active.
func (l *LimiterNode) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// ThresholdDB returns the stored ceiling in decibels.
func (l *LimiterNode) ThresholdDB() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.thresholdDB
}

// Process limits samples to the configured ceiling.
func (l *LimiterNode) Process(samples []int16) ([]int16, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || len(samples) == 0 {
		return samples, nil
	}
	limitedCount := 0
	for i, sample := range samples {
		level := math.Abs(float64(sample)) / 32768.0
		if level > l.envelope {
			l.envelope = level // instant attack
		} else {
			l.envelope += (level - l.envelope) * 0.005
		}

		gain := 1.0
		if l.envelope > l.ceiling {
			gain = l.ceiling / l.envelope
			limitedCount++
		}
		samples[i] = clipSample(float64(sample) * gain)
	}
	if limitedCount > len(samples)/2 {
		logrus.WithFields(logrus.Fields{
			"function":      "LimiterNode.Process",
			"limited_count": limitedCount,
			"total_samples": len(samples),
			"threshold_db":  l.thresholdDB,
		}).Warn("Sustained limiting detected, input level is too hot")
	}
	return samples, nil
}

// Name returns the node name for logging.
func (l *LimiterNode) Name() string {
	return fmt.Sprintf("Limiter(%.1fdB)", l.ThresholdDB())
}

// Close releases node resources (no-op for the limiter).
func (l *LimiterNode) Close() error { return nil }

// Delay limits.
const (
	MinDelayTime     = time.Millisecond
	MaxDelayTime     = 2 * time.Second
	MaxDelayFeedback = 0.95
)

// DelayNode implements a feedback delay used as the shared effect return.
//
// Output is wet-only: the dry signal stays on the main bus and the node
// emits just the delayed copies, so summing its output back into the mix
// gives the send/return echo without doubling the dry path.
type DelayNode struct {
	mu         sync.Mutex
	sampleRate int
	delay      time.Duration
	feedback   float64
	line       []float64
	pos        int
}

func newDelayNode(delay time.Duration, feedback float64, sampleRate int) *DelayNode {
	d := &DelayNode{sampleRate: sampleRate}
	d.configure(delay, feedback)
	logrus.WithFields(logrus.Fields{
		"function":    "newDelayNode",
		"delay":       d.delay.String(),
		"feedback":    d.feedback,
		"sample_rate": sampleRate,
	}).Debug("Creating delay node")
	return d
}

// SetParams updates delay time and feedback together. Delay is clamped to
// [1ms, 2s] and feedback to [0, 0.95]. Changing the delay time clears the
// line, so any tail still in flight is dropped.
func (d *DelayNode) SetParams(delay time.Duration, feedback float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configure(delay, feedback)
}

// configure recomputes the delay line. Caller holds d.mu.
func (d *DelayNode) configure(delay time.Duration, feedback float64) {
	if delay < MinDelayTime {
		delay = MinDelayTime
	} else if delay > MaxDelayTime {
		delay = MaxDelayTime
	}
	d.feedback = clamp(feedback, 0.0, MaxDelayFeedback)
	if delay == d.delay && d.line != nil {
		return
	}
	d.delay = delay
	frames := int(delay.Seconds() * float64(d.sampleRate))
	if frames < 1 {
		frames = 1
	}
	d.line = make([]float64, frames)
	d.pos = 0
}

// Params returns the stored delay time and feedback.
func (d *DelayNode) Params() (time.Duration, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay, d.feedback
}

// Process replaces samples with the delayed signal, feeding the input plus
// scaled feedback back into the line.
func (d *DelayNode) Process(samples []int16) ([]int16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, sample := range samples {
		delayed := d.line[d.pos]
		d.line[d.pos] = float64(sample) + delayed*d.feedback
		d.pos++
		if d.pos == len(d.line) {
			d.pos = 0
		}
		samples[i] = clipSample(delayed)
	}
	return samples, nil
}

// Name returns the node name for logging.
func (d *DelayNode) Name() string {
	delay, feedback := d.Params()
	return fmt.Sprintf("Delay(%s fb%.2f)", delay, feedback)
}

// Close releases node resources (no-op for the delay).
func (d *DelayNode) Close() error { return nil }
