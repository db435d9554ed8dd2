package mapping

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/opd-ai/gesturemix/gesture"
)

// Control identifies what a mapping drives on the control surface.
type Control uint8

const (
	// ControlChannelVolume is a channel's volume fader.
	ControlChannelVolume Control = iota
	// ControlChannelEQLow is a channel's low-band EQ gain.
	ControlChannelEQLow
	// ControlChannelEQMid is a channel's mid-band EQ gain.
	ControlChannelEQMid
	// ControlChannelEQHigh is a channel's high-band EQ gain.
	ControlChannelEQHigh
	// ControlChannelFilter is a channel's filter cutoff sweep.
	ControlChannelFilter
	// ControlCrossfader is the global crossfader position.
	ControlCrossfader
	// ControlPlay starts playback on a channel.
	ControlPlay
	// ControlStop stops playback on a channel.
	ControlStop
	// ControlCueTrigger jumps a channel to its first set cue point.
	ControlCueTrigger
)

// String returns the control name for logging and configuration.
func (c Control) String() string {
	switch c {
	case ControlChannelVolume:
		return "channel_volume"
	case ControlChannelEQLow:
		return "channel_eq_low"
	case ControlChannelEQMid:
		return "channel_eq_mid"
	case ControlChannelEQHigh:
		return "channel_eq_high"
	case ControlChannelFilter:
		return "channel_filter"
	case ControlCrossfader:
		return "crossfader"
	case ControlPlay:
		return "play"
	case ControlStop:
		return "stop"
	case ControlCueTrigger:
		return "cue_trigger"
	default:
		return "unknown"
	}
}

// continuous reports whether the control consumes a streamed value
// rather than a discrete event.
func (c Control) continuous() bool {
	switch c {
	case ControlChannelVolume, ControlChannelEQLow, ControlChannelEQMid,
		ControlChannelEQHigh, ControlChannelFilter, ControlCrossfader:
		return true
	default:
		return false
	}
}

// Target is the destination of a mapping: a control plus the channel it
// applies to. Channel is ignored for global controls such as the
// crossfader.
type Target struct {
	Channel int
	Control Control
}

// String returns the target in "control[channel]" form for logging.
func (t Target) String() string {
	if t.Control == ControlCrossfader {
		return t.Control.String()
	}
	return fmt.Sprintf("%s[%d]", t.Control.String(), t.Channel)
}

// HandFilter restricts a mapping to one hand side.
type HandFilter uint8

const (
	// HandEither matches results from any hand, including two-hand
	// gestures.
	HandEither HandFilter = iota
	// HandLeftOnly matches only left-hand results.
	HandLeftOnly
	// HandRightOnly matches only right-hand results.
	HandRightOnly
)

// String returns the filter name for logging.
func (f HandFilter) String() string {
	switch f {
	case HandEither:
		return "either"
	case HandLeftOnly:
		return "left"
	case HandRightOnly:
		return "right"
	default:
		return "unknown"
	}
}

// matches reports whether a result from the given hand side passes the
// filter.
func (f HandFilter) matches(side gesture.HandSide) bool {
	switch f {
	case HandEither:
		return true
	case HandLeftOnly:
		return side == gesture.HandLeft
	case HandRightOnly:
		return side == gesture.HandRight
	default:
		return false
	}
}

// Mode selects how a mapping converts gesture presence into control
// activity.
type Mode uint8

const (
	// ModeContinuous streams the gesture's derived value into the control
	// every frame the gesture is present.
	ModeContinuous Mode = iota
	// ModeToggle flips a held state on the rising edge of the gesture and
	// holds it until the next rising edge.
	ModeToggle
	// ModeTrigger fires once on the rising edge and re-arms when the
	// gesture releases.
	ModeTrigger
)

// String returns the mode name for logging.
func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeToggle:
		return "toggle"
	case ModeTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// Mapping binds one gesture on one hand to one control target.
type Mapping struct {
	// ID identifies the mapping; Mapper.Add assigns one when zero.
	ID uuid.UUID
	// Gesture is the gesture type that drives the mapping.
	Gesture gesture.Type
	// Hand restricts which hand's results the mapping accepts.
	Hand HandFilter
	// Target is the control the mapping drives.
	Target Target
	// Mode selects continuous, toggle or trigger behaviour.
	Mode Mode
	// Sensitivity scales the transformed continuous value; zero means 1.
	Sensitivity float64
	// Deadzone is the input value below which a continuous mapping stays
	// quiet; the remaining range is rescaled to [0, 1].
	Deadzone float64
	// Threshold is the gesture value above which toggle and trigger
	// mappings count as engaged. Zero engages on bare presence, which is
	// the right default for discrete gestures.
	Threshold float64
	// Smoothing is the time constant in seconds of the per-mapping
	// output smoother on continuous values, on top of the landmark-level
	// filtering. Zero disables it.
	Smoothing float64
	// Invert flips the transformed continuous value.
	Invert bool
}

// validate checks the mapping's static consistency.
func (m *Mapping) validate() error {
	if m.Gesture == gesture.GestureNone {
		return fmt.Errorf("%w: gesture must not be none", ErrInvalidMapping)
	}
	if m.Deadzone < 0 || m.Deadzone >= 1 {
		return fmt.Errorf("%w: deadzone %.2f outside [0, 1)", ErrInvalidMapping, m.Deadzone)
	}
	if m.Sensitivity < 0 {
		return fmt.Errorf("%w: negative sensitivity %.2f", ErrInvalidMapping, m.Sensitivity)
	}
	if m.Threshold < 0 || m.Threshold > 1 {
		return fmt.Errorf("%w: threshold %.2f outside [0, 1]", ErrInvalidMapping, m.Threshold)
	}
	if m.Smoothing < 0 {
		return fmt.Errorf("%w: negative smoothing %.2f", ErrInvalidMapping, m.Smoothing)
	}
	if m.Mode == ModeContinuous && !m.Target.Control.continuous() {
		return fmt.Errorf("%w: control %s cannot take a continuous stream", ErrInvalidMapping, m.Target.Control)
	}
	if m.Mode != ModeContinuous && m.Target.Control.continuous() {
		return fmt.Errorf("%w: control %s requires continuous mode", ErrInvalidMapping, m.Target.Control)
	}
	return nil
}

// transform applies deadzone, sensitivity and inversion to a raw gesture
// value, clamping the result to [0, 1].
func (m *Mapping) transform(value float64) float64 {
	if value <= m.Deadzone {
		value = 0
	} else {
		value = (value - m.Deadzone) / (1 - m.Deadzone)
	}
	sensitivity := m.Sensitivity
	if sensitivity == 0 {
		sensitivity = 1
	}
	value *= sensitivity
	if value > 1 {
		value = 1
	}
	if m.Invert {
		value = 1 - value
	}
	return value
}

// engaged reports whether a result activates a toggle or trigger
// mapping.
func (m *Mapping) engaged(result gesture.Result) bool {
	if m.Threshold == 0 {
		return true
	}
	return result.Value >= m.Threshold
}
