package mapping

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gesturemix/gesture"
)

// ControlSurface receives the mapper's dispatched control changes. The
// mixer facade implements it.
type ControlSurface interface {
	// ApplyContinuous sets a continuous control to a value in [0, 1].
	ApplyContinuous(target Target, value float64) error
	// ApplyDiscrete delivers a discrete event: the flipped state for
	// toggle mappings, always true for triggers.
	ApplyDiscrete(target Target, engaged bool) error
}

// Mapper holds the mapping table and dispatches recognition results to
// the control surface. The table is an immutable snapshot replaced on
// every edit; per-mapping runtime state (toggle states, trigger arming)
// lives beside it keyed by mapping ID.
type Mapper struct {
	mu      sync.RWMutex
	surface ControlSurface
	table   map[gesture.Type][]*Mapping

	// active tracks which mappings matched the previous frame, for
	// rising-edge detection.
	active  map[uuid.UUID]bool
	toggles map[uuid.UUID]bool
	// lastValues carries each continuous mapping's last dispatched value
	// for the per-mapping output smoother.
	lastValues map[uuid.UUID]float64
}

// nominalFrameInterval converts mapping smoothing time constants into a
// per-frame blend at the typical tracking rate.
const nominalFrameInterval = 1.0 / 30.0

// NewMapper creates an empty mapper dispatching to the given surface.
//
// Parameters:
//   - surface: the control surface that receives dispatched changes
//
// Returns the mapper, or ErrNilSurface when surface is nil.
func NewMapper(surface ControlSurface) (*Mapper, error) {
	if surface == nil {
		return nil, ErrNilSurface
	}
	logrus.WithField("function", "NewMapper").Info("Creating gesture mapper")
	return &Mapper{
		surface:    surface,
		table:      make(map[gesture.Type][]*Mapping),
		active:     make(map[uuid.UUID]bool),
		toggles:    make(map[uuid.UUID]bool),
		lastValues: make(map[uuid.UUID]float64),
	}, nil
}

// Add validates and installs a mapping, assigning an ID when the zero
// UUID is given, and returns the mapping's ID.
func (mp *Mapper) Add(m Mapping) (uuid.UUID, error) {
	if err := m.validate(); err != nil {
		return uuid.Nil, err
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// One mapping per (gesture, hand): installing over an existing pair
	// replaces it.
	table := mp.copyTable()
	mappings := table[m.Gesture]
	for i, existing := range mappings {
		if existing.Hand != m.Hand {
			continue
		}
		mp.clearRuntimeState(existing.ID)
		mappings = append(mappings[:i:i], mappings[i+1:]...)
		logrus.WithFields(logrus.Fields{
			"function":    "Mapper.Add",
			"replaced_id": existing.ID.String(),
			"gesture":     m.Gesture.String(),
			"hand":        m.Hand.String(),
		}).Info("Replacing conflicting mapping")
		break
	}
	table[m.Gesture] = append(mappings, &m)
	mp.table = table

	logrus.WithFields(logrus.Fields{
		"function":   "Mapper.Add",
		"mapping_id": m.ID.String(),
		"gesture":    m.Gesture.String(),
		"hand":       m.Hand.String(),
		"target":     m.Target.String(),
		"mode":       m.Mode.String(),
	}).Info("Mapping added")
	return m.ID, nil
}

// Remove deletes the mapping with the given ID along with its runtime
// state.
func (mp *Mapper) Remove(id uuid.UUID) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	table := mp.copyTable()
	for g, mappings := range table {
		for i, m := range mappings {
			if m.ID != id {
				continue
			}
			table[g] = append(mappings[:i:i], mappings[i+1:]...)
			if len(table[g]) == 0 {
				delete(table, g)
			}
			mp.table = table
			mp.clearRuntimeState(id)

			logrus.WithFields(logrus.Fields{
				"function":   "Mapper.Remove",
				"mapping_id": id.String(),
			}).Info("Mapping removed")
			return nil
		}
	}
	return ErrMappingNotFound
}

// Mappings returns a copy of every installed mapping.
func (mp *Mapper) Mappings() []Mapping {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	var out []Mapping
	for _, mappings := range mp.table {
		for _, m := range mappings {
			out = append(out, *m)
		}
	}
	return out
}

// copyTable clones the table for copy-on-write edits. Caller holds the
// write lock.
func (mp *Mapper) copyTable() map[gesture.Type][]*Mapping {
	table := make(map[gesture.Type][]*Mapping, len(mp.table))
	for g, mappings := range mp.table {
		table[g] = append([]*Mapping(nil), mappings...)
	}
	return table
}

// DispatchAll routes one frame's recognition results to the control
// surface. Continuous mappings stream every frame they match; toggle and
// trigger mappings fire on the rising edge of their gesture and release
// when it disappears or drops below threshold. Surface errors are logged
// and do not stop the frame.
func (mp *Mapper) DispatchAll(results []gesture.Result) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	matched := make(map[uuid.UUID]bool)
	for _, result := range results {
		for _, m := range mp.table[result.Type] {
			if !m.Hand.matches(result.Hand) {
				continue
			}
			mp.dispatch(m, result, matched)
		}
	}

	// Mappings that stopped matching release their edge state.
	for id, wasActive := range mp.active {
		if wasActive && !matched[id] {
			mp.active[id] = false
		}
	}
}

// dispatch applies one result to one mapping. Caller holds the lock.
func (mp *Mapper) dispatch(m *Mapping, result gesture.Result, matched map[uuid.UUID]bool) {
	switch m.Mode {
	case ModeContinuous:
		matched[m.ID] = true
		mp.active[m.ID] = true
		value := m.transform(result.Value)
		if m.Smoothing > 0 {
			if prev, ok := mp.lastValues[m.ID]; ok {
				alpha := nominalFrameInterval / m.Smoothing
				if alpha > 1 {
					alpha = 1
				}
				value = prev + alpha*(value-prev)
			}
		}
		mp.lastValues[m.ID] = value
		if err := mp.surface.ApplyContinuous(m.Target, value); err != nil {
			mp.logDispatchError(m, err)
		}

	case ModeToggle:
		if !m.engaged(result) {
			return
		}
		matched[m.ID] = true
		if mp.active[m.ID] {
			return
		}
		mp.active[m.ID] = true
		mp.toggles[m.ID] = !mp.toggles[m.ID]
		if err := mp.surface.ApplyDiscrete(m.Target, mp.toggles[m.ID]); err != nil {
			mp.logDispatchError(m, err)
		}

	case ModeTrigger:
		if !m.engaged(result) {
			return
		}
		matched[m.ID] = true
		if mp.active[m.ID] {
			return
		}
		mp.active[m.ID] = true
		if err := mp.surface.ApplyDiscrete(m.Target, true); err != nil {
			mp.logDispatchError(m, err)
		}
	}
}

func (mp *Mapper) logDispatchError(m *Mapping, err error) {
	logrus.WithFields(logrus.Fields{
		"function":   "Mapper.dispatch",
		"mapping_id": m.ID.String(),
		"target":     m.Target.String(),
		"error":      err.Error(),
	}).Warn("Control dispatch failed")
}

// clearRuntimeState drops a mapping's edge, toggle and smoother state.
// Caller holds the lock.
func (mp *Mapper) clearRuntimeState(id uuid.UUID) {
	delete(mp.active, id)
	delete(mp.toggles, id)
	delete(mp.lastValues, id)
}

// Reset clears all runtime edge, toggle and smoother state without
// touching the mapping table, used when the frame pipeline restarts or
// tracking is lost.
func (mp *Mapper) Reset() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.active = make(map[uuid.UUID]bool)
	mp.toggles = make(map[uuid.UUID]bool)
	mp.lastValues = make(map[uuid.UUID]float64)
}

// DefaultProfile returns the stock two-deck mapping set: pinches drive
// the channel volumes, the two-hand spread drives the crossfader, an
// open palm toggles play, a fist stops, and a point fires the first cue.
func DefaultProfile() []Mapping {
	return []Mapping{
		{
			Gesture: gesture.GesturePinch,
			Hand:    HandLeftOnly,
			Target:  Target{Channel: 0, Control: ControlChannelVolume},
			Mode:    ModeContinuous,
		},
		{
			Gesture: gesture.GesturePinch,
			Hand:    HandRightOnly,
			Target:  Target{Channel: 1, Control: ControlChannelVolume},
			Mode:    ModeContinuous,
		},
		{
			Gesture: gesture.GestureTwoHandSpread,
			Hand:    HandEither,
			Target:  Target{Control: ControlCrossfader},
			Mode:    ModeContinuous,
			// A small deadzone keeps hands at rest from nudging the fader.
			Deadzone: 0.05,
		},
		{
			Gesture: gesture.GestureOpenPalm,
			Hand:    HandEither,
			Target:  Target{Channel: 0, Control: ControlPlay},
			Mode:    ModeToggle,
		},
		{
			Gesture: gesture.GestureClosedFist,
			Hand:    HandEither,
			Target:  Target{Channel: 0, Control: ControlStop},
			Mode:    ModeTrigger,
		},
		{
			Gesture: gesture.GesturePoint,
			Hand:    HandEither,
			Target:  Target{Channel: 0, Control: ControlCueTrigger},
			Mode:    ModeTrigger,
		},
	}
}
