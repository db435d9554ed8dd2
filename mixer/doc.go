// Package mixer implements the crossfader and master bus of the gesturemix
// console.
//
// The Mixer combines the two crossfaded deck outputs into the master chain
// owned by the session (gain → compressor → limiter). The crossfader
// position is continuous in [-1, +1] (-1 = deck A only, +1 = deck B only)
// and maps to a per-channel gain pair through a selectable fade curve. A
// configurable cut-lag silences the opposite channel slightly before the
// mechanical extreme for scratch-style hard cuts.
//
// A shared effect return runs alongside the dry bus: each deck's send tap
// feeds a wet-only feedback delay whose output is summed into the mix after
// the crossfade, so a channel faded out can still be heard through the
// effect.
//
// The mixer also owns tempo sync: Sync aligns the non-master deck's
// playback rate to the master deck's analysed tempo, all-or-nothing within
// the deck's ±8% pitch range.
package mixer
