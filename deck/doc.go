// Package deck implements the playback channel unit of the gesturemix
// console.
//
// A Deck wraps one playable track plus its per-channel processing chain
// (3-band equalizer → filter → channel gain) and exposes transport
// operations (Load, Play, Pause, Stop, Seek, cue points, loops) and
// parameter setters (volume, pitch, EQ, filter). All parameter setters
// clamp their inputs to documented ranges and apply changes through short
// ramps to avoid audible clicks.
//
// Deck state machine:
//
//	empty → loading → loaded → playing ⇄ paused
//	playing|paused → stopped (position reset, ready to replay)
//	loaded → empty on Unload
//
// Load is asynchronous and latest-wins: a second Load while one is pending
// supersedes the first, and the superseded result is discarded whole rather
// than partially applied.
package deck
