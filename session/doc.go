// Package session manages the shared audio engine instance for gesturemix.
//
// The Session owns the single processing context every other component
// renders through: it creates and tracks all audio nodes (gain, equalizer,
// filter, crossfade, compressor, limiter), owns the master output chain
// (summing gain → compressor → limiter), and controls the engine lifecycle.
//
// Lifecycle contract:
//
//	s, _ := session.New(session.DefaultConfig())
//	err := s.Initialize(session.NewUserActivation()) // requires a user gesture
//	gain, _ := s.CreateGain(0.8)
//	...
//	s.Dispose() // idempotent; releases every node the session created
//
// At most one Session should exist per process. The composition root (the
// gesturemix.Rig) enforces this by construction; the package itself does not
// use hidden global state.
package session
