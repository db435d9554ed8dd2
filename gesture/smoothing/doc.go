// Package smoothing filters the raw hand-landmark stream before gesture
// recognition.
//
// Camera-based hand tracking jitters at the millimeter scale, which is
// enough to make mapped audio controls audibly wobble. The Smoother runs
// one scalar filter per landmark coordinate (21 landmarks, three axes,
// per hand) over consecutive frames. Two filter implementations are
// provided: a constant-velocity Kalman filter, the default, and a simpler
// exponential moving average. Filters initialize from the first
// observation so the first smoothed frame passes through unchanged, and a
// hand absent from a frame resets its bank so reacquired tracking does
// not drag in stale state.
package smoothing
