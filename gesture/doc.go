// Package gesture implements the hand-gesture recognition pipeline of
// gesturemix.
//
// The Recognizer consumes smoothed per-frame hand landmarks (21 points per
// hand, normalized coordinates) and produces classified, confidence-scored
// gesture results: open palm, closed fist, pinch, point, and the two-hand
// spread used for crossfading. Confidence combines the upstream detection
// confidence, a penalty for landmarks near the frame edge, and, for
// discrete gestures, a temporal-consistency factor computed over a short
// ring-buffered history. Results below the configured minimum confidence
// are filtered out before being returned.
//
// Low-confidence frames and lost tracking are not errors: a frame simply
// yields no results and control holds its last value.
package gesture
