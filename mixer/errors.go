package mixer

import "errors"

// Sentinel errors for mixer operations.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrSyncRangeExceeded indicates the pitch adjustment required to match
	// the master deck's tempo falls outside the deck's ±8% pitch range.
	// No change is applied.
	ErrSyncRangeExceeded = errors.New("required pitch adjustment exceeds deck range")

	// ErrTempoUnknown indicates one of the decks has no analysed tempo, so
	// sync cannot compute an adjustment.
	ErrTempoUnknown = errors.New("deck tempo unknown")

	// ErrUnknownDeck indicates a deck identifier that is not part of this
	// mixer.
	ErrUnknownDeck = errors.New("unknown deck")

	// ErrNotSynced indicates Unsync was called with no sync relationship
	// active.
	ErrNotSynced = errors.New("no sync relationship active")
)
