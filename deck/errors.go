package deck

import "errors"

// Sentinel errors for deck operations.
// These errors enable reliable error classification using errors.Is().

// Transport precondition errors.
var (
	// ErrNoTrackLoaded indicates a transport operation was attempted while
	// the deck has no playable track. The deck state is left unchanged.
	ErrNoTrackLoaded = errors.New("no track loaded")

	// ErrDeckLoading indicates a transport operation was attempted while a
	// load is still in flight.
	ErrDeckLoading = errors.New("deck is loading")

	// ErrInvalidCueIndex indicates a cue index outside [0, MaxCuePoints).
	ErrInvalidCueIndex = errors.New("cue index out of range")

	// ErrCueNotSet indicates a jump to a cue slot that has no stored point.
	ErrCueNotSet = errors.New("cue point not set")

	// ErrInvalidLoopRegion indicates a loop with start >= end or bounds
	// outside the track duration. Any existing loop is left untouched.
	ErrInvalidLoopRegion = errors.New("invalid loop region")
)

// Track resolution errors, reported through the load failure path.
var (
	// ErrUnsupportedFormat indicates the track reference points at a format
	// the source cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported track format")

	// ErrFetchFailed indicates the track data could not be retrieved.
	ErrFetchFailed = errors.New("track fetch failed")

	// ErrDecodeFailed indicates the track data was retrieved but could not
	// be decoded.
	ErrDecodeFailed = errors.New("track decode failed")

	// ErrLoadSuperseded indicates a load result was discarded because a
	// newer Load call replaced it. Reported through the error callback.
	ErrLoadSuperseded = errors.New("load superseded by newer request")
)
