package deck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// TrackRef is an opaque reference to track data: a URL, a file path, or a
// key into an in-memory library. The deck does not interpret it; the
// configured TrackSource does.
type TrackRef string

// Track is a decoded, playable audio resource.
//
// PCM holds mono samples at SampleRate. BPM is externally analysed tempo
// metadata (0 when unknown); the mixer's sync operation reads it, the deck
// itself does not.
type Track struct {
	Title      string
	PCM        []int16
	SampleRate int
	BPM        float64
}

// Frames returns the track length in sample frames.
func (t *Track) Frames() int {
	return len(t.PCM)
}

// Duration returns the track length as wall time.
func (t *Track) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(t.PCM)) / float64(t.SampleRate) * float64(time.Second))
}

// TrackSource resolves opaque track references into decoded tracks. It is
// the boundary to the out-of-scope storage/transcoding layer: given a
// reference it returns either a playable Track or a typed failure
// (ErrUnsupportedFormat, ErrFetchFailed, ErrDecodeFailed).
//
// Resolve must honor context cancellation: a superseded load cancels its
// context and the source should abandon work promptly.
type TrackSource interface {
	Resolve(ctx context.Context, ref TrackRef) (*Track, error)
}

// PCMTrackSource is an in-memory TrackSource backed by a registry of
// already-decoded tracks. Used by tests and the demo CLI.
type PCMTrackSource struct {
	mu     sync.RWMutex
	tracks map[TrackRef]*Track
}

// NewPCMTrackSource creates an empty in-memory track source.
func NewPCMTrackSource() *PCMTrackSource {
	return &PCMTrackSource{tracks: make(map[TrackRef]*Track)}
}

// Add registers a track under the given reference.
func (s *PCMTrackSource) Add(ref TrackRef, track *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[ref] = track
	logrus.WithFields(logrus.Fields{
		"function": "PCMTrackSource.Add",
		"ref":      string(ref),
		"frames":   track.Frames(),
		"bpm":      track.BPM,
	}).Debug("Track registered with PCM source")
}

// Resolve returns the registered track, or ErrFetchFailed if the reference
// is unknown.
func (s *PCMTrackSource) Resolve(ctx context.Context, ref TrackRef) (*Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	track, ok := s.tracks[ref]
	s.mu.RUnlock()
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "PCMTrackSource.Resolve",
			"ref":      string(ref),
		}).Error("Track reference not found")
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, ref)
	}
	return track, nil
}

// PacketFetcher retrieves the encoded Opus packets for a track reference.
// It is the network/storage half of the Opus decode path; OpusTrackSource
// supplies the codec half.
type PacketFetcher func(ctx context.Context, ref TrackRef) (packets [][]byte, sampleRate int, err error)

// OpusTrackSource decodes Opus-encoded tracks into PCM using pion/opus.
//
// The fetcher supplies raw Opus packets; the source decodes them packet by
// packet and concatenates the PCM. Decode failures map to ErrDecodeFailed,
// fetch failures to ErrFetchFailed.
type OpusTrackSource struct {
	fetcher PacketFetcher
}

// maxOpusFrameSamples is the largest Opus frame: 120 ms at 48 kHz.
const maxOpusFrameSamples = 5760

// NewOpusTrackSource creates an Opus track source around a packet fetcher.
func NewOpusTrackSource(fetcher PacketFetcher) *OpusTrackSource {
	logrus.WithFields(logrus.Fields{
		"function": "NewOpusTrackSource",
	}).Info("Creating Opus track source")
	return &OpusTrackSource{fetcher: fetcher}
}

// Resolve fetches and decodes the referenced track.
func (s *OpusTrackSource) Resolve(ctx context.Context, ref TrackRef) (*Track, error) {
	logrus.WithFields(logrus.Fields{
		"function": "OpusTrackSource.Resolve",
		"ref":      string(ref),
	}).Info("Resolving Opus track")

	packets, sampleRate, err := s.fetcher(ctx, ref)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "OpusTrackSource.Resolve",
			"ref":      string(ref),
			"error":    err.Error(),
		}).Error("Opus packet fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	decoder := opus.NewDecoder()
	pcm := make([]int16, 0, len(packets)*960)
	frame := make([]byte, maxOpusFrameSamples*2*2) // stereo worst case

	for i, packet := range packets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, isStereo, err := decoder.Decode(packet, frame)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":     "OpusTrackSource.Resolve",
				"ref":          string(ref),
				"packet_index": i,
				"error":        err.Error(),
			}).Error("Opus decode failed")
			return nil, fmt.Errorf("%w: packet %d: %v", ErrDecodeFailed, i, err)
		}
		pcm = appendDecodedFrame(pcm, frame, isStereo)
	}

	track := &Track{
		Title:      string(ref),
		PCM:        pcm,
		SampleRate: sampleRate,
	}
	logrus.WithFields(logrus.Fields{
		"function": "OpusTrackSource.Resolve",
		"ref":      string(ref),
		"frames":   track.Frames(),
		"duration": track.Duration().String(),
	}).Info("Opus track decoded")
	return track, nil
}

// appendDecodedFrame converts a decoded little-endian frame to int16 mono
// and appends it to pcm. Stereo frames are downmixed by averaging channels.
func appendDecodedFrame(pcm []int16, frame []byte, isStereo bool) []int16 {
	sampleCount := len(frame) / 2
	if isStereo {
		for i := 0; i+3 < len(frame); i += 4 {
			left := int16(frame[i]) | int16(frame[i+1])<<8
			right := int16(frame[i+2]) | int16(frame[i+3])<<8
			pcm = append(pcm, int16((int32(left)+int32(right))/2))
		}
		return pcm
	}
	for i := 0; i < sampleCount; i++ {
		pcm = append(pcm, int16(frame[i*2])|int16(frame[i*2+1])<<8)
	}
	return pcm
}
