package output

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// Renderer produces successive buffers of mono signed 16-bit audio. The
// mixer bus implements it.
type Renderer interface {
	RenderInto(dst []int16) error
}

// renderStream adapts a Renderer to the io.Reader the playback device
// pulls from.
type renderStream struct {
	renderer Renderer
	buf      []int16
}

// Read renders the next chunk and encodes it as little-endian int16
// frames. A render failure plays as silence.
func (s *renderStream) Read(p []byte) (int, error) {
	frames := len(p) / 2
	if frames == 0 {
		return 0, nil
	}
	if len(s.buf) < frames {
		s.buf = make([]int16, frames)
	}
	buf := s.buf[:frames]

	if err := s.renderer.RenderInto(buf); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "renderStream.Read",
			"error":    err.Error(),
		}).Error("Render failed, playing silence")
		for i := range buf {
			buf[i] = 0
		}
	}

	for i, sample := range buf {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(sample))
	}
	return frames * 2, nil
}

// Player streams a Renderer's output to the system audio device.
type Player struct {
	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	started bool
}

// NewPlayer opens the audio device at the given sample rate and binds it
// to the renderer. The call blocks until the device is ready.
func NewPlayer(sampleRate int, renderer Renderer) (*Player, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "output.NewPlayer",
		"sample_rate": sampleRate,
	}).Info("Opening audio device")

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("audio device: %w", err)
	}
	<-ready

	p := &Player{ctx: ctx}
	p.player = ctx.NewPlayer(&renderStream{renderer: renderer})
	return p, nil
}

// Start begins playback. Idempotent.
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.player.Play()
	p.started = true
	logrus.WithField("function", "Player.Start").Info("Playback started")
}

// Close stops playback and releases the device player.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	p.started = false
	logrus.WithField("function", "Player.Close").Info("Playback closed")
	return err
}
