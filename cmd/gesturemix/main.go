// Command gesturemix runs a two-deck demo rig: two synthesized tracks,
// the gesture pipeline fed from a recorded landmark file, and playback on
// the system audio device or a headless render loop.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gesturemix"
	"github.com/opd-ai/gesturemix/deck"
	"github.com/opd-ai/gesturemix/gesture"
	"github.com/opd-ai/gesturemix/mixer"
	"github.com/opd-ai/gesturemix/output"
	"github.com/opd-ai/gesturemix/session"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Version  bool   `short:"v" help:"Show version information"`
	TrackA   string `type:"existingfile" optional:"" help:"Raw mono s16le 48 kHz PCM file for deck A (synth tone when omitted)"`
	TrackB   string `type:"existingfile" optional:"" help:"Raw mono s16le 48 kHz PCM file for deck B (synth tone when omitted)"`
	Frames   string `short:"f" type:"existingfile" optional:"" help:"JSONL landmark recording to replay through the gesture pipeline"`
	Curve    string `default:"logarithmic" help:"Crossfader curve: linear, logarithmic, exponential, scratch or smooth"`
	Headless bool   `help:"Render to a null sink instead of the audio device"`
	Seconds  int    `default:"10" help:"How long to run when no frame recording is given"`
	Rate     int    `default:"30" help:"Frame replay rate in Hz"`
	Debug    bool   `help:"Enable debug logging"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("gesturemix"),
		kong.Description("Gesture-controlled two-deck audio mixer demo"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if cliArgs.Version {
		fmt.Printf("gesturemix %s\n", version)
		os.Exit(0)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cliArgs.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(cliArgs); err != nil {
		ctx.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cliArgs *CLI) error {
	curve := mixer.ParseCurve(cliArgs.Curve)

	source := deck.NewPCMTrackSource()
	trackA, err := resolveTrack(cliArgs.TrackA, "tone-220", 220, 124)
	if err != nil {
		return err
	}
	trackB, err := resolveTrack(cliArgs.TrackB, "tone-330", 330, 128)
	if err != nil {
		return err
	}
	source.Add("deck-a", trackA)
	source.Add("deck-b", trackB)

	rig, err := gesturemix.New(gesturemix.DefaultConfig(), session.NewUserActivation(), source)
	if err != nil {
		return err
	}
	defer rig.Close()

	rig.Mixer().SetCrossfaderCurve(curve)
	rig.SetGestureCallback(func(result gesture.Result) {
		logrus.WithFields(logrus.Fields{
			"gesture":    result.Type.String(),
			"hand":       result.Hand.String(),
			"confidence": result.Confidence,
			"value":      result.Value,
		}).Info("Gesture recognized")
	})

	if err := loadAndPlay(rig); err != nil {
		return err
	}

	stopAudio, err := startAudio(rig, cliArgs.Headless)
	if err != nil {
		return err
	}
	defer stopAudio()

	if cliArgs.Frames != "" {
		return replayFrames(rig, cliArgs.Frames, cliArgs.Rate)
	}
	time.Sleep(time.Duration(cliArgs.Seconds) * time.Second)
	return nil
}

// loadAndPlay loads the demo tracks onto both decks and starts them.
func loadAndPlay(rig *gesturemix.Rig) error {
	rig.DeckA().Load(context.Background(), "deck-a")
	rig.DeckB().Load(context.Background(), "deck-b")
	for _, d := range []*deck.Deck{rig.DeckA(), rig.DeckB()} {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) && d.State() == deck.StateLoading {
			time.Sleep(time.Millisecond)
		}
		if d.State() != deck.StateLoaded {
			return fmt.Errorf("deck %d failed to load", d.ID())
		}
		if err := d.Play(); err != nil {
			return err
		}
	}
	return nil
}

// startAudio begins playback on the device, or spawns a headless render
// loop, and returns the matching stop function.
func startAudio(rig *gesturemix.Rig, headless bool) (func(), error) {
	if !headless {
		player, err := output.NewPlayer(rig.Session().SampleRate(), rig)
		if err != nil {
			return nil, err
		}
		player.Start()
		return func() { player.Close() }, nil
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		buf := make([]int16, rig.Session().BufferSize())
		interval := time.Duration(float64(len(buf)) / float64(rig.Session().SampleRate()) * float64(time.Second))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := rig.RenderInto(buf); err != nil {
					logrus.WithField("error", err.Error()).Error("Headless render failed")
				}
			}
		}
	}()
	return func() { close(done); <-stopped }, nil
}

// handJSON is one hand in a recorded frame: 21 [x, y, z] landmark
// triples plus the tracker confidence.
type handJSON struct {
	Confidence float64      `json:"confidence"`
	Points     [][3]float64 `json:"points"`
}

// frameJSON is one line of a JSONL landmark recording.
type frameJSON struct {
	Left  *handJSON `json:"left"`
	Right *handJSON `json:"right"`
}

func (h *handJSON) toLandmarks() (*gesture.HandLandmarks, error) {
	if len(h.Points) != gesture.LandmarkCount {
		return nil, fmt.Errorf("expected %d landmarks, got %d", gesture.LandmarkCount, len(h.Points))
	}
	out := &gesture.HandLandmarks{Confidence: h.Confidence}
	for i, p := range h.Points {
		out.Points[i] = gesture.Point{X: p[0], Y: p[1], Z: p[2]}
	}
	return out, nil
}

// replayFrames feeds a JSONL landmark recording through the rig at the
// given rate.
func replayFrames(rig *gesturemix.Rig, path string, rate int) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if rate <= 0 {
		rate = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec frameJSON
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("frame line %d: %w", line, err)
		}

		frame := &gesture.LandmarkFrame{Timestamp: time.Now()}
		if rec.Left != nil {
			if frame.Left, err = rec.Left.toLandmarks(); err != nil {
				return fmt.Errorf("frame line %d left hand: %w", line, err)
			}
		}
		if rec.Right != nil {
			if frame.Right, err = rec.Right.toLandmarks(); err != nil {
				return fmt.Errorf("frame line %d right hand: %w", line, err)
			}
		}

		<-ticker.C
		rig.SubmitFrame(frame)
		rig.ProcessPending()
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"frames":  line,
		"dropped": rig.DroppedFrames(),
	}).Info("Frame replay finished")
	return nil
}

// resolveTrack loads a raw PCM file when a path is given, falling back
// to a synthesized tone.
func resolveTrack(path, fallbackTitle string, frequency, bpm float64) (*deck.Track, error) {
	if path == "" {
		return synthTrack(fallbackTitle, frequency, bpm), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%s: no audio data", path)
	}
	pcm := make([]int16, len(data)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return &deck.Track{Title: path, PCM: pcm, SampleRate: 48000, BPM: bpm}, nil
}

// synthTrack builds a ten-second sine tone with a BPM annotation so the
// sync controls have tempo to work with.
func synthTrack(title string, frequency float64, bpm float64) *deck.Track {
	const sampleRate = 48000
	pcm := make([]int16, sampleRate*10)
	for i := range pcm {
		pcm[i] = int16(12000 * math.Sin(2*math.Pi*frequency*float64(i)/sampleRate))
	}
	return &deck.Track{Title: title, PCM: pcm, SampleRate: sampleRate, BPM: bpm}
}
