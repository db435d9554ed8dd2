// Package gesturemix is a gesture-controlled two-deck audio mixer.
//
// The Rig type is the composition root: it owns the audio session with
// its master chain, two playback decks, the crossfader bus, and the
// gesture pipeline (landmark smoothing, recognition, and the
// gesture-to-control mapper). Hand-tracking frames go in through
// SubmitFrame; ProcessPending runs the newest frame through the pipeline
// and applies the resulting control changes to the mixer.
//
// Basic usage:
//
//	rig, err := gesturemix.New(gesturemix.DefaultConfig(),
//		session.NewUserActivation(), source)
//	if err != nil {
//		// handle error
//	}
//	defer rig.Close()
//
//	rig.DeckA().Load(ctx, "track-a")
//	rig.SubmitFrame(frame)
//	rig.ProcessPending()
package gesturemix
