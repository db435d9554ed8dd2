// Package output plays the rendered mix on the system audio device.
//
// The Player wraps an oto playback context and pulls mono signed 16-bit
// buffers from a Renderer on the device's schedule. Render errors do not
// stop the stream: the affected buffer plays as silence so the device
// never underruns on a transient failure.
package output
