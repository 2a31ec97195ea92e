// Package audio provides the capture/playback port interfaces and the PCM16
// codec used by the realtime voice session.
//
// Capture and playback both run at a fixed 24kHz mono 16-bit format. The
// session only talks to the narrow Source and Sink interfaces, so alternative
// device backends (ffmpeg/ffplay processes, test fakes, native bindings) can
// be supplied without touching session logic.
package audio

import (
	"context"
	"errors"
)

// FrameSamples is the fixed capture frame size in samples. The microphone
// stream is sliced into frames of this size before encoding.
const FrameSamples = 4096

// ErrPermissionDenied reports that the capture device is denied or
// unavailable. Terminal for the Start attempt; never retried automatically.
var ErrPermissionDenied = errors.New("audio: capture permission denied or device unavailable")

// Config specifies the audio format parameters.
type Config struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono.
	Channels int

	// BitsPerSample: 16 for PCM16.
	BitsPerSample int
}

// DefaultConfig returns the wire format both directions are pinned to.
func DefaultConfig() Config {
	return Config{
		SampleRate:    24000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c Config) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration.
func (c Config) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}

// Source yields continuous capture audio as floating-point sample frames in
// the range [-1, 1].
//
// Start acquires the underlying device and may fail with ErrPermissionDenied.
// Read fills frame with up to len(frame) samples and returns the count; it
// blocks until samples are available or the source is closed. Close releases
// the device and unblocks any pending Read with io.EOF, and is safe to call
// more than once.
type Source interface {
	Start(ctx context.Context) error
	Read(frame []float64) (int, error)
	Close() error
}

// Sink accepts decoded PCM16 blocks for playback.
//
// Write enqueues a block; blocks play strictly in enqueue order. Flush
// atomically discards everything queued but not yet played (barge-in). Close
// releases the output device and is safe to call more than once.
type Sink interface {
	Write(pcm []byte) error
	Flush()
	Close() error
}
