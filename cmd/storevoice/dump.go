package main

import (
	"os"
	"sync"

	"github.com/ketzcommerce/storevoice/pkg/realtime/audio"
)

// dumpSink tees assistant PCM into a buffer and writes it out as a WAV
// file on Close, while forwarding everything to the real sink.
type dumpSink struct {
	inner audio.Sink
	path  string

	mu  sync.Mutex
	pcm []byte
}

func newDumpSink(inner audio.Sink, path string) *dumpSink {
	return &dumpSink{inner: inner, path: path}
}

func (d *dumpSink) Write(pcm []byte) error {
	d.mu.Lock()
	d.pcm = append(d.pcm, pcm...)
	d.mu.Unlock()
	return d.inner.Write(pcm)
}

// Flush only interrupts playback; the dump keeps everything received so the
// file reflects the full assistant audio, barge-ins included.
func (d *dumpSink) Flush() {
	d.inner.Flush()
}

func (d *dumpSink) Close() error {
	d.mu.Lock()
	pcm := d.pcm
	d.pcm = nil
	d.mu.Unlock()

	err := d.inner.Close()
	if len(pcm) == 0 {
		return err
	}
	wav := audio.PCMToWAV(pcm, audio.DefaultConfig())
	if writeErr := os.WriteFile(d.path, wav, 0o644); writeErr != nil && err == nil {
		err = writeErr
	}
	return err
}
