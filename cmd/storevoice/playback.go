package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/ketzcommerce/storevoice/pkg/realtime/audio"
)

// ffplaySink plays PCM16 chunks through an ffplay child process. Flush
// kills and respawns the process, which is the only way to drop audio
// ffplay has already buffered; that makes barge-in cut playback instantly.
// It satisfies audio.Sink.
type ffplaySink struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newFFplaySink() (*ffplaySink, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}
	p := &ffplaySink{}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.startLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ffplaySink) startLocked() error {
	cmd := exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", audio.DefaultConfig().SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	p.cmd = cmd
	p.stdin = stdin
	return nil
}

func (p *ffplaySink) Write(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		if err := p.startLocked(); err != nil {
			return err
		}
	}
	_, err := p.stdin.Write(pcm)
	return err
}

func (p *ffplaySink) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	// Respawn lazily on the next Write; a stopped player is silent.
}

func (p *ffplaySink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	return nil
}

func (p *ffplaySink) killLocked() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	p.cmd = nil
	p.stdin = nil
}
