package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/ketzcommerce/storevoice/pkg/realtime/audio"
)

// ffmpegSource captures the default microphone through an ffmpeg child
// process emitting raw s16le mono at the session sample rate. It satisfies
// audio.Source.
type ffmpegSource struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
}

func newFFmpegSource() *ffmpegSource {
	return &ffmpegSource{}
}

func micFFmpegArgs(goos string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", ":0",
			"-ac", "1", "-ar", fmt.Sprintf("%d", audio.DefaultConfig().SampleRate),
			"-f", "s16le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", fmt.Sprintf("%d", audio.DefaultConfig().SampleRate),
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
}

func (m *ffmpegSource) Start(ctx context.Context) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("%w: ffmpeg not found in PATH", audio.ErrPermissionDenied)
	}
	args, err := micFFmpegArgs(runtime.GOOS)
	if err != nil {
		return fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != nil {
		return nil
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", audio.ErrPermissionDenied, err)
	}
	m.cmd = cmd
	m.stdout = stdout
	return nil
}

// Read fills frame with float samples decoded from the mic stream. It
// blocks until a full frame is available or the capture process exits.
func (m *ffmpegSource) Read(frame []float64) (int, error) {
	m.mu.Lock()
	stdout := m.stdout
	m.mu.Unlock()
	if stdout == nil {
		return 0, errors.New("mic capture is not started")
	}

	want := len(frame) * 2
	if cap(m.buf) < want {
		m.buf = make([]byte, want)
	}
	buf := m.buf[:want]
	if _, err := io.ReadFull(stdout, buf); err != nil {
		return 0, err
	}
	samples := audio.DecodePCM16(buf)
	return copy(frame, samples), nil
}

func (m *ffmpegSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
	}
	m.cmd = nil
	m.stdout = nil
	return nil
}
