package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/ketzcommerce/storevoice/pkg/realtime/audio"
	"github.com/ketzcommerce/storevoice/pkg/store"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestParseAppConfig_DefaultsAndEnv(t *testing.T) {
	t.Parallel()

	cfg, err := parseAppConfig(nil, envMap(map[string]string{
		"STOREVOICE_CATALOG_URL": "http://catalog.internal:8000/api/v1",
	}))
	if err != nil {
		t.Fatalf("parseAppConfig error: %v", err)
	}
	if cfg.RealtimeURL != defaultRealtimeURL {
		t.Fatalf("RealtimeURL=%q, want %q", cfg.RealtimeURL, defaultRealtimeURL)
	}
	if cfg.CatalogURL != "http://catalog.internal:8000/api/v1" {
		t.Fatalf("CatalogURL=%q", cfg.CatalogURL)
	}
	if cfg.ReadyTimeout != 5*time.Second {
		t.Fatalf("ReadyTimeout=%v, want 5s", cfg.ReadyTimeout)
	}
}

func TestParseAppConfig_FlagsOverrideEnv(t *testing.T) {
	t.Parallel()

	cfg, err := parseAppConfig(
		[]string{"-realtime-url", "ws://edge:9000/realtime/ws", "-ready-timeout", "2s", "-no-playback"},
		envMap(map[string]string{"STOREVOICE_REALTIME_URL": "ws://ignored:1/ws"}),
	)
	if err != nil {
		t.Fatalf("parseAppConfig error: %v", err)
	}
	if cfg.RealtimeURL != "ws://edge:9000/realtime/ws" {
		t.Fatalf("RealtimeURL=%q", cfg.RealtimeURL)
	}
	if cfg.ReadyTimeout != 2*time.Second {
		t.Fatalf("ReadyTimeout=%v", cfg.ReadyTimeout)
	}
	if !cfg.NoPlayback {
		t.Fatal("NoPlayback not set")
	}
}

func TestDumpSink_WritesWAVOnClose(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/assistant.wav"
	sink := newDumpSink(audio.NewQueueSink(nil), path)

	if err := sink.Write([]byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("write: %v", err)
	}
	sink.Flush()
	if err := sink.Write([]byte{0x05, 0x06}); err != nil {
		t.Fatalf("write after flush: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if len(data) != 44+6 {
		t.Fatalf("dump is %d bytes, want 44-byte header plus 6 PCM bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("dump is not a WAV file: % x", data[:12])
	}
}

func TestPrintingLog_EchoesEntries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := &printingLog{inner: store.NewMemoryLog(), out: &buf}
	log.Append("user", "any 18v batteries in stock?")

	if got := buf.String(); got != "[user] any 18v batteries in stock?\n" {
		t.Fatalf("output = %q", got)
	}
	if msgs := log.inner.Messages(); len(msgs) != 1 {
		t.Fatalf("inner log = %+v", msgs)
	}
}
