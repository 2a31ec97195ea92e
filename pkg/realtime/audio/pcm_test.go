package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodePCM16_ClippingBoundariesExact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want int16
	}{
		{1.0, 32767},
		{-1.0, -32768},
		{1.5, 32767},
		{-1.5, -32768},
		{0, 0},
	}
	for _, tt := range tests {
		pcm := EncodePCM16([]float64{tt.in})
		got := int16(binary.LittleEndian.Uint16(pcm))
		if got != tt.want {
			t.Fatalf("EncodePCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPCM16_RoundTripWithinOneStep(t *testing.T) {
	t.Parallel()

	samples := []float64{-1.0, -0.75, -0.5, -0.25, -1.0 / 32768, 0, 1.0 / 32767, 0.25, 0.5, 0.75, 1.0}
	got := DecodePCM16(EncodePCM16(samples))
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if diff := math.Abs(got[i] - samples[i]); diff > 1.0/32768 {
			t.Fatalf("sample %d: got %v want %v (diff %v)", i, got[i], samples[i], diff)
		}
	}
}

func TestDecodePCM16_IgnoresTrailingOddByte(t *testing.T) {
	t.Parallel()

	if got := DecodePCM16([]byte{0, 0, 0x7f}); len(got) != 1 {
		t.Fatalf("decoded %d samples, want 1", len(got))
	}
}

func TestEncodeFrameB64_DecodeChunkB64RoundTrip(t *testing.T) {
	t.Parallel()

	samples := []float64{0.1, -0.2, 0.3}
	pcm, err := DecodeChunkB64(EncodeFrameB64(samples))
	if err != nil {
		t.Fatalf("DecodeChunkB64 error: %v", err)
	}
	if len(pcm) != len(samples)*2 {
		t.Fatalf("pcm len=%d, want %d", len(pcm), len(samples)*2)
	}
}

func TestPCMToWAV_Header(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 960)
	wav := PCMToWAV(pcm, DefaultConfig())

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav len=%d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF header: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Fatalf("sample rate=%d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size=%d, want %d", got, len(pcm))
	}
}
