package audio

import (
	"encoding/base64"
	"encoding/binary"
)

// EncodePCM16 quantizes floating-point samples in [-1, 1] to little-endian
// 16-bit signed PCM. Samples are clamped first; negative values scale by
// 32768 and positive by 32767, matching standard PCM16 convention so that
// -1.0 maps to -32768 and +1.0 to 32767 exactly.
func EncodePCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample < -1 {
			sample = -1
		} else if sample > 1 {
			sample = 1
		}
		var v int16
		if sample < 0 {
			v = int16(sample * 32768)
		} else {
			v = int16(sample * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 converts little-endian 16-bit signed PCM back to floating-point
// samples. A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float64 {
	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if v < 0 {
			samples[i] = float64(v) / 32768
		} else {
			samples[i] = float64(v) / 32767
		}
	}
	return samples
}

// EncodeFrameB64 encodes a capture frame for the JSON transport.
func EncodeFrameB64(samples []float64) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16(samples))
}

// DecodeChunkB64 decodes a base64 playback chunk to raw PCM16 bytes.
func DecodeChunkB64(audioB64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(audioB64)
}

// PCMToWAV wraps raw PCM data with a 44-byte WAV header so dumps can be
// played or inspected with standard tooling.
func PCMToWAV(pcm []byte, cfg Config) []byte {
	dataLen := len(pcm)
	byteRate := cfg.BytesPerSecond()
	blockAlign := cfg.Channels * cfg.BitsPerSample / 8

	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(cfg.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(cfg.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(cfg.BitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}
