package audio

import "encoding/binary"

// FloatToPCM16 converts normalized float samples to 16-bit PCM. Samples
// outside [-1, 1] are rescaled so the loudest sample hits full scale.
func FloatToPCM16(samples []float64) []int16 {
	if len(samples) == 0 {
		return nil
	}

	peak := 0.0
	for _, s := range samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}

	scale := 1.0
	if peak > 1.0 {
		scale = 1.0 / peak
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := s * scale * 32767.0
		if v > 32767.0 {
			v = 32767.0
		} else if v < -32768.0 {
			v = -32768.0
		}
		pcm[i] = int16(v)
	}

	return pcm
}

// PCM16ToFloat converts 16-bit PCM samples back to normalized floats.
func PCM16ToFloat(pcm []int16) []float64 {
	samples := make([]float64, len(pcm))
	for i, v := range pcm {
		samples[i] = float64(v) / 32767.0
	}
	return samples
}

// PCM16Bytes serializes 16-bit PCM samples as little-endian bytes, the
// layout of raw outbound audio frames.
func PCM16Bytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// BytesToPCM16 parses little-endian 16-bit PCM bytes. A trailing odd byte
// is dropped.
func BytesToPCM16(data []byte) []int16 {
	n := len(data) / 2
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return pcm
}
