package audio

import "encoding/binary"

// DownsampleBy3 converts 48 kHz PCM16LE mono to 16 kHz by averaging each run
// of three samples. Good enough for speech recognition input; anything fancier
// belongs in the providers.
func DownsampleBy3(pcm []byte) []byte {
	samples := len(pcm) / 2
	outSamples := samples / 3
	out := make([]byte, outSamples*2)
	for i := 0; i < outSamples; i++ {
		var sum int32
		for j := 0; j < 3; j++ {
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[2*(3*i+j):])))
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(sum/3)))
	}
	return out
}

// PCM16ToInt16 reinterprets little-endian PCM bytes as samples.
func PCM16ToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// Int16ToPCM16 is the inverse of PCM16ToInt16.
func Int16ToPCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
