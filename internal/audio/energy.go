package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// RMS returns the root-mean-square amplitude of s16le PCM on the int16 scale.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / BytesPerSample
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}

// Duration converts a PCM byte count in the capture format to wall time.
func Duration(bytes int) time.Duration {
	return time.Duration(bytes) * time.Second / BytesPerSecond
}
