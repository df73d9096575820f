package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// FrameInterval is the lip sync resolution, about 30 frames per second.
const FrameInterval = 33 * time.Millisecond

const mouthFloor = 0.05

// Envelope computes one mouth-open value in [0, 1] per FrameInterval of
// mono PCM16 at sampleRate.
func Envelope(pcm []byte, sampleRate int) []float64 {
	if sampleRate <= 0 {
		return nil
	}
	per := int(int64(sampleRate) * int64(FrameInterval) / int64(time.Second))
	if per <= 0 {
		per = 1
	}
	samples := len(pcm) / BytesPerSample
	if samples == 0 {
		return nil
	}

	out := make([]float64, 0, (samples+per-1)/per)
	for start := 0; start < samples; start += per {
		end := min(start+per, samples)
		out = append(out, MouthOpen(pcm[start*BytesPerSample:end*BytesPerSample]))
	}
	return out
}

// MouthOpen maps one frame of PCM16 to how far the mouth opens. Loudness is
// the larger of twice the RMS and 80% of the peak, pushed through a
// sigmoid; very quiet frames close the mouth.
func MouthOpen(frame []byte) float64 {
	n := len(frame) / BytesPerSample
	if n == 0 {
		return 0
	}

	var sum, peak float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(frame[i*2:]))) / 32768
		sum += v * v
		peak = math.Max(peak, math.Abs(v))
	}
	rms := math.Sqrt(sum / float64(n))

	volume := math.Max(rms*2, peak*0.8)
	volume = 1 / (1 + math.Exp(-20*volume+3))
	if volume < mouthFloor {
		return 0
	}
	return math.Min(volume, 1)
}
