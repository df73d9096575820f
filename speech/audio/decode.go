package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// Container is a detected audio container format.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerWAV
	ContainerMP3
)

func (c Container) String() string {
	switch c {
	case ContainerWAV:
		return "wav"
	case ContainerMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// ErrUnsupportedFormat is returned for audio that is neither WAV nor MP3.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

const resampleQuality = 4

// Sniff detects the container from the first bytes of data.
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ContainerMP3
	}
	return ContainerUnknown
}

// Decode turns WAV or MP3 bytes into mono PCM16LE at sampleRate.
func Decode(data []byte, sampleRate int) ([]byte, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	switch c := Sniff(data); c {
	case ContainerWAV:
		streamer, format, err = wav.Decode(bytes.NewReader(data))
	case ContainerMP3:
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if int(format.SampleRate) != sampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(sampleRate), streamer)
	}

	return encodeMono(s), nil
}

// encodeMono drains s and mixes each stereo frame down to one PCM16 sample.
func encodeMono(s beep.Streamer) []byte {
	var out bytes.Buffer
	frames := make([][2]float64, 512)
	sample := make([]byte, BytesPerSample)

	for {
		n, ok := s.Stream(frames)
		for _, f := range frames[:n] {
			v := (f[0] + f[1]) / 2
			v = math.Max(-1, math.Min(1, v))
			binary.LittleEndian.PutUint16(sample, uint16(int16(v*math.MaxInt16)))
			out.Write(sample)
		}
		if !ok {
			break
		}
	}
	return out.Bytes()
}

// Prepare returns playable PCM: encoded audio is decoded, raw PCM is
// passed through.
func Prepare(data []byte, needsDecode bool, sampleRate int) ([]byte, error) {
	if !needsDecode {
		return data, nil
	}
	return Decode(data, sampleRate)
}
