package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func makeWAV(samples []int16, rate int) []byte {
	var buf bytes.Buffer
	dataLen := len(samples) * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

func sine(n, rate int, freq, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Container
	}{
		{"wav", makeWAV([]int16{0, 0}, 16000), ContainerWAV},
		{"id3", []byte("ID3\x04\x00\x00"), ContainerMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, ContainerMP3},
		{"raw pcm", []byte{0x01, 0x02, 0x03, 0x04}, ContainerUnknown},
		{"short", []byte{0xFF}, ContainerUnknown},
		{"riff without wave", []byte("RIFF\x00\x00\x00\x00AVI "), ContainerUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecode_WAVSameRate(t *testing.T) {
	in := sine(1600, 16000, 440, 0.5)
	pcm, err := Decode(makeWAV(in, 16000), 16000)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(pcm) != len(in)*2 {
		t.Fatalf("decoded %d bytes, want %d", len(pcm), len(in)*2)
	}
	for i, want := range in {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if d := int(got) - int(want); d < -2 || d > 2 {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestDecode_WAVResampled(t *testing.T) {
	in := sine(16000, 16000, 440, 0.5) // one second
	pcm, err := Decode(makeWAV(in, 16000), 24000)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	got := Duration(len(pcm), 24000)
	if got < 900*time.Millisecond || got > 1100*time.Millisecond {
		t.Errorf("resampled duration = %v, want about 1s", got)
	}
	if len(pcm)%2 != 0 {
		t.Errorf("odd output length %d", len(pcm))
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3, 4}, 24000); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("raw bytes: err = %v, want ErrUnsupportedFormat", err)
	}

	wav := makeWAV(sine(100, 16000, 440, 0.5), 16000)
	if _, err := Decode(wav[:20], 24000); err == nil {
		t.Error("truncated WAV header should fail")
	}
}

func TestPrepare(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	out, err := Prepare(raw, false, 24000)
	if err != nil || !bytes.Equal(out, raw) {
		t.Errorf("Prepare(raw) = %v, %v", out, err)
	}

	wav := makeWAV(sine(800, 24000, 440, 0.3), 24000)
	out, err = Prepare(wav, true, 24000)
	if err != nil {
		t.Fatalf("Prepare(wav) error = %v", err)
	}
	if len(out) != 1600 {
		t.Errorf("Prepare(wav) = %d bytes, want 1600", len(out))
	}
}

func TestValidatePCM16(t *testing.T) {
	tests := []struct {
		name string
		size int
		want error
	}{
		{"empty", 0, ErrEmptyAudio},
		{"too short", 1022, ErrAudioTooShort},
		{"minimum", MinPCMBytes, nil},
		{"odd", 2049, ErrOddLength},
		{"maximum", MaxPCMBytes, nil},
		{"too large", MaxPCMBytes + 2, ErrAudioTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePCM16(make([]byte, tt.size))
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidatePCM16(%d) = %v, want %v", tt.size, err, tt.want)
			}
		})
	}
}

func TestDecodeBase64Audio(t *testing.T) {
	want := []byte{0x00, 0x01, 0xFE, 0xFF}
	got, err := DecodeBase64Audio(base64.StdEncoding.EncodeToString(want))
	if err != nil || !bytes.Equal(got, want) {
		t.Errorf("DecodeBase64Audio() = %v, %v", got, err)
	}

	if _, err := DecodeBase64Audio(""); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("empty: err = %v", err)
	}
	if _, err := DecodeBase64Audio("not base64!"); !errors.Is(err, ErrBadEncoding) {
		t.Errorf("garbage: err = %v", err)
	}
}

func TestDurationAndSilence(t *testing.T) {
	if d := Duration(48000, 24000); d != time.Second {
		t.Errorf("Duration = %v, want 1s", d)
	}
	if d := Duration(100, 0); d != 0 {
		t.Errorf("Duration with zero rate = %v", d)
	}
	s := Silence(500*time.Millisecond, 24000)
	if len(s) != 24000 {
		t.Errorf("Silence length = %d, want 24000", len(s))
	}
}
