// Package tone synthesizes the short test beep as a WAV file.
package tone

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultFrequency  = 880.0
	DefaultDuration   = 250 * time.Millisecond
	DefaultSampleRate = 44100

	maxDuration = 10 * time.Second
	amplitude   = 0.3
	// fade applied to both ends to avoid clicks
	fade = 5 * time.Millisecond
)

var ErrInvalidTone = errors.New("invalid tone parameters")

// Beep returns the default beep.
func Beep() ([]byte, error) {
	return Generate(DefaultFrequency, DefaultDuration, DefaultSampleRate)
}

// Generate returns a 16-bit mono PCM WAV of a sine at freq Hz.
func Generate(freq float64, d time.Duration, sampleRate int) ([]byte, error) {
	switch {
	case sampleRate <= 0:
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidTone, sampleRate)
	case freq <= 0 || math.IsNaN(freq) || freq >= float64(sampleRate)/2:
		return nil, fmt.Errorf("%w: frequency %v", ErrInvalidTone, freq)
	case d <= 0 || d > maxDuration:
		return nil, fmt.Errorf("%w: duration %v", ErrInvalidTone, d)
	}

	n := int(int64(sampleRate) * int64(d) / int64(time.Second))
	ramp := int(int64(sampleRate) * int64(fade) / int64(time.Second))
	if ramp*2 > n {
		ramp = n / 2
	}
	samples := make([]int16, n)
	for i := range samples {
		gain := amplitude
		switch {
		case i < ramp:
			gain *= float64(i) / float64(ramp)
		case i >= n-ramp:
			gain *= float64(n-1-i) / float64(ramp)
		}
		v := math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
		samples[i] = int16(math.Round(v * gain * math.MaxInt16))
	}

	var buf bytes.Buffer
	dataLen := uint32(n * 2)
	hdr := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataLen,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataLen,
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}
	return buf.Bytes(), nil
}
