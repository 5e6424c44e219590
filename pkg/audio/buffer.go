package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mjibson/go-dsp/wav"
)

// ErrDecode matches every DecodeError via errors.Is.
var ErrDecode = errors.New("audio decode failed")

// ErrEmptyBuffer is returned when analysis is asked to run on no samples.
var ErrEmptyBuffer = errors.New("audio buffer is empty")

// AudioBuffer is a decoded mono signal. Analysis only reads it.
type AudioBuffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the buffer length in seconds
func (b AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// DecodeError reports an unreadable or absent audio source.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode audio %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// DecodeWAV opens a WAV file and downmixes it to mono
func DecodeWAV(path string) (AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioBuffer{}, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	buf, err := Decode(f)
	if err != nil {
		return AudioBuffer{}, &DecodeError{Path: path, Err: err}
	}
	return buf, nil
}

// Decode reads a WAV stream. Interleaved channels are averaged into one.
func Decode(r io.Reader) (AudioBuffer, error) {
	decoder, err := wav.New(r)
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("failed to read wav header: %w", err)
	}

	samples, err := decoder.ReadFloats(decoder.Samples)
	if err != nil && !errors.Is(err, io.EOF) {
		return AudioBuffer{}, fmt.Errorf("failed to read wav samples: %w", err)
	}

	channels := int(decoder.NumChannels)
	if channels < 1 {
		channels = 1
	}
	n := len(samples) / channels
	if n == 0 {
		return AudioBuffer{}, ErrEmptyBuffer
	}

	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[i*channels+c])
		}
		mono[i] = sum / float64(channels)
	}

	return AudioBuffer{Samples: mono, SampleRate: int(decoder.SampleRate)}, nil
}
