package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrNoSamples = errors.New("no samples to encode")

// WriteWAV writes samples as 16-bit mono PCM WAV. Samples are clipped to [-1, 1].
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish wav: %w", err)
	}
	return nil
}

// EncodeWAV returns samples as WAV file bytes. The encoder seeks back to
// patch the header, so the file is staged in a temporary file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "music-tutor-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := WriteWAV(f, samples, sampleRate); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind temp wav: %w", err)
	}
	return io.ReadAll(f)
}
