// Package audio captures sample streams and derives coarse musical measurements
// from them. The measurements are heuristics, not calibrated pitch or tempo.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrPermissionDenied = errors.New("audio input permission denied")
	ErrNotOpen          = errors.New("audio source is not open")
	ErrInvalidWAV       = errors.New("not a valid WAV file")
)

// Source yields mono samples in [-1, 1].
type Source interface {
	Open(ctx context.Context) error
	Read(buf []float32) (int, error)
	SampleRate() int
	Close() error
}

// SliceSource replays samples held in memory.
type SliceSource struct {
	samples []float32
	rate    int
	pos     int
	open    bool
}

func NewSliceSource(samples []float32, sampleRate int) *SliceSource {
	return &SliceSource{samples: samples, rate: sampleRate}
}

func (s *SliceSource) Open(context.Context) error {
	s.pos = 0
	s.open = true
	return nil
}

func (s *SliceSource) Read(buf []float32) (int, error) {
	if !s.open {
		return 0, ErrNotOpen
	}
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(buf, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *SliceSource) SampleRate() int { return s.rate }

func (s *SliceSource) Close() error {
	s.open = false
	return nil
}

// WAVSource decodes a PCM WAV file, downmixing to mono.
type WAVSource struct {
	path    string
	file    *os.File
	decoder *wav.Decoder
	buf     *goaudio.IntBuffer
	scale   float32
	rate    int
}

func NewWAVSource(path string) *WAVSource {
	return &WAVSource{path: path}
}

func (s *WAVSource) Open(context.Context) error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, s.path)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return fmt.Errorf("%w: %s", ErrInvalidWAV, s.path)
	}
	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	s.file = f
	s.decoder = d
	s.rate = int(d.SampleRate)
	s.scale = float32(math.Pow(2, float64(d.BitDepth)-1))
	s.buf = &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: int(d.NumChans), SampleRate: int(d.SampleRate)},
	}
	return nil
}

func (s *WAVSource) Read(buf []float32) (int, error) {
	if s.decoder == nil {
		return 0, ErrNotOpen
	}
	channels := s.buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	want := len(buf) * channels
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	frames := n / channels
	if frames == 0 {
		return 0, io.EOF
	}
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += s.buf.Data[i*channels+c]
		}
		buf[i] = float32(sum) / float32(channels) / s.scale
	}
	return frames, nil
}

func (s *WAVSource) SampleRate() int { return s.rate }

func (s *WAVSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.decoder = nil, nil
	return err
}

// ReaderSource reads raw little-endian signed 16-bit mono PCM, such as the
// output of `arecord -f S16_LE -c 1`.
type ReaderSource struct {
	r       io.Reader
	rate    int
	raw     []byte
	pending []byte
	open    bool
}

func NewReaderSource(r io.Reader, sampleRate int) *ReaderSource {
	return &ReaderSource{r: r, rate: sampleRate}
}

func (s *ReaderSource) Open(context.Context) error {
	if s.r == nil {
		return ErrPermissionDenied
	}
	s.pending = s.pending[:0]
	s.open = true
	return nil
}

// Read carries a trailing odd byte over to the next call.
func (s *ReaderSource) Read(buf []float32) (int, error) {
	if !s.open {
		return 0, ErrNotOpen
	}
	need := len(buf) * 2
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]
	off := copy(raw, s.pending)
	n, err := io.ReadAtLeast(s.r, raw[off:], max(2-off, 1))
	total := off + n
	frames := total / 2
	s.pending = append(s.pending[:0], raw[frames*2:total]...)
	if frames == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}
	for i := 0; i < frames; i++ {
		buf[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}
	return frames, nil
}

func (s *ReaderSource) SampleRate() int { return s.rate }

func (s *ReaderSource) Close() error {
	s.open = false
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// PCMFileSource reopens a raw PCM file on every Open so a stopped recording
// can be started again.
type PCMFileSource struct {
	path   string
	rate   int
	reader *ReaderSource
}

func NewPCMFileSource(path string, sampleRate int) *PCMFileSource {
	return &PCMFileSource{path: path, rate: sampleRate}
}

func (s *PCMFileSource) Open(ctx context.Context) error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, s.path)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	s.reader = NewReaderSource(f, s.rate)
	return s.reader.Open(ctx)
}

func (s *PCMFileSource) Read(buf []float32) (int, error) {
	if s.reader == nil {
		return 0, ErrNotOpen
	}
	return s.reader.Read(buf)
}

func (s *PCMFileSource) SampleRate() int { return s.rate }

func (s *PCMFileSource) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

// Paced wraps a source so reads take as long as the audio they return, the way
// a live input behaves.
func Paced(src Source) Source {
	return &pacedSource{Source: src}
}

type pacedSource struct {
	Source
	start time.Time
	read  int64
}

func (p *pacedSource) Open(ctx context.Context) error {
	p.start = time.Now()
	p.read = 0
	return p.Source.Open(ctx)
}

func (p *pacedSource) Read(buf []float32) (int, error) {
	n, err := p.Source.Read(buf)
	if n > 0 && p.SampleRate() > 0 {
		p.read += int64(n)
		due := p.start.Add(time.Duration(p.read) * time.Second / time.Duration(p.SampleRate()))
		if wait := time.Until(due); wait > 0 {
			time.Sleep(wait)
		}
	}
	return n, err
}
