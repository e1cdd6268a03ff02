package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultWindowSize = 1024
	readChunk         = 256
	stopGrace         = 200 * time.Millisecond
)

// Analysis is one snapshot of the live window.
type Analysis struct {
	Buffer []float32 `json:"-"`
	Pitch  float64   `json:"pitch"`
	Rhythm int       `json:"rhythm"`
	Volume float64   `json:"volume"`
}

type AnalyzerConfig struct {
	WindowSize int
	// CaptureSeconds keeps up to this much audio for Recorded; zero keeps none.
	CaptureSeconds int
}

// Analyzer pumps a Source into a sliding window that can be sampled at any time.
type Analyzer struct {
	logger *logrus.Entry
	source Source
	cfg    AnalyzerConfig

	mu        sync.Mutex
	window    []float32
	captured  []float32
	recording bool
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewAnalyzer(logger *logrus.Entry, source Source, cfg AnalyzerConfig) *Analyzer {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	return &Analyzer{
		logger: logger,
		source: source,
		cfg:    cfg,
	}
}

// StartRecording opens the source and starts filling the window. On failure it
// returns false, leaves the analyzer stopped and keeps the cause in Err.
func (a *Analyzer) StartRecording(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recording {
		return true
	}
	if a.source == nil {
		a.err = ErrPermissionDenied
		return false
	}

	if err := a.source.Open(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to start audio capture")
		a.source.Close()
		a.err = err
		return false
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	a.window = make([]float32, 0, a.cfg.WindowSize)
	a.captured = nil
	a.err = nil
	a.recording = true
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.pump(pumpCtx, a.done)
	return true
}

func (a *Analyzer) pump(ctx context.Context, done chan struct{}) {
	defer close(done)
	captureLimit := a.cfg.CaptureSeconds * a.source.SampleRate()
	buf := make([]float32, readChunk)
	for ctx.Err() == nil {
		n, err := a.source.Read(buf)
		if n > 0 {
			a.mu.Lock()
			a.push(buf[:n])
			if room := captureLimit - len(a.captured); room > 0 {
				a.captured = append(a.captured, buf[:min(n, room)]...)
			}
			a.mu.Unlock()
		}
		if errors.Is(err, io.EOF) {
			a.logger.Debug("Audio source drained")
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				a.logger.WithError(err).Warn("Audio capture stopped")
				a.mu.Lock()
				a.err = err
				a.mu.Unlock()
			}
			return
		}
	}
}

// push appends samples and drops the oldest beyond the window size.
func (a *Analyzer) push(samples []float32) {
	size := a.cfg.WindowSize
	if len(samples) >= size {
		a.window = append(a.window[:0], samples[len(samples)-size:]...)
		return
	}
	if overflow := len(a.window) + len(samples) - size; overflow > 0 {
		a.window = append(a.window[:0], a.window[overflow:]...)
	}
	a.window = append(a.window, samples...)
}

// AnalyzeAudio returns nil when not recording.
func (a *Analyzer) AnalyzeAudio() *Analysis {
	a.mu.Lock()
	if !a.recording {
		a.mu.Unlock()
		return nil
	}
	buf := make([]float32, len(a.window))
	copy(buf, a.window)
	a.mu.Unlock()

	return &Analysis{
		Buffer: buf,
		Pitch:  MeanAbs(buf),
		Rhythm: PeakCount(buf),
		Volume: RMS(buf),
	}
}

// StopRecording releases the source. Safe to call when not recording.
func (a *Analyzer) StopRecording() {
	a.mu.Lock()
	if !a.recording {
		a.mu.Unlock()
		return
	}
	cancel, done := a.cancel, a.done
	a.recording = false
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	// A blocked read only returns once the source is closed.
	cancel()
	select {
	case <-done:
		a.closeSource()
	case <-time.After(stopGrace):
		a.closeSource()
		<-done
	}

	a.mu.Lock()
	a.window = nil
	a.mu.Unlock()
}

func (a *Analyzer) closeSource() {
	if err := a.source.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close audio source")
	}
}

func (a *Analyzer) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

func (a *Analyzer) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Recorded returns the captured audio of the last recording.
func (a *Analyzer) Recorded() ([]float32, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float32, len(a.captured))
	copy(out, a.captured)
	return out, a.source.SampleRate()
}
