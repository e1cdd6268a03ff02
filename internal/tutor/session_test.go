package tutor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"music-tutor/internal/audio"
	"music-tutor/internal/dialog"
	"music-tutor/internal/models"
	"music-tutor/internal/utils"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeCompletion struct {
	mu       sync.Mutex
	reply    string
	err      error
	prompts  []string
	feedback utils.PracticeFeedback
	fbErr    error
}

func (f *fakeCompletion) GetMusicTeacherResponse(_ context.Context, _ models.Instrument, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, message)
	return f.reply, f.err
}

func (f *fakeCompletion) GeneratePracticeFeedback(context.Context, models.Instrument, models.Level, models.MusicAnalysis) (utils.PracticeFeedback, error) {
	return f.feedback, f.fbErr
}

func (f *fakeCompletion) TestConnection(context.Context) utils.ConnectionReport {
	return utils.ConnectionReport{Success: f.err == nil}
}

type fakeAvatar struct {
	mu          sync.Mutex
	startErr    error
	connected   bool
	spoken      []string
	disconnects int
}

func (f *fakeAvatar) StartStream(_ context.Context, _ models.Gender, text string) (*utils.StreamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.connected = true
	f.spoken = append(f.spoken, text)
	return &utils.StreamSession{ID: "strm_1"}, nil
}

func (f *fakeAvatar) SendNewText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeAvatar) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakeAvatar) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeAvatar) GenerateClip(context.Context, models.Gender, string) (string, error) {
	return "", nil
}

const testScript = `
id: test
instrument: gitar
level: beginner
steps:
  - id: hello
    type: greeting
    content: Hazır mısın?
    options:
      - {id: accept, text: Evet, next: intro}
      - {id: decline, text: Hayır, next: bye}
  - id: intro
    type: instruction
    content: Gitarı kucağına al.
    action: show_posture
    next: bye
    delay_ms: 20
  - id: bye
    type: feedback
    content: Görüşürüz.
`

func newTestSession(t *testing.T, completion *fakeCompletion, avatar utils.AvatarAPI, analyzer *audio.Analyzer) *Session {
	t.Helper()
	script, err := dialog.Parse([]byte(testScript))
	require.NoError(t, err)
	s := NewSession(testLogger(), Config{
		StudentName:      "Ayşe",
		Instrument:       models.InstrumentGuitar,
		Level:            models.LevelBeginner,
		TeacherGender:    models.GenderFemale,
		Script:           script,
		AnalysisInterval: 5 * time.Millisecond,
	}, completion, avatar, analyzer)
	t.Cleanup(s.Close)
	return s
}

func TestOpen(t *testing.T) {
	avatar := &fakeAvatar{}
	s := newTestSession(t, &fakeCompletion{}, avatar, nil)
	require.NoError(t, s.Open(context.Background()))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Merhaba Ayşe! Ben senin gitar öğretmeninim. Nasıl yardımcı olabilirim?", msgs[0].Content)
	assert.Equal(t, models.SenderAI, msgs[0].Sender)
	assert.NotEmpty(t, msgs[0].ID)
	assert.Equal(t, "Hazır mısın?", msgs[1].Content)
	assert.True(t, avatar.IsConnected())
	assert.Equal(t, []string{msgs[0].Content, "Hazır mısın?"}, avatar.spoken)
}

func TestOpenAvatarFailureIsNotFatal(t *testing.T) {
	avatar := &fakeAvatar{startErr: &utils.ConnectionError{Op: "create stream", Status: 401}}
	s := newTestSession(t, &fakeCompletion{}, avatar, nil)
	require.NoError(t, s.Open(context.Background()))

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.MessageTypeError, msgs[1].Type)
}

func TestSend(t *testing.T) {
	t.Run("reply appended", func(t *testing.T) {
		s := newTestSession(t, &fakeCompletion{reply: "Akorlarla başlayalım."}, nil, nil)
		msg, err := s.Send(context.Background(), "Nereden başlamalıyım?")
		require.NoError(t, err)
		assert.Equal(t, "Akorlarla başlayalım.", msg.Content)

		msgs := s.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, models.SenderUser, msgs[0].Sender)
		assert.Equal(t, models.SenderAI, msgs[1].Sender)
	})

	t.Run("error mapped to message", func(t *testing.T) {
		s := newTestSession(t, &fakeCompletion{err: utils.ErrRateLimit}, nil, nil)
		msg, err := s.Send(context.Background(), "Merhaba")
		assert.ErrorIs(t, err, utils.ErrRateLimit)
		assert.Equal(t, models.MessageTypeError, msg.Type)
		assert.Equal(t, utils.UserMessage(utils.ErrRateLimit), msg.Content)
	})

	t.Run("empty input", func(t *testing.T) {
		s := newTestSession(t, &fakeCompletion{}, nil, nil)
		_, err := s.Send(context.Background(), "   ")
		assert.ErrorIs(t, err, utils.ErrEmptyInput)
		assert.Empty(t, s.Messages())
	})

	t.Run("closed", func(t *testing.T) {
		s := newTestSession(t, &fakeCompletion{}, nil, nil)
		s.Close()
		_, err := s.Send(context.Background(), "Merhaba")
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}

func TestDialogFlow(t *testing.T) {
	s := newTestSession(t, &fakeCompletion{}, nil, nil)
	require.NoError(t, s.Open(context.Background()))

	_, err := s.Answer(context.Background(), "belki")
	assert.ErrorIs(t, err, dialog.ErrNoMatchingOption)
	msgs := s.Messages()
	assert.Contains(t, msgs[len(msgs)-1].Content, "1) Evet")

	step, err := s.Answer(context.Background(), "evet")
	require.NoError(t, err)
	assert.Equal(t, "intro", step.ID)

	assert.Eventually(t, func() bool {
		cur, _ := s.CurrentStep()
		return cur.ID == "bye"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.DialogDone())
}

func TestChooseAndCloseCancelsAutoAdvance(t *testing.T) {
	s := newTestSession(t, &fakeCompletion{}, nil, nil)
	require.NoError(t, s.Open(context.Background()))

	step, err := s.Choose(context.Background(), "accept")
	require.NoError(t, err)
	assert.Equal(t, "show_posture", step.Action)
	s.Close()

	time.Sleep(50 * time.Millisecond)
	cur, _ := s.CurrentStep()
	assert.Equal(t, "intro", cur.ID)
}

func TestCloseIsIdempotent(t *testing.T) {
	avatar := &fakeAvatar{}
	s := newTestSession(t, &fakeCompletion{}, avatar, nil)
	require.NoError(t, s.Open(context.Background()))
	s.Close()
	s.Close()
	assert.Equal(t, 1, avatar.disconnects)
	assert.ErrorIs(t, s.Open(context.Background()), ErrSessionClosed)
}

// blockingAvatar holds StartStream until release is closed and connects
// regardless of the context it was given.
type blockingAvatar struct {
	fakeAvatar
	entered chan context.Context
	release chan struct{}
}

func (b *blockingAvatar) StartStream(ctx context.Context, gender models.Gender, text string) (*utils.StreamSession, error) {
	b.entered <- ctx
	<-b.release
	return b.fakeAvatar.StartStream(ctx, gender, text)
}

func TestCloseDuringAvatarStart(t *testing.T) {
	avatar := &blockingAvatar{entered: make(chan context.Context, 1), release: make(chan struct{})}
	s := newTestSession(t, &fakeCompletion{}, avatar, nil)

	opened := make(chan error, 1)
	go func() { opened <- s.Open(context.Background()) }()

	startCtx := <-avatar.entered
	s.Close()
	select {
	case <-startCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the avatar start")
	}

	close(avatar.release)
	select {
	case err := <-opened:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("Open did not return")
	}
	assert.False(t, avatar.IsConnected())
}

func tone(freq float64, seconds float64, rate int) []float32 {
	out := make([]float32, int(seconds*float64(rate)))
	for i := range out {
		out[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestAnalysis(t *testing.T) {
	samples := tone(440, 1, 44100)
	analyzer := audio.NewAnalyzer(testLogger(), audio.NewSliceSource(samples, 44100), audio.AnalyzerConfig{CaptureSeconds: 5})
	completion := &fakeCompletion{fbErr: errors.New("offline")}
	s := newTestSession(t, completion, nil, analyzer)

	require.NoError(t, s.StartAnalysis(context.Background()))
	assert.Eventually(t, func() bool {
		a := s.LatestAnalysis()
		return a != nil && a.Volume > 0
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		rec, _ := analyzer.Recorded()
		return len(rec) == len(samples)
	}, time.Second, 5*time.Millisecond)

	analysis, err := s.PracticeFeedback(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", analysis.Harmony.KeySignature)

	s.StopAnalysis()
	assert.False(t, analyzer.IsRecording())
}

func TestAnalysisWithoutInput(t *testing.T) {
	s := newTestSession(t, &fakeCompletion{}, nil, nil)
	assert.ErrorIs(t, s.StartAnalysis(context.Background()), ErrNoAnalyzer)
	_, err := s.PracticeFeedback(context.Background())
	assert.ErrorIs(t, err, ErrNoAnalyzer)
}

type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	err   error
	heard [][]byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, speech io.Reader, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := io.ReadAll(speech)
	f.heard = append(f.heard, data)
	if f.err != nil {
		return "", f.err
	}
	text := f.texts[0]
	f.texts = f.texts[1:]
	return text, nil
}

func TestVoice(t *testing.T) {
	samples := tone(220, 0.2, 16000)
	recorded := func(t *testing.T, s *Session, analyzer *audio.Analyzer) {
		require.NoError(t, s.StartAnalysis(context.Background()))
		assert.Eventually(t, func() bool {
			rec, _ := analyzer.Recorded()
			return len(rec) == len(samples)
		}, time.Second, 5*time.Millisecond)
	}

	t.Run("answers the dialog step then talks to the teacher", func(t *testing.T) {
		analyzer := audio.NewAnalyzer(testLogger(), audio.NewSliceSource(samples, 16000), audio.AnalyzerConfig{CaptureSeconds: 5})
		completion := &fakeCompletion{reply: "Güzel soru."}
		s := newTestSession(t, completion, nil, analyzer)
		speech := &fakeTranscriber{texts: []string{"Evet", "Pena nasıl tutulur?"}}
		s.cfg.Transcriber = speech
		require.NoError(t, s.Open(context.Background()))
		recorded(t, s, analyzer)

		text, err := s.Voice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Evet", text)
		step, _ := s.CurrentStep()
		assert.Equal(t, "intro", step.ID)
		require.Len(t, speech.heard, 1)
		assert.True(t, bytes.HasPrefix(speech.heard[0], []byte("RIFF")))

		assert.Eventually(t, s.DialogDone, time.Second, 5*time.Millisecond)
		text, err = s.Voice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Pena nasıl tutulur?", text)
		assert.Equal(t, []string{"Pena nasıl tutulur?"}, completion.prompts)
	})

	t.Run("unmatched speech asks again", func(t *testing.T) {
		analyzer := audio.NewAnalyzer(testLogger(), audio.NewSliceSource(samples, 16000), audio.AnalyzerConfig{CaptureSeconds: 5})
		s := newTestSession(t, &fakeCompletion{}, nil, analyzer)
		s.cfg.Transcriber = &fakeTranscriber{texts: []string{"belki"}}
		require.NoError(t, s.Open(context.Background()))
		recorded(t, s, analyzer)

		_, err := s.Voice(context.Background())
		assert.ErrorIs(t, err, dialog.ErrNoMatchingOption)
		msgs := s.Messages()
		assert.Contains(t, msgs[len(msgs)-1].Content, "Anlayamadım")
	})

	t.Run("transcription failure is shown", func(t *testing.T) {
		analyzer := audio.NewAnalyzer(testLogger(), audio.NewSliceSource(samples, 16000), audio.AnalyzerConfig{CaptureSeconds: 5})
		s := newTestSession(t, &fakeCompletion{}, nil, analyzer)
		s.cfg.Transcriber = &fakeTranscriber{err: utils.ErrNoSpeech}
		recorded(t, s, analyzer)

		_, err := s.Voice(context.Background())
		assert.ErrorIs(t, err, utils.ErrNoSpeech)
		msgs := s.Messages()
		require.NotEmpty(t, msgs)
		assert.Equal(t, models.MessageTypeError, msgs[len(msgs)-1].Type)
	})

	t.Run("needs transcriber and recording", func(t *testing.T) {
		s := newTestSession(t, &fakeCompletion{}, nil, nil)
		_, err := s.Voice(context.Background())
		assert.ErrorIs(t, err, ErrNoTranscriber)

		s.cfg.Transcriber = &fakeTranscriber{}
		_, err = s.Voice(context.Background())
		assert.ErrorIs(t, err, ErrNoAnalyzer)

		analyzer := audio.NewAnalyzer(testLogger(), audio.NewSliceSource(samples, 16000), audio.AnalyzerConfig{CaptureSeconds: 5})
		s = newTestSession(t, &fakeCompletion{}, nil, analyzer)
		s.cfg.Transcriber = &fakeTranscriber{}
		_, err = s.Voice(context.Background())
		assert.ErrorIs(t, err, ErrNotRecording)
	})
}
