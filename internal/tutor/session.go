// Package tutor ties the chat, dialog script, avatar stream and microphone
// analysis of one open lesson together.
package tutor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"music-tutor/internal/audio"
	"music-tutor/internal/dialog"
	"music-tutor/internal/metrics"
	"music-tutor/internal/models"
	"music-tutor/internal/utils"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionClosed = errors.New("lesson session is closed")
	ErrNoScript      = errors.New("lesson session has no dialog script")
	ErrNoAnalyzer    = errors.New("lesson session has no audio input")
	ErrNotRecording  = errors.New("no recording to analyze")
	ErrNoTranscriber = errors.New("lesson session has no speech transcriber")
)

const avatarUnavailable = "Avatar bağlantısı kurulamadı. Sohbete yazılı olarak devam edebilirsiniz."

type Config struct {
	StudentName string
	Instrument  models.Instrument
	Level       models.Level
	// TeacherGender selects the avatar persona.
	TeacherGender    models.Gender
	Script           *dialog.Script
	MatchMode        dialog.MatchMode
	AnalysisInterval time.Duration
	// Transcriber turns recorded speech into text for Voice. Optional.
	Transcriber utils.TranscriberAPI
	// OnMessage is called for every appended message, outside the session lock.
	OnMessage func(models.Message)
	// OnStep is called after a dialog step has been shown.
	OnStep func(models.DialogStep)
	// OnAnalysis is called from the analysis loop with each snapshot.
	OnAnalysis func(audio.Analysis)
}

// Session is one open lesson. Close releases everything it started.
type Session struct {
	logger     *logrus.Entry
	cfg        Config
	completion utils.OpenaiAPI
	avatar     utils.AvatarAPI
	analyzer   *audio.Analyzer
	stepper    *dialog.Stepper
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.Mutex

	mu       sync.Mutex
	messages []models.Message
	timer    *time.Timer
	loop     *audio.Loop
	latest   *audio.Analysis
	closed   bool
}

// NewSession builds a session. avatar and analyzer may be nil.
func NewSession(logger *logrus.Entry, cfg Config, completion utils.OpenaiAPI, avatar utils.AvatarAPI, analyzer *audio.Analyzer) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		logger:     logger,
		cfg:        cfg,
		completion: completion,
		avatar:     avatar,
		analyzer:   analyzer,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	if cfg.Script != nil {
		s.stepper = dialog.NewStepper(cfg.Script, cfg.MatchMode)
	}
	metrics.ActiveSessions.Inc()
	return s
}

func (s *Session) Welcome() string {
	if s.cfg.StudentName == "" {
		return fmt.Sprintf("Merhaba! Ben senin %s öğretmeninim. Nasıl yardımcı olabilirim?", s.cfg.Instrument.DisplayName())
	}
	return fmt.Sprintf("Merhaba %s! Ben senin %s öğretmeninim. Nasıl yardımcı olabilirim?", s.cfg.StudentName, s.cfg.Instrument.DisplayName())
}

// Open greets the student, shows the first dialog step and starts the avatar
// stream. An avatar failure is reported as a chat message, not an error.
func (s *Session) Open(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	welcome := s.Welcome()
	s.appendAI(welcome, "")

	if s.avatar != nil {
		s.startAvatar(ctx, welcome)
	}
	if s.isClosed() {
		return ErrSessionClosed
	}

	if s.stepper != nil {
		s.showStep(s.stepper.Current())
	}
	return nil
}

// startAvatar opens the avatar stream. Close cancels a start in flight, and a
// stream that connects after Close is disconnected here.
func (s *Session) startAvatar(ctx context.Context, welcome string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	_, err := s.avatar.StartStream(ctx, s.cfg.TeacherGender, welcome)
	if s.isClosed() {
		s.avatar.Disconnect()
		return
	}
	if err != nil {
		s.logger.WithError(err).Warn("Failed to start avatar stream")
		s.appendError(avatarUnavailable)
	}
}

// Send asks the completion model and appends its reply. Calls are served one
// at a time in arrival order.
func (s *Session) Send(ctx context.Context, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, utils.ErrEmptyInput
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.isClosed() {
		return models.Message{}, ErrSessionClosed
	}

	s.appendUser(text)
	reply, err := s.completion.GetMusicTeacherResponse(ctx, s.cfg.Instrument, text)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get teacher response")
		return s.appendError(utils.UserMessage(err)), err
	}
	msg := s.appendAI(reply, "")
	s.speak(ctx, reply)
	return msg, nil
}

// Answer routes free text to the current dialog step. When nothing matches,
// a clarification listing the options is appended and ErrNoMatchingOption
// is returned.
func (s *Session) Answer(ctx context.Context, text string) (models.DialogStep, error) {
	if s.stepper == nil {
		return models.DialogStep{}, ErrNoScript
	}
	if s.isClosed() {
		return models.DialogStep{}, ErrSessionClosed
	}
	s.appendUser(text)
	step, err := s.stepper.Answer(text)
	if errors.Is(err, dialog.ErrNoMatchingOption) {
		s.appendAI(clarification(step), "")
		return step, err
	}
	if err != nil {
		return step, err
	}
	s.showStep(step)
	return step, nil
}

// Choose follows an option by id.
func (s *Session) Choose(ctx context.Context, optionID string) (models.DialogStep, error) {
	if s.stepper == nil {
		return models.DialogStep{}, ErrNoScript
	}
	if s.isClosed() {
		return models.DialogStep{}, ErrSessionClosed
	}
	current := s.stepper.Current()
	step, err := s.stepper.Choose(optionID)
	if err != nil {
		return step, err
	}
	for _, o := range current.Options {
		if o.ID == optionID {
			s.appendUser(o.Text)
		}
	}
	s.showStep(step)
	return step, nil
}

// CurrentStep returns the step on screen; ok is false without a script.
func (s *Session) CurrentStep() (models.DialogStep, bool) {
	if s.stepper == nil {
		return models.DialogStep{}, false
	}
	return s.stepper.Current(), true
}

func (s *Session) DialogDone() bool {
	return s.stepper != nil && s.stepper.Done()
}

func (s *Session) showStep(step models.DialogStep) {
	s.appendAI(step.Content, step.Action)
	s.speak(s.ctx, step.Content)
	if s.cfg.OnStep != nil {
		s.cfg.OnStep(step)
	}

	delay, ok := s.stepper.AutoAdvance()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.autoAdvance)
}

func (s *Session) autoAdvance() {
	if s.isClosed() {
		return
	}
	step, err := s.stepper.Advance()
	if err != nil {
		s.logger.WithError(err).Debug("Auto-advance skipped")
		return
	}
	s.showStep(step)
}

func (s *Session) speak(ctx context.Context, text string) {
	if s.avatar == nil || !s.avatar.IsConnected() {
		return
	}
	if err := s.avatar.SendNewText(ctx, text); err != nil {
		s.logger.WithError(err).Warn("Failed to send text to avatar")
	}
}

// StartAnalysis opens the audio input and samples it on the loop interval.
func (s *Session) StartAnalysis(ctx context.Context) error {
	if s.analyzer == nil {
		return ErrNoAnalyzer
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.loop != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !s.analyzer.StartRecording(ctx) {
		return fmt.Errorf("failed to start recording: %w", s.analyzer.Err())
	}
	loop := audio.NewLoop(s.cfg.AnalysisInterval, func(context.Context) {
		a := s.analyzer.AnalyzeAudio()
		if a == nil {
			return
		}
		s.mu.Lock()
		s.latest = a
		s.mu.Unlock()
		if s.cfg.OnAnalysis != nil {
			s.cfg.OnAnalysis(*a)
		}
	})

	s.mu.Lock()
	if s.closed || s.loop != nil {
		s.mu.Unlock()
		s.analyzer.StopRecording()
		return nil
	}
	s.loop = loop
	s.mu.Unlock()
	loop.Start(s.ctx)
	return nil
}

// StopAnalysis stops sampling and releases the audio input.
func (s *Session) StopAnalysis() {
	s.mu.Lock()
	loop := s.loop
	s.loop = nil
	s.mu.Unlock()
	if loop != nil {
		loop.Stop()
	}
	if s.analyzer != nil {
		s.analyzer.StopRecording()
	}
}

func (s *Session) LatestAnalysis() *audio.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Voice transcribes the current recording and handles the text as typed
// input: it answers the dialog step when the step has options and goes to the
// teacher otherwise. The recognized text is returned with any routing error.
func (s *Session) Voice(ctx context.Context) (string, error) {
	if s.cfg.Transcriber == nil {
		return "", ErrNoTranscriber
	}
	if s.analyzer == nil {
		return "", ErrNoAnalyzer
	}
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	samples, rate := s.analyzer.Recorded()
	if len(samples) == 0 {
		return "", ErrNotRecording
	}
	speech, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		return "", err
	}

	text, err := s.cfg.Transcriber.Transcribe(ctx, bytes.NewReader(speech), "speech.wav")
	if err != nil {
		s.logger.WithError(err).Warn("Failed to transcribe speech")
		s.appendError(utils.UserMessage(err))
		return "", err
	}

	if step, ok := s.CurrentStep(); ok && len(step.Options) > 0 {
		_, err = s.Answer(ctx, text)
		return text, err
	}
	_, err = s.Send(ctx, text)
	return text, err
}

// PracticeFeedback analyses the captured recording and appends the teacher's
// feedback. When the completion call fails the offline feedback is used.
func (s *Session) PracticeFeedback(ctx context.Context) (models.MusicAnalysis, error) {
	if s.analyzer == nil {
		return models.MusicAnalysis{}, ErrNoAnalyzer
	}
	samples, rate := s.analyzer.Recorded()
	if len(samples) == 0 {
		return models.MusicAnalysis{}, ErrNotRecording
	}
	analysis := audio.AnalyzePerformance(s.cfg.Instrument, s.cfg.Level, samples, rate)

	feedback, err := s.completion.GeneratePracticeFeedback(ctx, s.cfg.Instrument, s.cfg.Level, analysis)
	if err != nil {
		s.logger.WithError(err).Warn("Falling back to offline practice feedback")
		lines := append(append([]string{}, analysis.Performance.Feedback...), analysis.Performance.Improvements...)
		s.appendAI(strings.Join(lines, "\n"), "")
		return analysis, nil
	}
	s.appendAI(feedback.String(), "")
	return analysis, nil
}

// Close stops analysis, pending steps and the avatar stream. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.StopAnalysis()
	s.cancel()
	if s.avatar != nil {
		s.avatar.Disconnect()
	}
	metrics.ActiveSessions.Dec()
	s.logger.Info("Lesson session closed")
}

// Messages returns a copy of the chat history.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) appendUser(text string) models.Message {
	return s.append(models.Message{Content: text, Sender: models.SenderUser, Type: models.MessageTypeText})
}

func (s *Session) appendAI(text, action string) models.Message {
	return s.append(models.Message{Content: text, Sender: models.SenderAI, Type: models.MessageTypeText, Action: action})
}

func (s *Session) appendError(text string) models.Message {
	return s.append(models.Message{Content: text, Sender: models.SenderAI, Type: models.MessageTypeError})
}

func (s *Session) append(msg models.Message) models.Message {
	msg.ID = uuid.NewString()
	msg.Timestamp = s.now()
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(msg)
	}
	return msg
}

func clarification(step models.DialogStep) string {
	var sb strings.Builder
	sb.WriteString("Anlayamadım. Lütfen seçeneklerden birini seçin:")
	for i, o := range step.Options {
		fmt.Fprintf(&sb, "\n%d) %s", i+1, o.Text)
	}
	return sb.String()
}
