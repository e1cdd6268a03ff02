package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"music-tutor/internal/audio"
	"music-tutor/internal/dialog"
	"music-tutor/internal/models"
	"music-tutor/internal/tutor"
	"music-tutor/internal/utils"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	captureSeconds = 120
	lessonHelp     = `Komutlar:
  1, 2, ...     seçeneği seç
  /record       ses analizini başlat
  /stop         ses analizini durdur
  /status       son ses ölçümünü göster
  /feedback     kaydı değerlendir
  /voice        kaydı konuşma olarak yanıtla
  /chat METİN   öğretmene soru sor
  /quit         dersi bitir
Diğer metinler seçeneklere göre eşleştirilir, seçenek yoksa öğretmene gönderilir.`
)

type lessonOptions struct {
	wav    string
	pcm    string
	rate   int
	avatar bool
	gender string
	match  string
}

func NewLessonCmd() *cobra.Command {
	var opts lessonOptions
	cmd := &cobra.Command{
		Use:   "lesson",
		Short: "Start an interactive lesson",
		Long: `Start the scripted lesson for your instrument and level. The teacher
greets you, walks through the lesson steps and answers questions. Practice
time is recorded when you leave, and reaching the end of the script marks
the lesson as completed.

Audio comes from a WAV file (--wav) or raw 16-bit mono PCM (--pcm), played
back in real time as if it were a microphone.

` + lessonHelp,
		Example: `  tutor lesson
  tutor lesson --wav take1.wav --avatar
  arecord -f S16_LE -c 1 -r 44100 take.pcm; tutor lesson --pcm take.pcm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLesson(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.wav, "wav", "", "WAV file used as audio input")
	cmd.Flags().StringVar(&opts.pcm, "pcm", "", "raw S16LE mono PCM file used as audio input")
	cmd.Flags().IntVar(&opts.rate, "rate", 44100, "sample rate of --pcm")
	cmd.Flags().BoolVar(&opts.avatar, "avatar", false, "stream the talking avatar (needs D_ID_API_KEY)")
	cmd.Flags().StringVar(&opts.gender, "teacher", "female", "teacher persona: female or male")
	cmd.Flags().StringVar(&opts.match, "match", "exact", "answer matching: exact or contains")
	return cmd
}

type lessonRunner struct {
	logger  *logrus.Entry
	session *tutor.Session
	out     io.Writer
	perf    *models.SessionPerformance
}

func runLesson(cmd *cobra.Command, opts lessonOptions) error {
	mode, err := parseMatchMode(opts.match)
	if err != nil {
		return err
	}
	gender, err := models.ParseGender(opts.gender)
	if err != nil {
		return err
	}
	source, err := lessonSource(opts)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	user, profile, err := a.profile(ctx)
	if err != nil {
		return err
	}
	script, err := dialog.Load(profile.Instrument, profile.Level)
	if err != nil {
		return err
	}

	completion, err := a.openai()
	if errors.Is(err, errNoOpenAIKey) {
		a.logger.Warn("OPENAI_API_KEY is not set, chat answers are disabled")
		completion = offlineTeacher{}
	} else if err != nil {
		return err
	}

	transcriber, _ := completion.(utils.TranscriberAPI)

	var frames atomic.Int64
	var avatar utils.AvatarAPI
	if opts.avatar {
		if a.cfg.DIDAPIKey == "" {
			return errors.New("D_ID_API_KEY is not set")
		}
		avatar = utils.NewAvatarClient(a.logger, avatarConfig(a), func(utils.VideoFrame) {
			frames.Add(1)
		})
	}

	var analyzer *audio.Analyzer
	if source != nil {
		analyzer = audio.NewAnalyzer(a.logger, source, audio.AnalyzerConfig{CaptureSeconds: captureSeconds})
	}

	teacherName := "Öğretmen"
	if t, ok := a.lessons.TeacherByGender(profile.Instrument, gender); ok {
		teacherName = t.Name
	}
	out := &syncWriter{w: cmd.OutOrStdout()}
	session := tutor.NewSession(a.logger, tutor.Config{
		StudentName:      firstName(profile.FullName),
		Instrument:       profile.Instrument,
		Level:            profile.Level,
		TeacherGender:    gender,
		Script:           script,
		MatchMode:        mode,
		AnalysisInterval: audio.DefaultLoopInterval,
		Transcriber:      transcriber,
		OnMessage: func(m models.Message) {
			printMessage(out, teacherName, m)
		},
		OnStep: func(step models.DialogStep) {
			printOptions(out, step)
		},
		OnAnalysis: func(an audio.Analysis) {
			a.logger.WithFields(logrus.Fields{
				"pitch":  an.Pitch,
				"volume": an.Volume,
				"rhythm": an.Rhythm,
			}).Debug("Audio analysis")
		},
	}, completion, avatar, analyzer)
	defer session.Close()

	fmt.Fprintf(out, "%s · %s\n\n", script.Title, teacherName)
	start := time.Now()
	if err := session.Open(ctx); err != nil {
		return err
	}

	r := &lessonRunner{logger: a.logger, session: session, out: out}
	inputCtx, stopInput := context.WithCancel(ctx)
	defer stopInput()
	lines := scanLines(inputCtx, cmd.InOrStdin())
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok || r.handle(ctx, line) {
				break loop
			}
		}
	}

	completed := session.DialogDone()
	if step, ok := session.CurrentStep(); !ok || step.Action != models.ActionCompleteLesson {
		completed = false
	}
	session.Close()
	elapsed := time.Since(start)

	// The command context may already be cancelled by an interrupt.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	progress, err := a.progress.AddPracticeTime(saveCtx, user.ID, elapsed, r.perf)
	if err != nil {
		return fmt.Errorf("failed to record practice: %w", err)
	}
	fmt.Fprintf(out, "\n%s çalıştın. Seri: %d gün\n", elapsed.Round(time.Second), progress.CurrentStreak(time.Now(), a.location))

	if completed && script.LessonID != "" {
		if _, err := a.progress.CompleteLesson(saveCtx, user.ID, script.LessonID); err != nil {
			return fmt.Errorf("failed to complete lesson: %w", err)
		}
		fmt.Fprintf(out, "Ders tamamlandı: %s\n", script.LessonID)
	}
	if opts.avatar {
		a.logger.WithField("frames", frames.Load()).Info("Avatar stream finished")
	}
	return nil
}

// handle processes one input line and reports whether the lesson should end.
func (r *lessonRunner) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	s := r.session
	switch {
	case line == "":
		return false
	case line == "/quit" || line == "/exit":
		return true
	case line == "/help":
		fmt.Fprintln(r.out, lessonHelp)
		return false
	case line == "/record":
		if err := s.StartAnalysis(ctx); err != nil {
			fmt.Fprintf(r.out, "! %v\n", err)
			return false
		}
		fmt.Fprintln(r.out, "● Kayıt başladı")
		return false
	case line == "/stop":
		s.StopAnalysis()
		fmt.Fprintln(r.out, "■ Kayıt durdu")
		return false
	case line == "/status":
		an := s.LatestAnalysis()
		if an == nil {
			fmt.Fprintln(r.out, "Henüz ölçüm yok")
			return false
		}
		fmt.Fprintf(r.out, "Perde %.1f Hz · ses %.2f · vuruş %d\n", an.Pitch, an.Volume, an.Rhythm)
		return false
	case line == "/feedback":
		analysis, err := s.PracticeFeedback(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "! %v\n", err)
			return false
		}
		r.perf = &models.SessionPerformance{Accuracy: analysis.Rhythm.Accuracy, Tempo: analysis.Rhythm.Tempo}
		return false
	case line == "/voice":
		s.StopAnalysis()
		text, err := s.Voice(ctx)
		if text != "" {
			// Routing errors are already in the chat.
			fmt.Fprintf(r.out, "» %s\n", text)
			return false
		}
		if err != nil {
			fmt.Fprintf(r.out, "! %v\n", err)
		}
		return false
	case strings.HasPrefix(line, "/chat "):
		r.send(ctx, strings.TrimPrefix(line, "/chat "))
		return false
	case strings.HasPrefix(line, "/"):
		fmt.Fprintln(r.out, lessonHelp)
		return false
	}

	step, hasScript := s.CurrentStep()
	if !hasScript || len(step.Options) == 0 {
		r.send(ctx, line)
		return false
	}
	if n, err := strconv.Atoi(line); err == nil {
		if n < 1 || n > len(step.Options) {
			fmt.Fprintf(r.out, "! 1 ile %d arasında bir seçenek girin\n", len(step.Options))
			return false
		}
		if _, err := s.Choose(ctx, step.Options[n-1].ID); err != nil {
			fmt.Fprintf(r.out, "! %v\n", err)
		}
		return false
	}
	if _, err := s.Answer(ctx, line); err != nil && !errors.Is(err, dialog.ErrNoMatchingOption) {
		fmt.Fprintf(r.out, "! %v\n", err)
	}
	return false
}

// send reports failures through the error message the session appends.
func (r *lessonRunner) send(ctx context.Context, text string) {
	if _, err := r.session.Send(ctx, text); err != nil {
		r.logger.WithError(err).Debug("Chat message failed")
	}
}

func scanLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func lessonSource(opts lessonOptions) (audio.Source, error) {
	switch {
	case opts.wav != "" && opts.pcm != "":
		return nil, errors.New("use either --wav or --pcm, not both")
	case opts.wav != "":
		return audio.Paced(audio.NewWAVSource(opts.wav)), nil
	case opts.pcm != "":
		if opts.rate <= 0 {
			return nil, fmt.Errorf("%w: sample rate %d", models.ErrInvalidValue, opts.rate)
		}
		return audio.Paced(audio.NewPCMFileSource(opts.pcm, opts.rate)), nil
	}
	return nil, nil
}

func parseMatchMode(s string) (dialog.MatchMode, error) {
	switch strings.ToLower(s) {
	case "", "exact":
		return dialog.MatchExact, nil
	case "contains":
		return dialog.MatchContains, nil
	}
	return dialog.MatchExact, fmt.Errorf("%w: match mode %q", models.ErrInvalidValue, s)
}

func avatarConfig(a *app) utils.AvatarConfig {
	cfg := utils.DefaultAvatarConfig(a.cfg.DIDAPIKey)
	if a.cfg.DIDBaseURL != "" {
		cfg.BaseURL = a.cfg.DIDBaseURL
	}
	if a.cfg.AvatarMaleURL != "" {
		cfg.Avatars[models.GenderMale] = a.cfg.AvatarMaleURL
	}
	if a.cfg.AvatarFemaleURL != "" {
		cfg.Avatars[models.GenderFemale] = a.cfg.AvatarFemaleURL
	}
	return cfg
}

func printMessage(w io.Writer, teacher string, m models.Message) {
	if m.Sender == models.SenderUser {
		return
	}
	if m.Type == models.MessageTypeError {
		fmt.Fprintf(w, "! %s\n", m.Content)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", teacher, m.Content)
	if m.Action == models.ActionShowPosture {
		fmt.Fprintln(w, "  (Duruşunu kontrol et: sırtın dik, omuzların rahat.)")
	}
}

func printOptions(w io.Writer, step models.DialogStep) {
	for i, o := range step.Options {
		fmt.Fprintf(w, "  %d) %s\n", i+1, o.Text)
	}
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// offlineTeacher stands in for the completion client when no API key is set.
type offlineTeacher struct{}

func (offlineTeacher) GetMusicTeacherResponse(context.Context, models.Instrument, string) (string, error) {
	return "", fmt.Errorf("%w: %w", utils.ErrAuth, errNoOpenAIKey)
}

func (offlineTeacher) GeneratePracticeFeedback(context.Context, models.Instrument, models.Level, models.MusicAnalysis) (utils.PracticeFeedback, error) {
	return utils.PracticeFeedback{}, fmt.Errorf("%w: %w", utils.ErrAuth, errNoOpenAIKey)
}

func (offlineTeacher) TestConnection(context.Context) utils.ConnectionReport {
	return utils.ConnectionReport{Success: false, Error: errNoOpenAIKey.Error()}
}
