package commands

import (
	"fmt"
	"io"
	"music-tutor/internal/models"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func NewProgressCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show practice time, streak and the last seven days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			user, err := a.currentUser(ctx)
			if err != nil {
				return err
			}
			if reset {
				if err := a.progress.ResetProgress(ctx, user.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Progress reset")
				return nil
			}

			progress, err := a.progress.GetProgress(ctx, user.ID)
			if err != nil {
				return err
			}
			if progress == nil {
				progress = models.NewUserProgress(user.ID)
			}
			printProgress(cmd.OutOrStdout(), progress, time.Now(), a.location)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "clear all progress")
	return cmd
}

func printProgress(w io.Writer, p *models.UserProgress, now time.Time, loc *time.Location) {
	total := time.Duration(p.TotalPracticeTime) * time.Second
	fmt.Fprintf(w, "Toplam çalışma: %s\n", total.Round(time.Minute))
	fmt.Fprintf(w, "Seri:           %d gün\n", p.CurrentStreak(now, loc))
	fmt.Fprintf(w, "Tamamlanan:     %d ders\n", len(p.CompletedLessons))
	if p.CurrentLesson != "" {
		fmt.Fprintf(w, "Son ders:       %s\n", p.CurrentLesson)
	}
	if p.Performance != nil && p.Performance.LastSession != nil {
		fmt.Fprintf(w, "Son seans:      doğruluk %%%.0f, tempo %.0f BPM\n",
			p.Performance.LastSession.Accuracy, p.Performance.LastSession.Tempo)
	}
	fmt.Fprintln(w)
	for _, day := range p.WeeklyStats(now, loc) {
		fmt.Fprintf(w, "%s %3d dk %s\n", day.Date, day.Minutes, strings.Repeat("█", min(day.Minutes/5, 30)))
	}
}

func NewPracticeCmd() *cobra.Command {
	var minutes int
	var accuracy, tempo float64
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Record a practice session",
		Long: `Record practice done outside a lesson. Accuracy and tempo are stored
as the last session's performance when given.

Examples:
  tutor practice --minutes 20
  tutor practice --minutes 15 --accuracy 85 --tempo 96`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if minutes <= 0 || minutes > 24*60 {
				return fmt.Errorf("%w: minutes must be between 1 and 1440", models.ErrInvalidValue)
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			user, err := a.currentUser(ctx)
			if err != nil {
				return err
			}
			var perf *models.SessionPerformance
			if cmd.Flags().Changed("accuracy") || cmd.Flags().Changed("tempo") {
				perf = &models.SessionPerformance{Accuracy: accuracy, Tempo: tempo}
			}
			progress, err := a.progress.AddPracticeTime(ctx, user.ID, time.Duration(minutes)*time.Minute, perf)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d dakika kaydedildi. Seri: %d gün\n",
				minutes, progress.CurrentStreak(time.Now(), a.location))
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "practice duration in minutes")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "accuracy percentage of the session")
	cmd.Flags().Float64Var(&tempo, "tempo", 0, "tempo of the session in BPM")
	return cmd
}

func NewCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete LESSON_ID",
		Short: "Mark a lesson as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			user, err := a.currentUser(ctx)
			if err != nil {
				return err
			}
			lesson, err := a.lessons.Lesson(args[0])
			if err != nil {
				return err
			}
			if _, err := a.progress.CompleteLesson(ctx, user.ID, lesson.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tebrikler! \"%s\" tamamlandı.\n", lesson.Title)
			return nil
		},
	}
}
