package commands

import (
	"fmt"
	"music-tutor/internal/models"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewLessonsCmd() *cobra.Command {
	var instrument, level string
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "List lessons for an instrument and level",
		Long: `List the lesson catalog. Defaults come from your profile. Completed
lessons are marked with ✓ and the next lesson with →.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			i, l, err := a.instrumentAndLevel(ctx, instrument, level)
			if err != nil {
				return err
			}

			var completed []string
			if user, err := a.currentUser(ctx); err == nil {
				progress, err := a.progress.GetProgress(ctx, user.ID)
				if err != nil {
					return err
				}
				if progress != nil {
					completed = progress.CompletedLessons
				}
			}
			done := make(map[string]bool, len(completed))
			for _, id := range completed {
				done[id] = true
			}
			next, hasNext := a.lessons.NextLesson(i, l, completed)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tTITLE\tMIN\tTOPICS")
			for _, lesson := range a.lessons.Lessons(i, l) {
				mark := ""
				switch {
				case done[lesson.ID]:
					mark = "✓"
				case hasNext && lesson.ID == next.ID:
					mark = "→"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", mark, lesson.ID, lesson.Title, lesson.Duration, strings.Join(lesson.Topics, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "gitar, piyano or bateri")
	cmd.Flags().StringVar(&level, "level", "", "beginner, intermediate or advanced")
	return cmd
}

func NewTeachersCmd() *cobra.Command {
	var instrument string
	cmd := &cobra.Command{
		Use:   "teachers",
		Short: "List teacher personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var i models.Instrument
			if instrument != "" {
				if i, err = models.ParseInstrument(instrument); err != nil {
					return err
				}
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tINSTRUMENT\tSTYLE")
			for _, t := range a.lessons.Teachers(i) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Instrument.DisplayName(), t.Personality.TeachingStyle)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "only teachers of this instrument")
	return cmd
}
