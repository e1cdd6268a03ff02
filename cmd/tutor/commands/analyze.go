package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"music-tutor/internal/audio"

	"github.com/spf13/cobra"
)

func NewAnalyzeCmd() *cobra.Command {
	var instrument, level string
	var feedback bool
	cmd := &cobra.Command{
		Use:   "analyze FILE.wav",
		Short: "Analyze a recorded performance",
		Long: `Estimate tempo, rhythm accuracy, key and a score from a WAV recording.
With --feedback the teacher comments on the result.`,
		Args: cobra.ExactArgs(1),
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
			samples, rate, err := readSource(ctx, audio.NewWAVSource(args[0]))
			if err != nil {
				return err
			}
			if len(samples) == 0 {
				return fmt.Errorf("%s contains no audio", args[0])
			}
			analysis := audio.AnalyzePerformance(i, l, samples, rate)

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(analysis); err != nil {
				return err
			}
			if !feedback {
				return nil
			}

			client, err := a.openai()
			if err != nil {
				return err
			}
			fb, err := client.GeneratePracticeFeedback(ctx, i, l, analysis)
			if err != nil {
				return fmt.Errorf("failed to generate feedback: %w", err)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, fb.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "gitar, piyano or bateri (defaults to your profile)")
	cmd.Flags().StringVar(&level, "level", "", "level used for scoring (defaults to your profile)")
	cmd.Flags().BoolVar(&feedback, "feedback", false, "ask the teacher for feedback")
	return cmd
}

// readSource drains src and returns all samples with the source rate.
func readSource(ctx context.Context, src audio.Source) ([]float32, int, error) {
	if err := src.Open(ctx); err != nil {
		return nil, 0, err
	}
	defer src.Close()

	var samples []float32
	buf := make([]float32, 4096)
	for {
		n, err := src.Read(buf)
		samples = append(samples, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return samples, src.SampleRate(), nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read audio: %w", err)
		}
	}
}
