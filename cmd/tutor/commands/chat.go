package commands

import (
	"errors"
	"fmt"
	"music-tutor/internal/utils"
	"strings"

	"github.com/spf13/cobra"
)

func NewChatCmd() *cobra.Command {
	var instrument string
	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Ask the teacher one question",
		Example: `  tutor chat "Barre akoru nasıl basılır?"
  tutor chat --instrument piyano "Gam çalışırken parmak numaraları"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			i, _, err := a.instrumentAndLevel(ctx, instrument, "")
			if err != nil {
				return err
			}
			client, err := a.openai()
			if err != nil {
				return err
			}
			reply, err := client.GetMusicTeacherResponse(ctx, i, strings.Join(args, " "))
			if err != nil {
				a.logger.WithError(err).Error("Failed to get teacher response")
				return errors.New(utils.UserMessage(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "gitar, piyano or bateri (defaults to your profile)")
	return cmd
}
