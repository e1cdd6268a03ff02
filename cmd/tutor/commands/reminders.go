package commands

import (
	"context"
	"fmt"
	"io"
	"music-tutor/internal/reminder"
	"time"

	"github.com/spf13/cobra"
)

func NewRemindersCmd() *cobra.Command {
	var once bool
	var at string
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Run the daily practice reminder on this machine",
		Long: `Wait for the reminder time every day and send a nudge when you have not
practiced yet. The message goes to LINE when CHANNEL_SECRET, CHANNEL_TOKEN
and your profile's LINE user id are set, otherwise it is printed.

Examples:
  tutor reminders
  tutor reminders --at 08:30
  tutor reminders --once`,
		Args: cobra.NoArgs,
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
			settings, err := a.settings.GetSettings(ctx, user.ID)
			if err != nil {
				return err
			}
			loc := a.location
			if settings.Timezone != "" {
				if loc, err = time.LoadLocation(settings.Timezone); err != nil {
					return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
				}
			}

			out := &syncWriter{w: cmd.OutOrStdout()}
			if once {
				return remindNow(ctx, a, user.ID, loc, out)
			}

			reminderTime := at
			if reminderTime == "" {
				reminderTime = settings.ReminderTime
			}
			if reminderTime == "" {
				reminderTime = a.cfg.ReminderTime
			}
			sched := reminder.NewLocalScheduler(a.logger, loc)
			if _, err := sched.AddDaily(reminderTime, func() {
				if err := remindNow(ctx, a, user.ID, loc, out); err != nil {
					a.logger.WithError(err).Error("Failed to send practice reminder")
				}
			}); err != nil {
				return err
			}
			fmt.Fprintf(out, "Hatırlatıcı her gün %s (%s) saatinde çalışacak. Çıkmak için Ctrl+C.\n", reminderTime, loc)
			sched.Run(ctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "check and remind once, then exit")
	cmd.Flags().StringVar(&at, "at", "", "reminder time as HH:MM (defaults to your settings)")
	return cmd
}

func remindNow(ctx context.Context, a *app, userID string, loc *time.Location, out io.Writer) error {
	profile, err := a.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	settings, err := a.settings.GetSettings(ctx, userID)
	if err != nil {
		return err
	}
	progress, err := a.progress.GetProgress(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	if !reminder.ShouldRemind(settings, progress, now, loc) {
		a.logger.WithField("userId", userID).Info("Reminder skipped")
		fmt.Fprintln(out, "Hatırlatma gerekmiyor.")
		return nil
	}
	text := reminder.Compose(profile, progress, now, loc)

	if bot, ok := a.linebot(); ok && profile != nil && profile.LineUserID != "" {
		if err := bot.PushMessage(profile.LineUserID, text); err != nil {
			return fmt.Errorf("failed to push reminder: %w", err)
		}
		fmt.Fprintln(out, "Hatırlatma LINE ile gönderildi.")
		return nil
	}
	fmt.Fprintln(out, text)
	return nil
}
