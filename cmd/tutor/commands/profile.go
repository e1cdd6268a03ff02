package commands

import (
	"fmt"
	"io"
	"music-tutor/internal/models"
	"music-tutor/internal/reminder"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func NewOnboardCmd() *cobra.Command {
	var name, instrument, level string
	var goal int
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Answer the onboarding questions",
		Long: `Store your name, instrument, level and daily practice goal and
create an empty progress record.

Examples:
  tutor onboard --instrument piyano --level beginner --goal 10`,
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
			if name == "" {
				name = user.FullName
			}
			i, err := models.ParseInstrument(instrument)
			if err != nil {
				return err
			}
			l, err := models.ParseLevel(level)
			if err != nil {
				return err
			}
			profile, err := a.profiles.CompleteOnboarding(ctx, user.ID, models.Onboarding{
				FullName:     name,
				Email:        user.Email,
				Instrument:   i,
				Level:        l,
				PracticeGoal: models.PracticeGoal(goal),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hoş geldin %s! Profilin hazır.\n\n", profile.FullName)
			printProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name (defaults to the account name)")
	cmd.Flags().StringVar(&instrument, "instrument", "gitar", "gitar, piyano or bateri")
	cmd.Flags().StringVar(&level, "level", "beginner", "beginner, intermediate or advanced")
	cmd.Flags().IntVar(&goal, "goal", 10, "daily practice goal in minutes: 10, 20 or 30")
	return cmd
}

func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		Long: `Without flags the profile is shown. Any flag updates that field only.

Examples:
  tutor profile
  tutor profile --level intermediate --goal 30
  tutor profile --line-user-id U1234`,
		Args: cobra.NoArgs,
		RunE: runProfile,
	}
	cmd.Flags().String("name", "", "full name")
	cmd.Flags().String("instrument", "", "gitar, piyano or bateri")
	cmd.Flags().String("level", "", "beginner, intermediate or advanced")
	cmd.Flags().Int("goal", 0, "daily practice goal in minutes: 10, 20 or 30")
	cmd.Flags().String("line-user-id", "", "LINE user id for reminder messages")
	return cmd
}

func runProfile(cmd *cobra.Command, args []string) error {
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

	patch, changed, err := profilePatch(cmd)
	if err != nil {
		return err
	}
	if !changed {
		profile, err := a.profiles.GetProfile(ctx, user.ID)
		if err != nil {
			return err
		}
		if profile == nil {
			return errNoProfile
		}
		printProfile(cmd.OutOrStdout(), profile)
		return nil
	}

	profile, err := a.profiles.SaveProfile(ctx, user.ID, patch)
	if err != nil {
		return err
	}
	printProfile(cmd.OutOrStdout(), profile)
	return nil
}

func profilePatch(cmd *cobra.Command) (models.ProfilePatch, bool, error) {
	var patch models.ProfilePatch
	flags := cmd.Flags()
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		patch.FullName = &v
	}
	if flags.Changed("instrument") {
		v, _ := flags.GetString("instrument")
		i, err := models.ParseInstrument(v)
		if err != nil {
			return patch, false, err
		}
		patch.Instrument = &i
	}
	if flags.Changed("level") {
		v, _ := flags.GetString("level")
		l, err := models.ParseLevel(v)
		if err != nil {
			return patch, false, err
		}
		patch.Level = &l
	}
	if flags.Changed("goal") {
		v, _ := flags.GetInt("goal")
		g := models.PracticeGoal(v)
		patch.PracticeGoal = &g
	}
	if flags.Changed("line-user-id") {
		v, _ := flags.GetString("line-user-id")
		patch.LineUserID = &v
	}
	changed := patch != (models.ProfilePatch{})
	return patch, changed, nil
}

func printProfile(w io.Writer, p *models.UserProfile) {
	fmt.Fprintf(w, "Name:       %s\n", p.FullName)
	if p.Email != "" {
		fmt.Fprintf(w, "Email:      %s\n", p.Email)
	}
	fmt.Fprintf(w, "Instrument: %s\n", p.Instrument.DisplayName())
	fmt.Fprintf(w, "Level:      %s\n", p.Level)
	fmt.Fprintf(w, "Goal:       %d dk/gün\n", p.PracticeGoal)
	if p.LineUserID != "" {
		fmt.Fprintf(w, "LINE:       %s\n", p.LineUserID)
	}
	if !p.IsOnboardingComplete {
		fmt.Fprintln(w, "Onboarding is not complete, run `tutor onboard`.")
	}
}

func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update notification and display settings",
		Long: `Without flags the settings are shown. When reminder scheduling is
configured, changing notifications, reminder time or timezone also updates
the daily EventBridge schedule.

Examples:
  tutor settings --notifications=false
  tutor settings --reminder-time 08:30 --timezone Europe/Istanbul`,
		Args: cobra.NoArgs,
		RunE: runSettings,
	}
	cmd.Flags().Bool("notifications", true, "daily practice reminders")
	cmd.Flags().String("theme", "", "light or dark")
	cmd.Flags().String("language", "", "tr or en")
	cmd.Flags().String("reminder-time", "", "reminder time as HH:MM")
	cmd.Flags().String("timezone", "", "IANA timezone of the reminder")
	return cmd
}

func runSettings(cmd *cobra.Command, args []string) error {
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

	patch, err := settingsPatch(cmd)
	if err != nil {
		return err
	}
	if patch == (models.SettingsPatch{}) {
		settings, err := a.settings.GetSettings(ctx, user.ID)
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), settings)
		return nil
	}

	settings, err := a.settings.SaveSettings(ctx, user.ID, patch)
	if err != nil {
		return err
	}
	printSettings(cmd.OutOrStdout(), settings)

	if patch.Notifications == nil && patch.ReminderTime == nil && patch.Timezone == nil {
		return nil
	}
	schedules, err := a.schedules(ctx)
	if err != nil {
		a.logger.WithError(err).Debug("Skipping reminder schedule update")
		return nil
	}
	if !settings.Notifications {
		if err := schedules.Disable(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to disable reminder: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reminder schedule %s removed\n", reminder.ScheduleName(user.ID))
		return nil
	}
	reminderTime, timezone := settings.ReminderTime, settings.Timezone
	if reminderTime == "" {
		reminderTime = a.cfg.ReminderTime
	}
	if timezone == "" {
		timezone = a.cfg.Timezone
	}
	if err := schedules.Enable(ctx, user.ID, reminderTime, timezone); err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reminder schedule %s set for %s %s\n", reminder.ScheduleName(user.ID), reminderTime, timezone)
	return nil
}

func settingsPatch(cmd *cobra.Command) (models.SettingsPatch, error) {
	var patch models.SettingsPatch
	flags := cmd.Flags()
	if flags.Changed("notifications") {
		v, _ := flags.GetBool("notifications")
		patch.Notifications = &v
	}
	if flags.Changed("theme") {
		v, _ := flags.GetString("theme")
		t := models.Theme(strings.ToLower(v))
		patch.Theme = &t
	}
	if flags.Changed("language") {
		v, _ := flags.GetString("language")
		l := models.Language(strings.ToLower(v))
		patch.Language = &l
	}
	if flags.Changed("reminder-time") {
		v, _ := flags.GetString("reminder-time")
		if _, err := time.Parse("15:04", v); err != nil {
			return patch, fmt.Errorf("%w: reminder time %q", models.ErrInvalidValue, v)
		}
		patch.ReminderTime = &v
	}
	if flags.Changed("timezone") {
		v, _ := flags.GetString("timezone")
		if _, err := time.LoadLocation(v); err != nil {
			return patch, fmt.Errorf("%w: timezone %q", models.ErrInvalidValue, v)
		}
		patch.Timezone = &v
	}
	return patch, nil
}

func printSettings(w io.Writer, s *models.UserSettings) {
	notifications := "kapalı"
	if s.Notifications {
		notifications = "açık"
	}
	fmt.Fprintf(w, "Notifications: %s\n", notifications)
	fmt.Fprintf(w, "Theme:         %s\n", s.Theme)
	fmt.Fprintf(w, "Language:      %s\n", s.Language)
	if s.ReminderTime != "" {
		fmt.Fprintf(w, "Reminder time: %s\n", s.ReminderTime)
	}
	if s.Timezone != "" {
		fmt.Fprintf(w, "Timezone:      %s\n", s.Timezone)
	}
}
