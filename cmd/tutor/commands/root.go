// Package commands implements the tutor command line: account, profile and
// progress management against the local store, interactive lessons and the
// local reminder loop.
package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "tutor-cli"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tutor",
		Short: "Music tutor for guitar, piano and drums",
		Long: `tutor is a practice companion for guitar, piano and drums.

It keeps your profile, settings and practice progress, runs interactive
lessons with an AI teacher and reminds you to practice every day.

Examples:
  tutor login --email ayse@example.com --name "Ayşe Yılmaz"
  tutor onboard --instrument gitar --level beginner --goal 20
  tutor lesson --wav take1.wav
  tutor progress`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			configureLogging(cmd.ErrOrStderr(), verbose)
		},
	}

	cmd.PersistentFlags().String("config", "", "config file (default ~/.music-tutor/config.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	cmd.AddCommand(
		NewLoginCmd(),
		NewLogoutCmd(),
		NewWhoamiCmd(),
		NewDeleteAccountCmd(),
		NewOnboardCmd(),
		NewProfileCmd(),
		NewSettingsCmd(),
		NewProgressCmd(),
		NewPracticeCmd(),
		NewCompleteCmd(),
		NewLessonsCmd(),
		NewTeachersCmd(),
		NewChatCmd(),
		NewLessonCmd(),
		NewAnalyzeCmd(),
		NewRemindersCmd(),
		NewServeMetricsCmd(),
	)
	return cmd
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func configureLogging(w io.Writer, verbose bool) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  TIMESTAMP,
			logrus.FieldKeyLevel: SEVERITY,
			logrus.FieldKeyMsg:   MESSAGE,
		},
	})
	logrus.SetOutput(w)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}
