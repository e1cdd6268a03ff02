package main

import (
	"context"
	"music-tutor/internal/reminder"
	"music-tutor/internal/utils"
	"time"

	"github.com/sirupsen/logrus"
)

type Handler struct {
	logger        *logrus.Entry
	linebotClient utils.LinebotAPI
	profileRepo   utils.ProfileRepository
	progressRepo  utils.ProgressRepository
	settingsRepo  utils.SettingsRepository
	location      *time.Location
	now           func() time.Time
}

func NewHandler(logger *logrus.Entry, linebotClient utils.LinebotAPI, profileRepo utils.ProfileRepository, progressRepo utils.ProgressRepository, settingsRepo utils.SettingsRepository, location *time.Location) (*Handler, error) {
	return &Handler{
		logger:        logger,
		linebotClient: linebotClient,
		profileRepo:   profileRepo,
		progressRepo:  progressRepo,
		settingsRepo:  settingsRepo,
		location:      location,
		now:           time.Now,
	}, nil
}

type ReminderResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleReminder is invoked by the scheduler with the user to nudge.
func (h *Handler) HandleReminder(ctx context.Context, event reminder.Event) (ReminderResponse, error) {
	logger := h.logger.WithField("userId", event.UserID)
	if event.UserID == "" {
		logger.Error("User ID is required")
		return ReminderResponse{Status: "error", Message: "User ID is required"}, nil
	}

	profile, err := h.profileRepo.GetProfile(ctx, event.UserID)
	if err != nil {
		return ReminderResponse{Status: "error", Message: "Failed to get user profile"}, err
	}
	if profile == nil || profile.LineUserID == "" {
		logger.Warn("No LINE recipient for user")
		return ReminderResponse{Status: "skipped", Message: "No LINE recipient"}, nil
	}

	settings, err := h.settingsRepo.GetSettings(ctx, event.UserID)
	if err != nil {
		return ReminderResponse{Status: "error", Message: "Failed to get user settings"}, err
	}
	progress, err := h.progressRepo.GetProgress(ctx, event.UserID)
	if err != nil {
		return ReminderResponse{Status: "error", Message: "Failed to get user progress"}, err
	}

	now := h.now()
	if !reminder.ShouldRemind(settings, progress, now, h.location) {
		logger.Info("Reminder not needed")
		return ReminderResponse{Status: "skipped", Message: "Already practiced or notifications off"}, nil
	}

	text := reminder.Compose(profile, progress, now, h.location)
	if err := h.linebotClient.PushMessage(profile.LineUserID, text); err != nil {
		logger.WithError(err).Error("Failed to send reminder message")
		return ReminderResponse{Status: "error", Message: "Failed to send reminder"}, err
	}
	logger.Info("Successfully sent reminder message")
	return ReminderResponse{Status: "sent", Message: text}, nil
}
