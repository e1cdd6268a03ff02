package repository

import (
	"context"
	"fmt"
	"music-tutor/internal/models"
	"music-tutor/internal/utils"

	"github.com/sirupsen/logrus"
)

type SettingsRepository struct {
	logger *logrus.Entry
	store  RecordStore
}

func NewSettingsRepository(logger *logrus.Entry, store RecordStore) utils.SettingsRepository {
	return &SettingsRepository{
		logger: logger,
		store:  store,
	}
}

// GetSettings returns the stored settings, or the defaults when none were saved.
func (r *SettingsRepository) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings, _, err := getJSON[models.UserSettings](ctx, r.store, SettingsKey(userID))
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user settings")
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}
	if settings == nil {
		defaults := models.DefaultUserSettings()
		return &defaults, nil
	}
	return settings, nil
}

func (r *SettingsRepository) SaveSettings(ctx context.Context, userID string, patch models.SettingsPatch) (*models.UserSettings, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	settings, err := updateJSON(ctx, r.store, SettingsKey(userID),
		func() *models.UserSettings {
			defaults := models.DefaultUserSettings()
			return &defaults
		},
		func(s *models.UserSettings) error {
			patch.Apply(s)
			return nil
		})
	if err != nil {
		r.logger.WithError(err).Error("Failed to save user settings")
		return nil, fmt.Errorf("failed to save user settings: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"userId":        userID,
		"notifications": settings.Notifications,
		"theme":         settings.Theme,
	}).Info("Successfully saved user settings")
	return settings, nil
}
