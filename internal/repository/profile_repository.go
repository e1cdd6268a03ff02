package repository

import (
	"context"
	"fmt"
	"music-tutor/internal/models"
	"music-tutor/internal/utils"
	"time"

	"github.com/sirupsen/logrus"
)

type ProfileRepository struct {
	logger *logrus.Entry
	store  RecordStore
	now    func() time.Time
}

func NewProfileRepository(logger *logrus.Entry, store RecordStore) utils.ProfileRepository {
	return &ProfileRepository{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, _, err := getJSON[models.UserProfile](ctx, r.store, ProfileKey(userID))
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user profile")
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.UserProfile, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	profile, err := updateJSON(ctx, r.store, ProfileKey(userID),
		func() *models.UserProfile { return &models.UserProfile{ID: userID} },
		func(p *models.UserProfile) error {
			patch.Apply(p, r.now())
			return nil
		})
	if err != nil {
		r.logger.WithError(err).Error("Failed to save user profile")
		return nil, fmt.Errorf("failed to save user profile: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"userId":     userID,
		"instrument": profile.Instrument,
		"level":      profile.Level,
	}).Info("Successfully saved user profile")
	return profile, nil
}

// CompleteOnboarding stores the wizard answers and creates the progress record
// when the user has none yet.
func (r *ProfileRepository) CompleteOnboarding(ctx context.Context, userID string, answers models.Onboarding) (*models.UserProfile, error) {
	if err := answers.Validate(); err != nil {
		return nil, err
	}
	profile, err := r.SaveProfile(ctx, userID, answers.Patch())
	if err != nil {
		return nil, err
	}

	_, err = updateJSON(ctx, r.store, ProgressKey(userID),
		func() *models.UserProgress { return models.NewUserProgress(userID) },
		func(p *models.UserProgress) error {
			if p.Level == "" {
				p.Level = answers.Level
			}
			return nil
		})
	if err != nil {
		r.logger.WithError(err).Error("Failed to initialize progress after onboarding")
		return nil, fmt.Errorf("failed to initialize progress: %w", err)
	}
	return profile, nil
}

// DeleteAccount removes every record of the user. It cannot be undone.
func (r *ProfileRepository) DeleteAccount(ctx context.Context, userID string) error {
	err := r.store.Delete(ctx, ProfileKey(userID), ProgressKey(userID), SettingsKey(userID))
	if err != nil {
		r.logger.WithError(err).Error("Failed to delete account")
		return fmt.Errorf("failed to delete account: %w", err)
	}
	r.logger.WithField("userId", userID).Info("Account deleted")
	return nil
}
