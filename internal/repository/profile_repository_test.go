package repository

import (
	"context"
	"music-tutor/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("save merges shallowly", func(t *testing.T) {
		repo := NewProfileRepository(testLogger(), NewMemoryStore())
		name := "Ayşe"
		instrument := models.InstrumentPiano
		_, err := repo.SaveProfile(ctx, "u1", models.ProfilePatch{FullName: &name})
		require.NoError(t, err)

		profile, err := repo.SaveProfile(ctx, "u1", models.ProfilePatch{Instrument: &instrument})
		require.NoError(t, err)
		assert.Equal(t, "Ayşe", profile.FullName)
		assert.Equal(t, models.InstrumentPiano, profile.Instrument)
		assert.Equal(t, "u1", profile.ID)
		assert.NotEmpty(t, profile.CreatedAt)
	})

	t.Run("invalid instrument is rejected", func(t *testing.T) {
		repo := NewProfileRepository(testLogger(), NewMemoryStore())
		bad := models.Instrument("keman")
		_, err := repo.SaveProfile(ctx, "u1", models.ProfilePatch{Instrument: &bad})
		assert.ErrorIs(t, err, models.ErrInvalidValue)

		profile, err := repo.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, profile)
	})

	t.Run("onboarding creates profile and progress", func(t *testing.T) {
		store := NewMemoryStore()
		repo := NewProfileRepository(testLogger(), store)
		profile, err := repo.CompleteOnboarding(ctx, "u1", models.Onboarding{
			FullName:     "Can",
			Instrument:   models.InstrumentGuitar,
			Level:        models.LevelBeginner,
			PracticeGoal: models.PracticeGoal20,
		})
		require.NoError(t, err)
		assert.True(t, profile.IsOnboardingComplete)

		progress, err := NewProgressRepository(testLogger(), store, lessonSet{}, nil).GetProgress(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, progress)
		assert.Equal(t, models.LevelBeginner, progress.Level)
	})

	t.Run("delete account removes every record", func(t *testing.T) {
		store := NewMemoryStore()
		profiles := NewProfileRepository(testLogger(), store)
		settings := NewSettingsRepository(testLogger(), store)
		name := "Deniz"
		_, err := profiles.SaveProfile(ctx, "u1", models.ProfilePatch{FullName: &name})
		require.NoError(t, err)
		dark := models.ThemeDark
		_, err = settings.SaveSettings(ctx, "u1", models.SettingsPatch{Theme: &dark})
		require.NoError(t, err)

		require.NoError(t, profiles.DeleteAccount(ctx, "u1"))

		for _, key := range []string{ProfileKey("u1"), ProgressKey("u1"), SettingsKey("u1")} {
			_, err := store.Get(ctx, key)
			assert.ErrorIs(t, err, ErrRecordNotFound, key)
		}
	})
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(testLogger(), NewMemoryStore())

	settings, err := repo.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUserSettings(), *settings)

	off := false
	settings, err = repo.SaveSettings(ctx, "u1", models.SettingsPatch{Notifications: &off})
	require.NoError(t, err)
	assert.False(t, settings.Notifications)
	assert.Equal(t, models.ThemeLight, settings.Theme)
	assert.Equal(t, models.LanguageTurkish, settings.Language)

	bad := models.Theme("neon")
	_, err = repo.SaveSettings(ctx, "u1", models.SettingsPatch{Theme: &bad})
	assert.ErrorIs(t, err, models.ErrInvalidValue)
}
