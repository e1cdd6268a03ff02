// Package reminder decides when a user should be nudged to practice and
// schedules the daily nudge, either in EventBridge Scheduler or in-process.
package reminder

import (
	"fmt"
	"music-tutor/internal/models"
	"strings"
	"time"
)

const DefaultReminderTime = "19:00"

// ShouldRemind is false when notifications are off or the user already practiced today.
func ShouldRemind(settings *models.UserSettings, progress *models.UserProgress, now time.Time, loc *time.Location) bool {
	if settings != nil && !settings.Notifications {
		return false
	}
	return !progress.PracticedOn(now, loc)
}

// Compose builds the reminder text from the profile goal and the current streak.
func Compose(profile *models.UserProfile, progress *models.UserProgress, now time.Time, loc *time.Location) string {
	name := "Merhaba"
	goal := models.PracticeGoal10
	instrument := models.InstrumentGuitar
	if profile != nil {
		if profile.FullName != "" {
			name = "Merhaba " + strings.Fields(profile.FullName)[0]
		}
		if profile.PracticeGoal.Valid() {
			goal = profile.PracticeGoal
		}
		if profile.Instrument.Valid() {
			instrument = profile.Instrument
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s! 🎵 Bugün %d dakikalık %s çalışmanı henüz yapmadın.\n", name, goal, instrument.DisplayName()))
	if streak := progress.CurrentStreak(now, loc); streak > 0 {
		sb.WriteString(fmt.Sprintf("%d günlük serini bozma, hadi başlayalım!", streak))
	} else {
		sb.WriteString("Yeni bir seriye bugün başlayabilirsin!")
	}
	return sb.String()
}
