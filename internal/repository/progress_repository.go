package repository

import (
	"context"
	"fmt"
	"music-tutor/internal/models"
	"music-tutor/internal/utils"
	"time"

	"github.com/sirupsen/logrus"
)

// LessonCatalog is the part of the catalog the progress repository validates against.
type LessonCatalog interface {
	HasLesson(id string) bool
}

type ProgressRepository struct {
	logger   *logrus.Entry
	store    RecordStore
	lessons  LessonCatalog
	location *time.Location
	now      func() time.Time
}

func NewProgressRepository(logger *logrus.Entry, store RecordStore, lessons LessonCatalog, location *time.Location) utils.ProgressRepository {
	if location == nil {
		location = time.UTC
	}
	return &ProgressRepository{
		logger:   logger,
		store:    store,
		lessons:  lessons,
		location: location,
		now:      time.Now,
	}
}

func (r *ProgressRepository) GetProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	progress, _, err := getJSON[models.UserProgress](ctx, r.store, ProgressKey(userID))
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user progress")
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	return progress, nil
}

func (r *ProgressRepository) SaveProgress(ctx context.Context, userID string, patch models.ProgressPatch) (*models.UserProgress, error) {
	for _, id := range patch.CompletedLessons {
		if !r.lessons.HasLesson(id) {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownLesson, id)
		}
	}
	if patch.Level != nil && !patch.Level.Valid() {
		return nil, fmt.Errorf("%w: level %q", models.ErrInvalidValue, *patch.Level)
	}
	if patch.TotalPracticeTime != nil && *patch.TotalPracticeTime < 0 {
		return nil, fmt.Errorf("%w: negative practice time", models.ErrInvalidValue)
	}
	return r.update(ctx, userID, "save progress", func(p *models.UserProgress) error {
		patch.Apply(p)
		return nil
	})
}

func (r *ProgressRepository) InitializeProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	return r.update(ctx, userID, "initialize progress", func(*models.UserProgress) error { return nil })
}

// ResetProgress replaces the record with a fresh one.
func (r *ProgressRepository) ResetProgress(ctx context.Context, userID string) error {
	_, err := r.update(ctx, userID, "reset progress", func(p *models.UserProgress) error {
		*p = *models.NewUserProgress(userID)
		return nil
	})
	return err
}

func (r *ProgressRepository) AddPracticeTime(ctx context.Context, userID string, d time.Duration, perf *models.SessionPerformance) (*models.UserProgress, error) {
	if d < 0 {
		return nil, fmt.Errorf("%w: negative practice duration", models.ErrInvalidValue)
	}
	now := r.now()
	progress, err := r.update(ctx, userID, "add practice time", func(p *models.UserProgress) error {
		p.AddPractice(d, perf, now, r.location)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"userId":  userID,
		"seconds": int64(d / time.Second),
		"streak":  progress.CurrentStreak(now, r.location),
	}).Info("Practice time recorded")
	return progress, nil
}

func (r *ProgressRepository) CompleteLesson(ctx context.Context, userID, lessonID string) (*models.UserProgress, error) {
	if !r.lessons.HasLesson(lessonID) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownLesson, lessonID)
	}
	return r.update(ctx, userID, "complete lesson", func(p *models.UserProgress) error {
		p.AddCompletedLesson(lessonID)
		p.CurrentLesson = lessonID
		return nil
	})
}

// UpdateLessonProgress marks lessonID as current; reaching 100 percent completes it.
func (r *ProgressRepository) UpdateLessonProgress(ctx context.Context, userID, lessonID string, percent int) (*models.UserProgress, error) {
	if !r.lessons.HasLesson(lessonID) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownLesson, lessonID)
	}
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: percent %d", models.ErrInvalidValue, percent)
	}
	return r.update(ctx, userID, "update lesson progress", func(p *models.UserProgress) error {
		p.CurrentLesson = lessonID
		if percent == 100 {
			p.AddCompletedLesson(lessonID)
		}
		return nil
	})
}

func (r *ProgressRepository) CalculateStreak(ctx context.Context, userID string, now time.Time) (int, error) {
	progress, err := r.GetProgress(ctx, userID)
	if err != nil {
		return 0, err
	}
	return progress.CurrentStreak(now, r.location), nil
}

func (r *ProgressRepository) WeeklyStats(ctx context.Context, userID string, now time.Time) ([]models.DailyPractice, error) {
	progress, err := r.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return progress.WeeklyStats(now, r.location), nil
}

func (r *ProgressRepository) update(ctx context.Context, userID, op string, mutate func(*models.UserProgress) error) (*models.UserProgress, error) {
	progress, err := updateJSON(ctx, r.store, ProgressKey(userID),
		func() *models.UserProgress { return models.NewUserProgress(userID) },
		mutate)
	if err != nil {
		r.logger.WithError(err).WithField("userId", userID).Errorf("Failed to %s", op)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return progress, nil
}
