package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// LocalScheduler fires daily reminders inside the running process.
type LocalScheduler struct {
	logger *logrus.Entry
	cron   *cron.Cron
}

func NewLocalScheduler(logger *logrus.Entry, loc *time.Location) *LocalScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &LocalScheduler{
		logger: logger,
		cron:   cron.New(cron.WithLocation(loc)),
	}
}

// AddDaily registers fn to run every day at reminderTime (HH:MM).
func (s *LocalScheduler) AddDaily(reminderTime string, fn func()) (cron.EntryID, error) {
	t, err := time.Parse("15:04", reminderTime)
	if err != nil {
		return 0, fmt.Errorf("invalid time format: %s", reminderTime)
	}
	id, err := s.cron.AddFunc(fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), fn)
	if err != nil {
		return 0, fmt.Errorf("failed to add reminder: %w", err)
	}
	s.logger.WithField("time", reminderTime).Info("Daily reminder registered")
	return id, nil
}

// Next reports when the entry fires next; zero before Start.
func (s *LocalScheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// Run starts the scheduler and blocks until ctx is done, then waits for running jobs.
func (s *LocalScheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
