package models

import (
	"math"
	"time"
)

const DateLayout = "2006-01-02"

type UserProgress struct {
	UserID            string         `json:"userId"`
	TotalPracticeTime int64          `json:"totalPracticeTime"` // seconds
	WeeklyProgress    map[string]int `json:"weeklyProgress"`    // YYYY-MM-DD -> minutes
	CompletedLessons  []string       `json:"completedLessons"`
	CurrentLesson     string         `json:"currentLesson"`
	Level             Level          `json:"level,omitempty"`
	Performance       *Performance   `json:"performance,omitempty"`
	// Streak counts consecutive practice days before the day of LastPracticeDate.
	// Read it through CurrentStreak.
	Streak           int        `json:"streak"`
	LastPracticeDate *time.Time `json:"lastPracticeDate,omitempty"`
}

type Performance struct {
	LastSession *SessionPerformance `json:"lastSession,omitempty"`
	Level       Level               `json:"level,omitempty"`
}

type SessionPerformance struct {
	Accuracy float64 `json:"accuracy"`
	Tempo    float64 `json:"tempo"`
}

func NewUserProgress(userID string) *UserProgress {
	return &UserProgress{
		UserID:           userID,
		WeeklyProgress:   map[string]int{},
		CompletedLessons: []string{},
		Performance:      &Performance{Level: LevelBeginner},
	}
}

// ProgressPatch is a partial progress update. The streak and the last practice
// date are derived from practice events and cannot be patched.
type ProgressPatch struct {
	TotalPracticeTime *int64         `json:"totalPracticeTime,omitempty"`
	WeeklyProgress    map[string]int `json:"weeklyProgress,omitempty"`
	CompletedLessons  []string       `json:"completedLessons,omitempty"`
	CurrentLesson     *string        `json:"currentLesson,omitempty"`
	Level             *Level         `json:"level,omitempty"`
}

func (p ProgressPatch) Apply(progress *UserProgress) {
	if p.TotalPracticeTime != nil {
		progress.TotalPracticeTime = *p.TotalPracticeTime
	}
	if p.WeeklyProgress != nil {
		progress.WeeklyProgress = p.WeeklyProgress
	}
	if p.CompletedLessons != nil {
		progress.CompletedLessons = nil
		for _, id := range p.CompletedLessons {
			progress.AddCompletedLesson(id)
		}
	}
	if p.CurrentLesson != nil {
		progress.CurrentLesson = *p.CurrentLesson
	}
	if p.Level != nil {
		progress.Level = *p.Level
	}
}

// AddCompletedLesson adds the id once; it reports whether the list changed.
func (p *UserProgress) AddCompletedLesson(id string) bool {
	for _, existing := range p.CompletedLessons {
		if existing == id {
			return false
		}
	}
	p.CompletedLessons = append(p.CompletedLessons, id)
	return true
}

func (p *UserProgress) HasCompleted(id string) bool {
	for _, existing := range p.CompletedLessons {
		if existing == id {
			return true
		}
	}
	return false
}

// AddPractice records a practice event at now.
func (p *UserProgress) AddPractice(d time.Duration, perf *SessionPerformance, now time.Time, loc *time.Location) {
	if d < 0 {
		d = 0
	}
	if loc == nil {
		loc = time.UTC
	}
	if p.WeeklyProgress == nil {
		p.WeeklyProgress = map[string]int{}
	}
	p.TotalPracticeTime += int64(d / time.Second)
	today := now.In(loc).Format(DateLayout)
	p.WeeklyProgress[today] += int(math.Round(d.Minutes()))
	if perf != nil {
		if p.Performance == nil {
			p.Performance = &Performance{}
		}
		p.Performance.LastSession = perf
	}
	p.recordPracticeDay(now, loc)
}

func (p *UserProgress) recordPracticeDay(now time.Time, loc *time.Location) {
	if p.LastPracticeDate != nil {
		switch gap := CalendarDaysBetween(*p.LastPracticeDate, now, loc); {
		case gap <= 0:
		case gap == 1:
			p.Streak++
		default:
			p.Streak = 0
		}
	}
	if p.Streak < 0 {
		p.Streak = 0
	}
	t := now.UTC()
	p.LastPracticeDate = &t
}

// CurrentStreak derives the streak shown to the user: the stored count plus the
// last practice day when that day is today or yesterday, otherwise zero.
func (p *UserProgress) CurrentStreak(now time.Time, loc *time.Location) int {
	if p == nil || p.LastPracticeDate == nil {
		return 0
	}
	if CalendarDaysBetween(*p.LastPracticeDate, now, loc) <= 1 {
		return max(p.Streak, 0) + 1
	}
	return 0
}

// PracticedOn reports whether any practice minutes are recorded on the day of t.
func (p *UserProgress) PracticedOn(t time.Time, loc *time.Location) bool {
	if p == nil {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	if p.WeeklyProgress[t.In(loc).Format(DateLayout)] > 0 {
		return true
	}
	return p.LastPracticeDate != nil && CalendarDaysBetween(*p.LastPracticeDate, t, loc) == 0
}

type DailyPractice struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// WeeklyStats returns the last seven calendar days ending at now, oldest first.
func (p *UserProgress) WeeklyStats(now time.Time, loc *time.Location) []DailyPractice {
	if loc == nil {
		loc = time.UTC
	}
	stats := make([]DailyPractice, 7)
	local := now.In(loc)
	for i := 0; i < 7; i++ {
		date := local.AddDate(0, 0, -(6 - i)).Format(DateLayout)
		minutes := 0
		if p != nil {
			minutes = p.WeeklyProgress[date]
		}
		stats[i] = DailyPractice{Date: date, Minutes: minutes}
	}
	return stats
}

// CalendarDaysBetween counts calendar-day boundaries from a to b in loc.
func CalendarDaysBetween(a, b time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	a = a.In(loc)
	b = b.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
