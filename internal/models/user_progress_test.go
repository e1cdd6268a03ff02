package models

import (
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCurrentStreak(t *testing.T) {
	now := date("2024-03-10T18:00:00Z")

	tests := []struct {
		name  string
		last  string
		prior int
		want  int
	}{
		{"practiced earlier today", "2024-03-10T08:00:00Z", 3, 4},
		{"practiced yesterday", "2024-03-09T23:59:00Z", 3, 4},
		{"exactly one day ago", "2024-03-09T18:00:00Z", 0, 1},
		{"1.99 days ago is two calendar days", "2024-03-08T18:30:00Z", 3, 0},
		{"two days ago", "2024-03-08T08:00:00Z", 5, 0},
		{"a week ago", "2024-03-03T08:00:00Z", 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := date(tt.last)
			p := &UserProgress{Streak: tt.prior, LastPracticeDate: &last}
			if got := p.CurrentStreak(now, time.UTC); got != tt.want {
				t.Errorf("CurrentStreak() = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("no practice yet", func(t *testing.T) {
		if got := NewUserProgress("u1").CurrentStreak(now, time.UTC); got != 0 {
			t.Errorf("CurrentStreak() = %d, want 0", got)
		}
	})

	t.Run("repeated reads are stable", func(t *testing.T) {
		last := date("2024-03-10T08:00:00Z")
		p := &UserProgress{Streak: 2, LastPracticeDate: &last}
		first := p.CurrentStreak(now, time.UTC)
		second := p.CurrentStreak(now, time.UTC)
		if first != second {
			t.Errorf("streak changed between reads: %d then %d", first, second)
		}
	})

	t.Run("calendar days follow the location", func(t *testing.T) {
		ist, err := time.LoadLocation("Europe/Istanbul")
		if err != nil {
			t.Skip("tzdata not available")
		}
		// 22:30 UTC on the 8th is already the 9th in Istanbul.
		last := date("2024-03-08T22:30:00Z")
		p := &UserProgress{Streak: 1, LastPracticeDate: &last}
		if got := p.CurrentStreak(now, ist); got != 2 {
			t.Errorf("CurrentStreak() = %d, want 2", got)
		}
	})
}

func TestAddPracticeStreakBookkeeping(t *testing.T) {
	p := NewUserProgress("u1")
	day1 := date("2024-03-01T09:00:00Z")

	p.AddPractice(20*time.Minute, nil, day1, time.UTC)
	if got := p.CurrentStreak(day1, time.UTC); got != 1 {
		t.Fatalf("day 1 streak = %d, want 1", got)
	}

	p.AddPractice(10*time.Minute, nil, day1.Add(3*time.Hour), time.UTC)
	if got := p.CurrentStreak(day1, time.UTC); got != 1 {
		t.Fatalf("second session on day 1 streak = %d, want 1", got)
	}

	day2 := day1.AddDate(0, 0, 1)
	p.AddPractice(15*time.Minute, &SessionPerformance{Accuracy: 80, Tempo: 100}, day2, time.UTC)
	if got := p.CurrentStreak(day2, time.UTC); got != 2 {
		t.Fatalf("day 2 streak = %d, want 2", got)
	}

	day5 := day1.AddDate(0, 0, 4)
	if got := p.CurrentStreak(day5, time.UTC); got != 0 {
		t.Fatalf("streak after a gap = %d, want 0", got)
	}
	p.AddPractice(5*time.Minute, nil, day5, time.UTC)
	if got := p.CurrentStreak(day5, time.UTC); got != 1 {
		t.Fatalf("streak restarted = %d, want 1", got)
	}

	if p.TotalPracticeTime != int64((50 * time.Minute).Seconds()) {
		t.Errorf("TotalPracticeTime = %d", p.TotalPracticeTime)
	}
	if p.WeeklyProgress["2024-03-01"] != 30 {
		t.Errorf("minutes on day 1 = %d, want 30", p.WeeklyProgress["2024-03-01"])
	}
	if p.Performance == nil || p.Performance.LastSession == nil || p.Performance.LastSession.Tempo != 100 {
		t.Errorf("last session performance not recorded: %+v", p.Performance)
	}
}

func TestAddCompletedLessonIsASet(t *testing.T) {
	p := NewUserProgress("u1")
	if !p.AddCompletedLesson("gitar-101") {
		t.Fatal("first add should change the list")
	}
	if p.AddCompletedLesson("gitar-101") {
		t.Fatal("second add should be a no-op")
	}
	if len(p.CompletedLessons) != 1 {
		t.Fatalf("CompletedLessons = %v", p.CompletedLessons)
	}

	ProgressPatch{CompletedLessons: []string{"a", "b", "a"}}.Apply(p)
	if len(p.CompletedLessons) != 2 {
		t.Fatalf("patched CompletedLessons = %v", p.CompletedLessons)
	}
}

func TestProgressPatchKeepsUnsetFields(t *testing.T) {
	p := NewUserProgress("u1")
	total := int64(10)
	ProgressPatch{TotalPracticeTime: &total}.Apply(p)
	ProgressPatch{CompletedLessons: []string{"a"}}.Apply(p)

	if p.TotalPracticeTime != 10 {
		t.Errorf("TotalPracticeTime = %d, want 10", p.TotalPracticeTime)
	}
	if len(p.CompletedLessons) != 1 || p.CompletedLessons[0] != "a" {
		t.Errorf("CompletedLessons = %v", p.CompletedLessons)
	}
}

func TestWeeklyStats(t *testing.T) {
	p := NewUserProgress("u1")
	p.WeeklyProgress["2024-03-10"] = 15
	p.WeeklyProgress["2024-03-04"] = 5
	p.WeeklyProgress["2024-03-03"] = 99

	stats := p.WeeklyStats(date("2024-03-10T12:00:00Z"), time.UTC)
	if len(stats) != 7 {
		t.Fatalf("len = %d", len(stats))
	}
	if stats[0].Date != "2024-03-04" || stats[0].Minutes != 5 {
		t.Errorf("first = %+v", stats[0])
	}
	if stats[6].Date != "2024-03-10" || stats[6].Minutes != 15 {
		t.Errorf("last = %+v", stats[6])
	}
}
