package service

import (
	"context"
	"time"

	"dailies/internal/model"
	"dailies/internal/repository"
)

const (
	// MaxStreakDays bounds the backward walk of CurrentStreak.
	MaxStreakDays = 36500

	recentLimit = 5
)

// DayCount is the number of completions on one day.
type DayCount struct {
	Date  model.Date
	Count int64
}

// ProgressPoint is one day of the cumulative expected-vs-actual chart.
type ProgressPoint struct {
	Date     model.Date
	Expected int64
	Actual   int64
}

// Overview bundles the numbers shown on the dashboard.
type Overview struct {
	Today         model.Date
	DoneToday     int64
	Streak        int
	Last30Days    int64
	Done          int64
	Pending       int64
	LastFive      []model.Task
	LastSevenDays []DayCount
}

// StatsService computes completion statistics over calendar days.
type StatsService struct {
	taskRepo *repository.TaskRepository
	clock    Clock
}

func NewStatsService(taskRepo *repository.TaskRepository) *StatsService {
	return &StatsService{taskRepo: taskRepo, clock: time.Now}
}

func (s *StatsService) WithClock(clock Clock) *StatsService {
	s.clock = clock
	return s
}

func (s *StatsService) today() model.Date {
	return model.DateOf(s.clock())
}

func (s *StatsService) CompletedCountOnDate(ctx context.Context, day model.Date) (int64, error) {
	return s.taskRepo.CompletedCountOnDate(ctx, day)
}

func (s *StatsService) CompletedToday(ctx context.Context) (int64, error) {
	return s.taskRepo.CompletedCountOnDate(ctx, s.today())
}

func (s *StatsService) Last5Completed(ctx context.Context) ([]model.Task, error) {
	return s.taskRepo.LastCompleted(ctx, recentLimit)
}

// CompletedCountLast30Days counts completions dated today-30 or later.
func (s *StatsService) CompletedCountLast30Days(ctx context.Context) (int64, error) {
	return s.taskRepo.CompletedCountSince(ctx, s.today().AddDays(-30))
}

// CurrentStreak counts consecutive days with at least one completion,
// walking back from today. A day without completions ends the streak, so
// an empty today means zero.
func (s *StatsService) CurrentStreak(ctx context.Context) (int, error) {
	today := s.today()
	dates, err := s.taskRepo.CompletionDates(ctx, today, MaxStreakDays)
	if err != nil {
		return 0, err
	}

	streak := 0
	expect := today
	for _, d := range dates {
		if !d.Equal(expect) {
			break
		}
		streak++
		expect = expect.AddDays(-1)
	}
	return streak, nil
}

// DailyCounts returns completions for each of the last days days, oldest
// first, today last.
func (s *StatsService) DailyCounts(ctx context.Context, days int) ([]DayCount, error) {
	if days <= 0 {
		return nil, nil
	}
	today := s.today()
	from := today.AddDays(-(days - 1))

	counts, err := s.taskRepo.CompletedCountsBetween(ctx, from, today)
	if err != nil {
		return nil, err
	}

	out := make([]DayCount, 0, days)
	for d := from; !d.After(today); d = d.AddDays(1) {
		out = append(out, DayCount{Date: d, Count: counts[d]})
	}
	return out, nil
}

// Progress returns running totals of expected and actual completions over
// the last days days, oldest first.
func (s *StatsService) Progress(ctx context.Context, days int, expectedPerDay int64) ([]ProgressPoint, error) {
	daily, err := s.DailyCounts(ctx, days)
	if err != nil {
		return nil, err
	}
	if expectedPerDay < 1 {
		expectedPerDay = 1
	}

	out := make([]ProgressPoint, 0, len(daily))
	var actual int64
	for i, dc := range daily {
		actual += dc.Count
		out = append(out, ProgressPoint{
			Date:     dc.Date,
			Expected: expectedPerDay * int64(i+1),
			Actual:   actual,
		})
	}
	return out, nil
}

// StatusCounts returns the number of completed and pending rows.
func (s *StatsService) StatusCounts(ctx context.Context) (done, pending int64, err error) {
	return s.taskRepo.CountByStatus(ctx)
}

func (s *StatsService) Overview(ctx context.Context) (Overview, error) {
	ov := Overview{Today: s.today()}
	var err error

	if ov.DoneToday, err = s.CompletedToday(ctx); err != nil {
		return ov, err
	}
	if ov.Streak, err = s.CurrentStreak(ctx); err != nil {
		return ov, err
	}
	if ov.Last30Days, err = s.CompletedCountLast30Days(ctx); err != nil {
		return ov, err
	}
	if ov.Done, ov.Pending, err = s.StatusCounts(ctx); err != nil {
		return ov, err
	}
	if ov.LastFive, err = s.Last5Completed(ctx); err != nil {
		return ov, err
	}
	if ov.LastSevenDays, err = s.DailyCounts(ctx, 7); err != nil {
		return ov, err
	}
	return ov, nil
}
