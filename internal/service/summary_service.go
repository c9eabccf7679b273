package service

import (
	"context"
	"fmt"
	"strings"

	"dailies/internal/model"
)

// SummaryService builds the human-readable daily digest.
type SummaryService struct {
	tasks *TaskService
	stats *StatsService
}

func NewSummaryService(tasks *TaskService, stats *StatsService) *SummaryService {
	return &SummaryService{tasks: tasks, stats: stats}
}

func (s *SummaryService) DailySummary(ctx context.Context) (string, error) {
	ov, err := s.stats.Overview(ctx)
	if err != nil {
		return "", err
	}
	pending, err := s.tasks.ListPending(ctx)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Today is the %s of %s.\n", ordinal(ov.Today.Day()), ov.Today.Month()))
	builder.WriteString(fmt.Sprintf("Completed today: %d\n", ov.DoneToday))
	builder.WriteString(fmt.Sprintf("Current streak: %s\n", pluralDays(ov.Streak)))
	builder.WriteString(fmt.Sprintf("Completed in the last 30 days: %d\n", ov.Last30Days))

	builder.WriteString("\nOngoing:\n")
	if len(pending) == 0 {
		builder.WriteString("  nothing pending\n")
	}
	for _, task := range pending {
		builder.WriteString("  " + FormatTaskLine(task) + "\n")
	}

	builder.WriteString("\nLast completed:\n")
	if len(ov.LastFive) == 0 {
		builder.WriteString("  nothing yet\n")
	}
	for _, task := range ov.LastFive {
		builder.WriteString("  " + FormatTaskLine(task) + "\n")
	}

	builder.WriteString("\nLast 7 days:")
	for _, dc := range ov.LastSevenDays {
		builder.WriteString(fmt.Sprintf(" %s=%d", dc.Date.Format("Mon 02"), dc.Count))
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTaskLine renders a task as "#id [x] Name (Type) · dates".
func FormatTaskLine(task model.Task) string {
	mark := "[ ]"
	if task.Done() {
		mark = "[x]"
	}
	line := fmt.Sprintf("#%d %s %s (%s) · from %s", task.ID, mark, task.Name, task.Type, task.StartDate)
	if task.EndDate != nil {
		line += fmt.Sprintf(" · done %s", task.EndDate)
	}
	return line
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
