package model

import (
	"errors"
	"fmt"
	"strings"
)

// TaskType controls whether completing a task schedules the next day's copy.
type TaskType string

const (
	TaskTypeGoal          TaskType = "Goal"
	TaskTypeNonNegotiable TaskType = "Non-Negotiable"
)

var ErrUnknownTaskType = errors.New("unknown task type")

// ParseTaskType accepts the stored spelling and a few shorthands.
func ParseTaskType(raw string) (TaskType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "goal", "g":
		return TaskTypeGoal, nil
	case "non-negotiable", "nonnegotiable", "non negotiable", "nn", "daily":
		return TaskTypeNonNegotiable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTaskType, raw)
	}
}

func (t TaskType) Recurring() bool {
	return t == TaskTypeNonNegotiable
}

// Task is one row of the tracker. Recurring tasks leave one row per day
// behind, all sharing the same Name.
type Task struct {
	ID        uint     `gorm:"primaryKey"`
	Name      string   `gorm:"column:task;index"`
	Type      TaskType `gorm:"column:task_type"`
	Status    bool     `gorm:"column:status;default:false"`
	StartDate Date     `gorm:"column:start_date;index"`
	EndDate   *Date    `gorm:"column:end_date;index"`
}

func (Task) TableName() string {
	return "tasks"
}

// Done reports whether the task is completed.
func (t Task) Done() bool {
	return t.Status
}

// TaskEdit carries the user-editable fields of a task. Nil fields are left
// untouched.
type TaskEdit struct {
	Name      *string
	Type      *TaskType
	Status    *bool
	StartDate *Date
}

func (e TaskEdit) Empty() bool {
	return e.Name == nil && e.Type == nil && e.Status == nil && e.StartDate == nil
}
