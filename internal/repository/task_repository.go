package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dailies/internal/model"
)

// StatusResult describes what a status change did.
type StatusResult struct {
	Task model.Task
	// Successor is the next day's copy created for a completed
	// Non-Negotiable task, nil when none was created.
	Successor *model.Task
	// Changed is false when the request did not touch the row, e.g.
	// completing a task that already has an end date.
	Changed bool
}

// TaskRepository handles CRUD and aggregate queries for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new pending task. Names are not unique.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	task.ID = 0
	task.Status = false
	task.EndDate = nil
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListAll(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) ListPending(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("status = ?", false).
		Order("start_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) ListDistinctNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Distinct().
		Order("task ASC").
		Pluck("task", &names).Error; err != nil {
		return nil, fmt.Errorf("list task names: %w", err)
	}
	return names, nil
}

// FindByName returns every row whose name matches exactly.
func (r *TaskRepository) FindByName(ctx context.Context, name string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("task = ?", name).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find tasks by name: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, fmt.Errorf("find task %d: %w", id, err)
	}
	return &task, nil
}

// Update applies edit to the row with the given id and returns the number of
// rows touched. A missing id is not an error. A status change in the edit
// goes through the same rules as SetStatus.
func (r *TaskRepository) Update(ctx context.Context, id uint, edit model.TaskEdit, today model.Date) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.First(&task, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		affected = 1

		updates := map[string]any{}
		if edit.Name != nil {
			updates["task"] = *edit.Name
			task.Name = *edit.Name
		}
		if edit.Type != nil {
			updates["task_type"] = *edit.Type
			task.Type = *edit.Type
		}
		if edit.StartDate != nil {
			updates["start_date"] = *edit.StartDate
			task.StartDate = *edit.StartDate
		}
		if len(updates) > 0 {
			if err := tx.Model(&model.Task{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
				return err
			}
		}

		if edit.Status != nil && *edit.Status != task.Status {
			if _, err := applyStatus(tx, &task, *edit.Status, today); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update task %d: %w", id, err)
	}
	return affected, nil
}

// SetStatus completes or reopens a task in one transaction. Completing a
// Non-Negotiable task also creates its copy for the next day unless a pending
// copy with that name and start date already exists.
func (r *TaskRepository) SetStatus(ctx context.Context, id uint, done bool, today model.Date) (StatusResult, error) {
	var result StatusResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}
		var err error
		result, err = applyStatus(tx, &task, done, today)
		return err
	})
	if err != nil {
		return StatusResult{}, fmt.Errorf("change status of task %d: %w", id, err)
	}
	return result, nil
}

func applyStatus(tx *gorm.DB, task *model.Task, done bool, today model.Date) (StatusResult, error) {
	result := StatusResult{Task: *task}

	switch {
	case !done:
		result.Changed = task.Status || task.EndDate != nil
		if err := setCompletion(tx, task.ID, false, nil); err != nil {
			return result, err
		}
		task.Status = false
		task.EndDate = nil

	case task.Type == model.TaskTypeNonNegotiable && task.EndDate != nil:
		// Already completed: no second successor.
		return result, nil

	case task.Type == model.TaskTypeNonNegotiable:
		if err := setCompletion(tx, task.ID, true, &today); err != nil {
			return result, err
		}
		task.Status = true
		task.EndDate = &today
		result.Changed = true

		successor, err := ensureSuccessor(tx, *task, today.AddDays(1))
		if err != nil {
			return result, err
		}
		result.Successor = successor

	case task.Type == model.TaskTypeGoal:
		if err := setCompletion(tx, task.ID, true, &today); err != nil {
			return result, err
		}
		task.Status = true
		task.EndDate = &today
		result.Changed = true

	default:
		return result, nil
	}

	result.Task = *task
	return result, nil
}

func setCompletion(tx *gorm.DB, id uint, status bool, endDate *model.Date) error {
	updates := map[string]any{"status": status, "end_date": nil}
	if endDate != nil {
		updates["end_date"] = *endDate
	}
	return tx.Model(&model.Task{}).Where("id = ?", id).Updates(updates).Error
}

func ensureSuccessor(tx *gorm.DB, prev model.Task, start model.Date) (*model.Task, error) {
	var existing int64
	if err := tx.Model(&model.Task{}).
		Where("task = ? AND status = ? AND start_date = ?", prev.Name, false, start).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, nil
	}

	successor := model.Task{
		Name:      prev.Name,
		Type:      model.TaskTypeNonNegotiable,
		StartDate: start,
	}
	if err := tx.Create(&successor).Error; err != nil {
		return nil, fmt.Errorf("create successor: %w", err)
	}
	return &successor, nil
}

// Delete removes a single task by id and reports how many rows went away.
func (r *TaskRepository) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, id)
	if res.Error != nil {
		return 0, fmt.Errorf("delete task: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByName removes every row sharing the name, including the history of
// a recurring task.
func (r *TaskRepository) DeleteByName(ctx context.Context, name string) (int64, error) {
	res := r.db.WithContext(ctx).Where("task = ?", name).Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete tasks by name: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAll empties the table.
func (r *TaskRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete all tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *TaskRepository) CompletedCountOnDate(ctx context.Context, day model.Date) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ? AND end_date = ?", true, day).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count completed on %s: %w", day, err)
	}
	return count, nil
}

func (r *TaskRepository) CompletedCountSince(ctx context.Context, from model.Date) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ? AND end_date >= ?", true, from).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count completed since %s: %w", from, err)
	}
	return count, nil
}

// CompletedCountsBetween returns completions per day for the inclusive range.
// Days without completions are absent from the map.
func (r *TaskRepository) CompletedCountsBetween(ctx context.Context, from, to model.Date) (map[model.Date]int64, error) {
	var rows []struct {
		Day   model.Date
		Total int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("end_date AS day, COUNT(*) AS total").
		Where("status = ? AND end_date >= ? AND end_date <= ?", true, from, to).
		Group("end_date").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count completed between %s and %s: %w", from, to, err)
	}

	counts := make(map[model.Date]int64, len(rows))
	for _, row := range rows {
		counts[row.Day] = row.Total
	}
	return counts, nil
}

// LastCompleted returns up to limit completed tasks, newest completion first
// and higher id first within a day.
func (r *TaskRepository) LastCompleted(ctx context.Context, limit int) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("status = ?", true).
		Order("end_date DESC, id DESC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list last completed: %w", err)
	}
	return tasks, nil
}

// CompletionDates returns distinct completion days not after upTo, newest
// first.
func (r *TaskRepository) CompletionDates(ctx context.Context, upTo model.Date, limit int) ([]model.Date, error) {
	var dates []model.Date
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date <= ?", true, upTo).
		Distinct().
		Order("end_date DESC").
		Limit(limit).
		Pluck("end_date", &dates).Error; err != nil {
		return nil, fmt.Errorf("list completion dates: %w", err)
	}
	return dates, nil
}

// CountByStatus returns the number of completed and pending rows.
func (r *TaskRepository) CountByStatus(ctx context.Context) (done, pending int64, err error) {
	var rows []struct {
		Status bool
		Total  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return 0, 0, fmt.Errorf("count by status: %w", err)
	}
	for _, row := range rows {
		if row.Status {
			done += row.Total
		} else {
			pending += row.Total
		}
	}
	return done, pending, nil
}
