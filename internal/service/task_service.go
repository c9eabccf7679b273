package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dailies/internal/model"
	"dailies/internal/repository"
)

var (
	ErrEmptyName = errors.New("task name is required")
	ErrNoChanges = errors.New("nothing to update")
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Name string
	Type string
	// StartDate defaults to today when zero.
	StartDate model.Date
}

// Clock returns the current time. Tests replace it to pin "today".
type Clock func() time.Time

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
	clock    Clock
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo, clock: time.Now}
}

// WithClock replaces the time source and returns the service.
func (s *TaskService) WithClock(clock Clock) *TaskService {
	s.clock = clock
	return s
}

// Today is the current calendar day in the clock's location.
func (s *TaskService) Today() model.Date {
	return model.DateOf(s.clock())
}

func (s *TaskService) Create(ctx context.Context, input TaskInput) (*model.Task, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	typ, err := model.ParseTaskType(input.Type)
	if err != nil {
		return nil, err
	}

	start := input.StartDate
	if start.IsZero() {
		start = s.Today()
	}

	task := model.Task{
		Name:      name,
		Type:      typ,
		StartDate: start,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) Get(ctx context.Context, id uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	return s.taskRepo.ListAll(ctx)
}

func (s *TaskService) ListPending(ctx context.Context) ([]model.Task, error) {
	return s.taskRepo.ListPending(ctx)
}

// Names returns the distinct task names, for pickers.
func (s *TaskService) Names(ctx context.Context) ([]string, error) {
	return s.taskRepo.ListDistinctNames(ctx)
}

func (s *TaskService) FindByName(ctx context.Context, name string) ([]model.Task, error) {
	return s.taskRepo.FindByName(ctx, strings.TrimSpace(name))
}

// Edit changes user-editable fields of one task. It reports whether a row
// with that id existed.
func (s *TaskService) Edit(ctx context.Context, id uint, edit model.TaskEdit) (bool, error) {
	if edit.Empty() {
		return false, ErrNoChanges
	}
	if edit.Name != nil {
		name := strings.TrimSpace(*edit.Name)
		if name == "" {
			return false, ErrEmptyName
		}
		edit.Name = &name
	}
	if edit.Type != nil {
		typ, err := model.ParseTaskType(string(*edit.Type))
		if err != nil {
			return false, err
		}
		edit.Type = &typ
	}

	n, err := s.taskRepo.Update(ctx, id, edit, s.Today())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetStatus runs the completion rules for the task as of today.
func (s *TaskService) SetStatus(ctx context.Context, id uint, done bool) (repository.StatusResult, error) {
	return s.taskRepo.SetStatus(ctx, id, done, s.Today())
}

func (s *TaskService) Complete(ctx context.Context, id uint) (repository.StatusResult, error) {
	return s.SetStatus(ctx, id, true)
}

func (s *TaskService) Uncomplete(ctx context.Context, id uint) (repository.StatusResult, error) {
	return s.SetStatus(ctx, id, false)
}

// Delete removes one task and reports whether it existed.
func (s *TaskService) Delete(ctx context.Context, id uint) (bool, error) {
	n, err := s.taskRepo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByName removes every instance of a task name, history included.
func (s *TaskService) DeleteByName(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptyName
	}
	return s.taskRepo.DeleteByName(ctx, name)
}

func (s *TaskService) Reset(ctx context.Context) (int64, error) {
	n, err := s.taskRepo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}
	return n, nil
}
