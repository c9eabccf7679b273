package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dailies/internal/model"
)

// newTestDB opens a private in-memory database for one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDB("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = Close(db)
	})
	return db
}

func newTestRepo(t *testing.T) *TaskRepository {
	t.Helper()
	return NewTaskRepository(newTestDB(t))
}

func day(y int, m time.Month, d int) model.Date {
	return model.NewDate(y, m, d)
}

func mustCreate(t *testing.T, repo *TaskRepository, name string, typ model.TaskType, start model.Date) model.Task {
	t.Helper()

	task := model.Task{Name: name, Type: typ, StartDate: start}
	require.NoError(t, repo.Create(context.Background(), &task))
	return task
}

func mustComplete(t *testing.T, repo *TaskRepository, id uint, on model.Date) StatusResult {
	t.Helper()

	res, err := repo.SetStatus(context.Background(), id, true, on)
	require.NoError(t, err)
	return res
}
