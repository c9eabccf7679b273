package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailies/internal/model"
	"dailies/internal/repository"
	"dailies/internal/service"
)

const (
	testChatID = int64(100)
	testUserID = int64(7)
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func setupBotTest(t *testing.T, ownerID int64) (*Bot, *fakeSender, *service.TaskService) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB("file:bot_" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })

	clock := func() time.Time { return time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC) }
	repo := repository.NewTaskRepository(db)
	tasks := service.NewTaskService(repo).WithClock(clock)
	stats := service.NewStatsService(repo).WithClock(clock)

	out := &fakeSender{}
	return newBot(out, tasks, service.NewSummaryService(tasks, stats), ownerID), out, tasks
}

func textMessage(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChatID, Type: "private"},
		From: &tgbotapi.User{ID: testUserID},
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func send(t *testing.T, b *Bot, text string) {
	t.Helper()
	b.handleUpdate(context.Background(), tgbotapi.Update{Message: textMessage(text)})
}

func TestAddConversation(t *testing.T) {
	b, out, tasks := setupBotTest(t, 0)

	send(t, b, "/add")
	assert.Contains(t, out.last(t).Text, "What is the task?")

	send(t, b, "Meditate")
	assert.Contains(t, out.last(t).Text, "What kind of task")

	send(t, b, "sometimes")
	assert.Contains(t, out.last(t).Text, "Pick")

	send(t, b, btnNonNegotiable)
	assert.Contains(t, out.last(t).Text, "Added")

	rows, err := tasks.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Meditate", rows[0].Name)
	assert.Equal(t, model.TaskTypeNonNegotiable, rows[0].Type)
	assert.False(t, b.hasConversation(testUserID))
}

func TestAddWithNameArgument(t *testing.T) {
	b, out, tasks := setupBotTest(t, 0)

	send(t, b, "/add Ship feature")
	assert.Contains(t, out.last(t).Text, "Ship feature")

	send(t, b, "goal")
	rows, err := tasks.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.TaskTypeGoal, rows[0].Type)
}

func TestDoneAndUndoCommands(t *testing.T) {
	b, out, tasks := setupBotTest(t, 0)
	ctx := context.Background()

	task, err := tasks.Create(ctx, service.TaskInput{Name: "Meditate", Type: "nn"})
	require.NoError(t, err)

	send(t, b, "/done")
	assert.Contains(t, out.last(t).Text, "Give the task ID")

	send(t, b, "/done x")
	assert.Contains(t, out.last(t).Text, "must be a number")

	send(t, b, "/done 1")
	reply := out.last(t)
	assert.Contains(t, reply.Text, "Completed")
	assert.Contains(t, reply.Text, "Scheduled for tomorrow")
	assert.Contains(t, reply.Text, "2024-01-02")
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, reply.ReplyMarkup)

	send(t, b, "/done 1")
	assert.Contains(t, out.last(t).Text, "already completed")

	send(t, b, "/undo 1")
	assert.Contains(t, out.last(t).Text, "Reopened")

	stored, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.Status)
	assert.Nil(t, stored.EndDate)

	send(t, b, "/done 99")
	assert.Equal(t, "Task not found.", out.last(t).Text)
}

func TestPendingListAndCallback(t *testing.T) {
	b, out, tasks := setupBotTest(t, 0)
	ctx := context.Background()

	send(t, b, "/tasks")
	assert.Contains(t, out.last(t).Text, "Nothing pending")

	task, err := tasks.Create(ctx, service.TaskInput{Name: "Read <b>book</b>", Type: "goal"})
	require.NoError(t, err)

	send(t, b, menuLabelTasks)
	list := out.last(t)
	assert.Contains(t, list.Text, "Read &lt;b&gt;book&lt;/b&gt;")
	markup, ok := list.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	data := markup.InlineKeyboard[0][0].CallbackData
	require.NotNil(t, data)
	assert.Equal(t, "complete:1", *data)

	b.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUserID},
		Message: textMessage(""),
		Data:    *data,
	}})
	assert.Equal(t, 1, out.requests)

	stored, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status)
}

func TestDeleteAndPurge(t *testing.T) {
	b, out, tasks := setupBotTest(t, 0)
	ctx := context.Background()

	task, err := tasks.Create(ctx, service.TaskInput{Name: "Meditate", Type: "nn"})
	require.NoError(t, err)
	_, err = tasks.Complete(ctx, task.ID)
	require.NoError(t, err)
	other, err := tasks.Create(ctx, service.TaskInput{Name: "Read", Type: "goal"})
	require.NoError(t, err)

	send(t, b, "/delete 99")
	assert.Equal(t, "Task not found.", out.last(t).Text)

	send(t, b, "/delete 3")
	assert.Contains(t, out.last(t).Text, "deleted")
	_, err = tasks.Get(ctx, other.ID)
	assert.Error(t, err)

	send(t, b, "/purge Meditate")
	assert.Contains(t, out.last(t).Text, "Delete all 2 task(s)")

	send(t, b, "maybe")
	assert.Contains(t, out.last(t).Text, "Confirm")

	send(t, b, btnCancel)
	assert.Equal(t, "Nothing deleted.", out.last(t).Text)

	send(t, b, "/purge Meditate")
	send(t, b, btnConfirm)
	assert.Contains(t, out.last(t).Text, "Deleted 2 task(s)")

	rows, err := tasks.FindByName(ctx, "Meditate")
	require.NoError(t, err)
	assert.Empty(t, rows)

	send(t, b, "/purge Meditate")
	assert.Contains(t, out.last(t).Text, "No task named")
}

func TestMenuAliasDropsPendingPurge(t *testing.T) {
	labels := map[string]string{
		"add":   menuLabelAdd,
		"tasks": menuLabelTasks,
		"stats": menuLabelStats,
		"help":  menuLabelHelp,
	}
	for name, label := range labels {
		t.Run(name, func(t *testing.T) {
			b, out, tasks := setupBotTest(t, 0)
			ctx := context.Background()

			_, err := tasks.Create(ctx, service.TaskInput{Name: "Meditate", Type: "nn"})
			require.NoError(t, err)

			send(t, b, "/purge Meditate")
			_, pending := b.getPurge(testUserID)
			require.True(t, pending)

			send(t, b, label)
			_, pending = b.getPurge(testUserID)
			assert.False(t, pending)

			b.clearConversation(testUserID)
			send(t, b, btnConfirm)
			assert.NotContains(t, out.last(t).Text, "Deleted")

			rows, err := tasks.FindByName(ctx, "Meditate")
			require.NoError(t, err)
			assert.Len(t, rows, 1)
		})
	}
}

func TestStatsAndAll(t *testing.T) {
	b, out, tasks := setupBotTest(t, 0)
	ctx := context.Background()

	send(t, b, "/all")
	assert.Contains(t, out.last(t).Text, "No tasks yet")

	task, err := tasks.Create(ctx, service.TaskInput{Name: "Stretch", Type: "goal"})
	require.NoError(t, err)
	_, err = tasks.Complete(ctx, task.ID)
	require.NoError(t, err)

	send(t, b, "/all")
	assert.Contains(t, out.last(t).Text, "Stretch")

	send(t, b, "/stats")
	text := out.last(t).Text
	assert.Contains(t, text, "Completed today: 1")
	assert.Contains(t, text, "Current streak: 1 day")
}

func TestOwnerFilter(t *testing.T) {
	b, out, _ := setupBotTest(t, 555)

	send(t, b, "/help")
	assert.Empty(t, out.sent)

	b.ownerID = testUserID
	send(t, b, "/help")
	assert.Len(t, out.sent, 1)
}

func TestGroupChatsAreIgnored(t *testing.T) {
	b, out, _ := setupBotTest(t, 0)

	msg := textMessage("/help")
	msg.Chat.Type = "group"
	b.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	assert.Empty(t, out.sent)
}

func TestUnknownInput(t *testing.T) {
	b, out, _ := setupBotTest(t, 0)

	send(t, b, "hello")
	assert.Contains(t, out.last(t).Text, "I did not get that")

	send(t, b, "/frobnicate")
	assert.Contains(t, out.last(t).Text, "Unknown command")
}

func TestHelpers(t *testing.T) {
	id, err := parseTaskID("complete:42", cbCompletePrefix)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = parseTaskID("complete:x", cbCompletePrefix)
	assert.Error(t, err)

	assert.Equal(t, "short", shortTitle("short", 10))
	assert.Equal(t, "abcd…", shortTitle("abcdefgh", 5))

	typ, ok := parseTypeInput(btnGoal)
	assert.True(t, ok)
	assert.Equal(t, model.TaskTypeGoal, typ)
	_, ok = parseTypeInput("later")
	assert.False(t, ok)

	end := model.NewDate(2024, time.January, 2)
	line := formatTask(model.Task{ID: 3, Name: "A&B", Type: model.TaskTypeGoal, Status: true, StartDate: model.NewDate(2024, time.January, 1), EndDate: &end})
	assert.Equal(t, "✅ <b>#3</b> A&amp;B · from 2024-01-01 · done 2024-01-02", line)
}
