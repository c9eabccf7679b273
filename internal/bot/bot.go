package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"dailies/internal/config"
	"dailies/internal/model"
	"dailies/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageType
)

const (
	cbCompletePrefix = "complete:"
	cbUndoPrefix     = "undo:"
)

const (
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Cancel"
	btnGoal          = "🎯 Goal"
	btnNonNegotiable = "🔁 Non-Negotiable"
	menuLabelAdd     = "➕ New task"
	menuLabelTasks   = "📋 Ongoing"
	menuLabelStats   = "🔥 Stats"
	menuLabelHelp    = "ℹ️ Help"
	maxButtonTitle   = 24
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

// sender is the part of the Telegram API the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the Telegram front end of the tracker.
type Bot struct {
	api           *tgbotapi.BotAPI
	out           sender
	taskSvc       *service.TaskService
	summarySvc    *service.SummaryService
	ownerID       int64
	conversations map[int64]*conversationState
	purges        map[int64]string
	mu            sync.Mutex
}

func New(cfg config.Config, taskSvc *service.TaskService, summarySvc *service.SummaryService) (*Bot, error) {
	if err := cfg.RequireBot(); err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, taskSvc, summarySvc, cfg.OwnerID)
	b.api = api
	return b, nil
}

func newBot(out sender, taskSvc *service.TaskService, summarySvc *service.SummaryService, ownerID int64) *Bot {
	return &Bot{
		out:           out,
		taskSvc:       taskSvc,
		summarySvc:    summarySvc,
		ownerID:       ownerID,
		conversations: make(map[int64]*conversationState),
		purges:        make(map[int64]string),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot api is not initialized")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	return b.ownerID == 0 || from.ID == b.ownerID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !b.allowed(msg.From) {
		log.Printf("[info] ignoring message from %d", fromID(msg.From))
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		b.clearConversation(msg.From.ID)
		b.clearPurge(msg.From.ID)
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if name, ok := b.getPurge(msg.From.ID); ok {
		return b.handlePurgeResponse(ctx, msg, name)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /add to create a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return b.handleHelp(msg)
	case "add":
		return b.startAdd(msg)
	case "tasks":
		return b.sendPendingList(ctx, msg.Chat.ID)
	case "all":
		return b.handleAll(ctx, msg)
	case "done":
		return b.handleSetStatus(ctx, msg, true)
	case "undo":
		return b.handleSetStatus(ctx, msg, false)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "purge":
		return b.askPurgeConfirmation(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg.Chat.ID)
	case "cancel":
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "👋 <b>Dailies</b> tracks goals and non-negotiable daily habits.\n\n" +
		"• /add [name] — add a task\n" +
		"• /tasks — ongoing tasks, tap to complete\n" +
		"• /all — every task\n" +
		"• /done &lt;id&gt; — mark a task completed\n" +
		"• /undo &lt;id&gt; — mark a task not completed\n" +
		"• /delete &lt;id&gt; — delete one task\n" +
		"• /purge &lt;name&gt; — delete every task with that name\n" +
		"• /stats — today, streak and recent completions\n" +
		"• /cancel — abort the current dialog"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startAdd(msg *tgbotapi.Message) error {
	state := &conversationState{stage: stageName}
	if name := strings.TrimSpace(msg.CommandArguments()); name != "" {
		state.input.Name = name
		state.stage = stageType
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("What kind of task is «%s»?", escape(name)), typeKeyboard())
	}
	b.setConversation(msg.From.ID, state)
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 What is the task?", tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendText(msg.Chat.ID, "The task needs a name.")
		}
		state.input.Name = text
		state.stage = stageType
		return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("What kind of task is «%s»?", escape(text)), typeKeyboard())
	case stageType:
		typ, ok := parseTypeInput(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick «Goal» or «Non-Negotiable».", typeKeyboard())
		}
		state.input.Type = string(typ)
		b.clearConversation(msg.From.ID)

		task, err := b.taskSvc.Create(ctx, state.input)
		if err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not add the task: %s", escape(err.Error())))
		}
		log.Printf("[info] task created id=%d type=%s", task.ID, task.Type)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Added %s", formatTask(*task)))
	default:
		b.clearConversation(msg.From.ID)
		return nil
	}
}

func (b *Bot) handleAll(ctx context.Context, msg *tgbotapi.Message) error {
	tasks, err := b.taskSvc.List(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "No tasks yet. Add one with /add.")
	}

	var builder strings.Builder
	builder.WriteString("🗂 <b>All tasks</b>\n")
	for _, task := range tasks {
		builder.WriteString(formatTask(task))
		builder.WriteByte('\n')
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) sendPendingList(ctx context.Context, chatID int64) error {
	tasks, err := b.taskSvc.ListPending(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "Nothing pending. Add a task with /add.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Ongoing tasks</b>\nTap a button to mark the task completed.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTask(task))
		builder.WriteByte('\n')
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Name, maxButtonTitle)),
				fmt.Sprintf("%s%d", cbCompletePrefix, task.ID),
			),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.out.Send(msg)
	return err
}

func (b *Bot) handleSetStatus(ctx context.Context, msg *tgbotapi.Message, done bool) error {
	verb := "done"
	if !done {
		verb = "undo"
	}
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Give the task ID: /%s 12", verb))
	}
	taskID, err := parseTaskID(args, "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	return b.setStatusAndReply(ctx, msg.Chat.ID, taskID, done)
}

func (b *Bot) setStatusAndReply(ctx context.Context, chatID int64, taskID uint, done bool) error {
	res, err := b.taskSvc.SetStatus(ctx, taskID, done)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	var text string
	switch {
	case !res.Changed && done:
		text = fmt.Sprintf("Task #%d is already completed.", taskID)
	case !res.Changed:
		text = fmt.Sprintf("Task #%d is already pending.", taskID)
	case done:
		text = fmt.Sprintf("✅ Completed %s", formatTask(res.Task))
	default:
		text = fmt.Sprintf("↩️ Reopened %s", formatTask(res.Task))
	}
	if res.Successor != nil {
		text += fmt.Sprintf("\n🔁 Scheduled for tomorrow: %s", formatTask(*res.Successor))
	}

	if res.Changed && done {
		return b.sendWithReplyMarkup(chatID, text, undoKeyboard(taskID))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give the task ID: /delete 12")
	}
	taskID, err := parseTaskID(args, "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}

	found, err := b.taskSvc.Delete(ctx, taskID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not delete the task: %s", escape(err.Error())))
	}
	if !found {
		return b.sendText(msg.Chat.ID, "Task not found.")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Task #%d deleted.", taskID))
}

func (b *Bot) askPurgeConfirmation(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Give the task name: /purge Meditate")
	}

	rows, err := b.taskSvc.FindByName(ctx, name)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
	if len(rows) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("No task named «%s».", escape(name)))
	}

	b.setPurge(msg.From.ID, name)
	text := fmt.Sprintf("Delete all %d task(s) named «%s», history included?", len(rows), escape(name))
	return b.sendWithReplyMarkup(msg.Chat.ID, text, confirmKeyboard())
}

func (b *Bot) handlePurgeResponse(ctx context.Context, msg *tgbotapi.Message, name string) error {
	text := strings.TrimSpace(msg.Text)
	switch text {
	case btnConfirm:
		b.clearPurge(msg.From.ID)
		n, err := b.taskSvc.DeleteByName(ctx, name)
		if err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not delete: %s", escape(err.Error())))
		}
		log.Printf("[info] purged %d task(s) by name", n)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Deleted %d task(s) named «%s».", n, escape(name)))
	case btnCancel:
		b.clearPurge(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Nothing deleted.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Press «Confirm» or «Cancel».", confirmKeyboard())
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	text, err := b.summarySvc.DailySummary(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not build the summary: %s", escape(err.Error())))
	}
	return b.sendText(chatID, escape(text))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}
	if !b.allowed(cb.From) {
		return nil
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		log.Printf("[info] callback complete task=%s", strings.TrimPrefix(data, cbCompletePrefix))
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.setStatusAndReply(ctx, cb.Message.Chat.ID, taskID, true)
	case strings.HasPrefix(data, cbUndoPrefix):
		log.Printf("[info] callback undo task=%s", strings.TrimPrefix(data, cbUndoPrefix))
		taskID, err := parseTaskID(data, cbUndoPrefix)
		if err != nil {
			return nil
		}
		return b.setStatusAndReply(ctx, cb.Message.Chat.ID, taskID, false)
	default:
		return nil
	}
}

// handleMenuAlias maps menu buttons to commands. Any menu press drops a
// pending purge confirmation.
func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	var run func() error
	switch strings.TrimSpace(msg.Text) {
	case menuLabelAdd:
		run = func() error { return b.startAdd(msg) }
	case menuLabelTasks:
		run = func() error { return b.sendPendingList(ctx, msg.Chat.ID) }
	case menuLabelStats:
		run = func() error { return b.handleStats(ctx, msg.Chat.ID) }
	case menuLabelHelp:
		run = func() error { return b.handleHelp(msg) }
	default:
		return false, nil
	}
	b.clearPurge(msg.From.ID)
	return true, run()
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.conversations[userID]
	return ok && state.stage != stageNone
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) setPurge(userID int64, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purges[userID] = name
}

func (b *Bot) getPurge(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.purges[userID]
	return name, ok
}

func (b *Bot) clearPurge(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.purges, userID)
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(data, prefix))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseTypeInput(text string) (model.TaskType, bool) {
	switch text {
	case btnGoal:
		return model.TaskTypeGoal, true
	case btnNonNegotiable:
		return model.TaskTypeNonNegotiable, true
	}
	typ, err := model.ParseTaskType(text)
	if err != nil {
		return "", false
	}
	return typ, true
}

func fromID(u *tgbotapi.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func formatTask(task model.Task) string {
	icon := "🎯"
	if task.Type.Recurring() {
		icon = "🔁"
	}
	if task.Done() {
		icon = "✅"
	}
	line := fmt.Sprintf("%s <b>#%d</b> %s · from %s", icon, task.ID, escape(task.Name), task.StartDate)
	if task.EndDate != nil {
		line += fmt.Sprintf(" · done %s", task.EndDate)
	}
	return line
}

func typeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnGoal),
			tgbotapi.NewKeyboardButton(btnNonNegotiable),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func undoKeyboard(taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ Undo", fmt.Sprintf("%s%d", cbUndoPrefix, taskID)),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAdd),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStats),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
