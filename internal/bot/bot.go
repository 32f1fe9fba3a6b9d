package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"taska/internal/geo"
	"taska/internal/model"
	"taska/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancelPrefix   = "cancel:"
)

const (
	menuLabelTasks  = "📋 Tasks"
	menuLabelNearby = "📍 Nearby"
	menuLabelHelp   = "ℹ️ Help"
)

// Members is the roster access the bot needs to map chats to team members.
type Members interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (model.TeamMember, error)
	LinkTelegram(ctx context.Context, id string, telegramID int64) error
}

// PositionUpdater receives location reports from chats.
type PositionUpdater interface {
	Update(p geo.Point, at time.Time) error
}

// NearbyLister exposes the proximity monitor's current view.
type NearbyLister interface {
	Nearby() []model.Task
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api       *tgbotapi.BotAPI
	members   Members
	taskSvc   *service.TaskService
	positions PositionUpdater
	nearby    NearbyLister
	log       logrus.FieldLogger
}

func New(api *tgbotapi.BotAPI, members Members, taskSvc *service.TaskService, positions PositionUpdater, nearby NearbyLister, log logrus.FieldLogger) *Bot {
	log.WithField("account", api.Self.UserName).Info("bot authorized")
	return &Bot{
		api:       api,
		members:   members,
		taskSvc:   taskSvc,
		positions: positions,
		nearby:    nearby,
		log:       log,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.WithError(err).Warn("handle callback")
			}
		case update.EditedMessage != nil && update.EditedMessage.Location != nil:
			// Live location arrives as edits of the original message.
			if _, _, err := b.handleLocation(ctx, update.EditedMessage); err != nil {
				b.log.WithError(err).Warn("handle live location")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.WithError(err).Warn("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.Location != nil {
		return b.handleSharedLocation(ctx, msg)
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"from": msg.From.ID, "command": msg.Command()}).Info("command")
		return b.handleCommand(ctx, msg)
	}

	switch strings.ToLower(strings.TrimSpace(msg.Text)) {
	case strings.ToLower(menuLabelTasks):
		return b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelNearby):
		return b.handleNearby(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return b.handleHelp(msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /tasks or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "nearby":
		return b.handleNearby(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if memberID := strings.TrimSpace(msg.CommandArguments()); memberID != "" {
		if err := b.members.LinkTelegram(ctx, memberID, msg.From.ID); err != nil {
			switch {
			case errors.Is(err, model.ErrNotFound):
				return b.sendText(msg.Chat.ID, "No team member with that id.")
			case errors.Is(err, model.ErrAlreadyLinked):
				b.log.WithFields(logrus.Fields{"member_id": memberID, "telegram_id": msg.From.ID}).Warn("link refused")
				return b.sendText(msg.Chat.ID, "That member is already linked to another chat.")
			}
			return err
		}
		b.log.WithFields(logrus.Fields{"member_id": memberID, "telegram_id": msg.From.ID}).Info("chat linked")
	}

	member, err := b.members.FindByTelegramID(ctx, msg.From.ID)
	if errors.Is(err, model.ErrNotFound) {
		text := fmt.Sprintf(
			"👋 Hi! This chat is not linked to a team member yet.\n"+
				"Ask an admin for your member id and send <code>/start &lt;member-id&gt;</code>.\n\n"+
				"Your Telegram id: <code>%d</code>",
			msg.From.ID,
		)
		return b.sendText(msg.Chat.ID, text)
	}
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your team's tasks close to where they happen.</b>\n\n"+
			"Share your location and I will tell you when a task is nearby.\n\n%s",
		escape(member.Name), helpText,
	)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Commands:\n" +
	"• /tasks · open tasks grouped by location\n" +
	"• /nearby · tasks around your last shared location\n" +
	"• /complete &lt;id&gt; · mark a task done\n" +
	"• /delete &lt;id&gt; · delete a task and its repeats\n" +
	"• /help · this message"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText)
}

// handleLocation feeds a location report from a linked member to the provider.
func (b *Bot) handleLocation(ctx context.Context, msg *tgbotapi.Message) (model.TeamMember, geo.Point, error) {
	if msg.From == nil {
		return model.TeamMember{}, geo.Point{}, nil
	}
	member, err := b.members.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return model.TeamMember{}, geo.Point{}, err
	}
	p := geo.Point{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	at := msg.Time()
	if msg.EditDate != 0 {
		at = time.Unix(int64(msg.EditDate), 0)
	}
	if err := b.positions.Update(p, at); err != nil {
		return model.TeamMember{}, geo.Point{}, err
	}
	b.log.WithFields(logrus.Fields{"member_id": member.ID, "lat": p.Latitude, "lon": p.Longitude}).Debug("location updated")
	return member, p, nil
}

func (b *Bot) handleSharedLocation(ctx context.Context, msg *tgbotapi.Message) error {
	actor, p, err := b.handleLocation(ctx, msg)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return b.sendText(msg.Chat.ID, "This chat is not linked yet. Send <code>/start &lt;member-id&gt;</code>.")
	case err != nil:
		return b.sendError(msg.Chat.ID, err)
	}

	tasks, err := b.teamTasks(ctx, actor)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	tasks = service.FindNearby(tasks, p, service.DefaultSearchRadius)
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "📍 Location updated. Nothing to do around here.")
	}
	service.SortByDue(tasks)
	return b.sendTaskList(msg.Chat.ID, actor, "📍 <b>Tasks around you</b>", tasks)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	actor, ok, err := b.actor(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return err
	}
	tasks, err := b.teamTasks(ctx, actor)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	tasks = service.FilterTasks(tasks, service.FilterActive)
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "No open tasks. Nice work!")
	}
	service.SortByDue(tasks)
	return b.sendTaskList(msg.Chat.ID, actor, "📋 <b>Open tasks</b>", tasks)
}

func (b *Bot) handleNearby(ctx context.Context, msg *tgbotapi.Message) error {
	actor, ok, err := b.actor(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return err
	}
	var tasks []model.Task
	for _, task := range b.nearby.Nearby() {
		if task.TeamID == actor.TeamID {
			tasks = append(tasks, task)
		}
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing nearby. Share your location to refresh.")
	}
	return b.sendTaskList(msg.Chat.ID, actor, "📍 <b>Nearby tasks</b>", tasks)
}

func (b *Bot) sendTaskList(chatID int64, actor model.TeamMember, title string, tasks []model.Task) error {
	groups := service.GroupByLocation(tasks)
	text := formatTaskList(title, groups, time.Now())

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		var row []tgbotapi.InlineKeyboardButton
		if service.Can(actor.Role, service.ActionComplete) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s #%s · %s", iconDone, shortID(task.ID), shortTitle(task.Title, 20)), cbCompletePrefix+task.ID))
		}
		if service.Can(actor.Role, service.ActionDelete) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbDeletePrefix+task.ID))
		}
		if len(row) > 0 {
			buttons = append(buttons, row)
		}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	actor, ok, err := b.actor(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return err
	}
	task, ok, err := b.lookupTask(ctx, msg.Chat.ID, actor, msg.CommandArguments(), "/complete 3f2a9c1e")
	if !ok {
		return err
	}
	return b.completeTask(ctx, msg.Chat.ID, actor, task.ID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	actor, ok, err := b.actor(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return err
	}
	task, ok, err := b.lookupTask(ctx, msg.Chat.ID, actor, msg.CommandArguments(), "/delete 3f2a9c1e")
	if !ok {
		return err
	}
	return b.deleteTask(ctx, msg.Chat.ID, actor, task.ID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Debug("callback ack")
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.WithFields(logrus.Fields{"from": cb.From.ID, "data": data}).Info("callback")

	actor, ok, err := b.actor(ctx, chatID, cb.From)
	if !ok {
		return err
	}

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		return b.completeTask(ctx, chatID, actor, strings.TrimPrefix(data, cbCompletePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askDeleteConfirmation(ctx, chatID, actor, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbConfirmPrefix):
		return b.deleteTask(ctx, chatID, actor, strings.TrimPrefix(data, cbConfirmPrefix))
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendText(chatID, "↩️ Cancelled.")
	default:
		return nil
	}
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, actor model.TeamMember, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err == nil && task.TeamID != actor.TeamID {
		err = model.ErrNotFound
	}
	if err != nil {
		return b.sendError(chatID, err)
	}
	text := fmt.Sprintf("Delete \"%s\"?", escape(normalizeTitle(task.Title)))
	if task.IsTemplate() {
		text += "\nEvery repeat of this task goes with it."
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Delete", cbConfirmPrefix+task.ID),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancelPrefix+task.ID),
	))
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, actor model.TeamMember, taskID string) error {
	task, err := b.taskSvc.CompleteTask(ctx, actor, taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	text := fmt.Sprintf("%s \"%s\" is done.", iconDone, escape(normalizeTitle(task.Title)))
	if task.IsRecurring() {
		text += "\n" + iconRecurring + " The next occurrence is on the list."
	}
	return b.sendText(chatID, text)
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, actor model.TeamMember, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	removed, err := b.taskSvc.DeleteTask(ctx, actor, taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	text := fmt.Sprintf("🗑 \"%s\" deleted.", escape(normalizeTitle(task.Title)))
	if len(removed) > 1 {
		text += fmt.Sprintf(" %d repeats removed too.", len(removed)-1)
	}
	return b.sendText(chatID, text)
}

// actor maps a chat user to a team member. ok is false when the reply was
// already sent (or sending it failed, reported in err).
func (b *Bot) actor(ctx context.Context, chatID int64, from *tgbotapi.User) (model.TeamMember, bool, error) {
	member, err := b.members.FindByTelegramID(ctx, from.ID)
	if errors.Is(err, model.ErrNotFound) {
		return model.TeamMember{}, false, b.sendText(chatID, "This chat is not linked yet. Send <code>/start &lt;member-id&gt;</code>.")
	}
	if err != nil {
		return model.TeamMember{}, false, err
	}
	return member, true, nil
}

func (b *Bot) teamTasks(ctx context.Context, actor model.TeamMember) ([]model.Task, error) {
	all, err := b.taskSvc.List(ctx)
	if err != nil {
		return nil, err
	}
	tasks := all[:0]
	for _, task := range all {
		if task.TeamID == actor.TeamID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// lookupTask resolves a full id or a unique id prefix among the actor's tasks.
func (b *Bot) lookupTask(ctx context.Context, chatID int64, actor model.TeamMember, raw, usage string) (model.Task, bool, error) {
	prefix := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if prefix == "" {
		return model.Task{}, false, b.sendText(chatID, "Add the task id: "+usage)
	}
	tasks, err := b.teamTasks(ctx, actor)
	if err != nil {
		return model.Task{}, false, err
	}
	task, err := matchTask(tasks, prefix)
	if err != nil {
		return model.Task{}, false, b.sendError(chatID, err)
	}
	return task, true, nil
}

var errAmbiguousID = errors.New("ambiguous task id")

func matchTask(tasks []model.Task, prefix string) (model.Task, error) {
	var found []model.Task
	for _, task := range tasks {
		if task.ID == prefix {
			return task, nil
		}
		if strings.HasPrefix(task.ID, prefix) {
			found = append(found, task)
		}
	}
	switch len(found) {
	case 0:
		return model.Task{}, model.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return model.Task{}, errAmbiguousID
	}
}

func (b *Bot) sendError(chatID int64, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return b.sendText(chatID, "Task not found.")
	case errors.Is(err, errAmbiguousID):
		return b.sendText(chatID, "Several tasks match that id. Use more characters.")
	case errors.Is(err, model.ErrPermissionDenied):
		return b.sendText(chatID, "⛔ Your role does not allow that.")
	default:
		return b.sendText(chatID, fmt.Sprintf("Something went wrong: %s", escape(err.Error())))
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButtonLocation(menuLabelNearby),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
