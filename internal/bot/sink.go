package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"taska/internal/model"
)

// Sender is the part of the Telegram API the sink needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// MemberLister reads the roster.
type MemberLister interface {
	List(ctx context.Context) ([]model.TeamMember, error)
}

// Sink delivers notifications to the linked chats of the assignees.
// Unassigned tasks go to every linked member of the team.
type Sink struct {
	api     Sender
	members MemberLister
	log     logrus.FieldLogger
}

func NewSink(api Sender, members MemberLister, log logrus.FieldLogger) *Sink {
	return &Sink{api: api, members: members, log: log}
}

func (s *Sink) Notify(ctx context.Context, n model.Notification) error {
	members, err := s.members.List(ctx)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	chats := recipients(n, members)
	if len(chats) == 0 {
		s.log.WithField("task_id", n.TaskID).Debug("no linked chat for notification")
		return nil
	}

	text := formatNotification(n)
	var errs []error
	for _, chatID := range chats {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := s.api.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func recipients(n model.Notification, members []model.TeamMember) []int64 {
	want := make(map[string]bool, len(n.AssigneeIDs))
	for _, id := range n.AssigneeIDs {
		want[id] = true
	}
	var chats []int64
	seen := make(map[int64]bool)
	for _, m := range members {
		if m.TelegramID == 0 || seen[m.TelegramID] {
			continue
		}
		if len(want) > 0 && !want[m.ID] {
			continue
		}
		if len(want) == 0 && m.TeamID != n.TeamID {
			continue
		}
		seen[m.TelegramID] = true
		chats = append(chats, m.TelegramID)
	}
	return chats
}
