package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"taska/internal/model"
)

// NotificationSink presents notifications. Implementations live outside the core.
type NotificationSink interface {
	Notify(ctx context.Context, n model.Notification) error
}

// LogSink writes notifications to the log.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Notify(_ context.Context, n model.Notification) error {
	entry := s.Log.WithFields(logrus.Fields{
		"kind":      n.Kind,
		"task_id":   n.TaskID,
		"assignees": strings.Join(n.AssigneeNames, ", "),
		"location":  n.Location,
	})
	if n.DueDate != nil {
		entry = entry.WithField("due", n.DueDate.Format("2006-01-02"))
	}
	entry.Info(n.Title)
	return nil
}

// MultiSink fans a notification out to every sink and joins their errors.
type MultiSink []NotificationSink

func (m MultiSink) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BreakerSink guards a remote sink with a circuit breaker so a dead transport
// fails fast instead of stalling every reconcile.
type BreakerSink struct {
	next NotificationSink
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSink(name string, next NotificationSink, log logrus.FieldLogger) *BreakerSink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return &BreakerSink{next: next, cb: cb}
}

func (b *BreakerSink) Notify(ctx context.Context, n model.Notification) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Notify(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.TaskID, err)
	}
	return nil
}

// State exposes the breaker state.
func (b *BreakerSink) State() gobreaker.State {
	return b.cb.State()
}
