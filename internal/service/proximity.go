package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"taska/internal/geo"
	"taska/internal/model"
)

// DefaultGeofenceRadius applies to task locations without a radius.
const DefaultGeofenceRadius = 300.0

// ErrMonitorStopped is returned by Tick after Stop.
var ErrMonitorStopped = errors.New("proximity monitor stopped")

// TaskLister is the read side of the task store.
type TaskLister interface {
	List(ctx context.Context) ([]model.Task, error)
}

// PositionProvider reports where the user currently is.
type PositionProvider interface {
	CurrentPosition(ctx context.Context) (geo.Point, error)
}

// ProximityMonitor checks active task geofences against the user position on
// every tick and calls onEnter once per entry into a geofence.
type ProximityMonitor struct {
	tasks     TaskLister
	positions PositionProvider
	onEnter   func(model.Task)
	radius    float64
	log       logrus.FieldLogger

	// tickMu serializes ticks; Stop takes it to wait out an in-flight tick.
	tickMu sync.Mutex
	// stateMu guards the fields below.
	stateMu sync.RWMutex
	// inside is rebuilt from the current active set on every tick, so tasks
	// that were deleted or completed never linger in it.
	inside map[string]bool
	nearby []model.Task

	stopped  atomic.Bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	sched    *SchedulerService
	entry    cron.EntryID
}

// NewProximityMonitor builds a monitor. radius <= 0 selects DefaultGeofenceRadius.
func NewProximityMonitor(tasks TaskLister, positions PositionProvider, radius float64, onEnter func(model.Task), log logrus.FieldLogger) *ProximityMonitor {
	if radius <= 0 {
		radius = DefaultGeofenceRadius
	}
	if onEnter == nil {
		onEnter = func(model.Task) {}
	}
	return &ProximityMonitor{
		tasks:     tasks,
		positions: positions,
		onEnter:   onEnter,
		radius:    radius,
		log:       log,
		inside:    make(map[string]bool),
	}
}

// Tick runs one evaluation. When the position is unavailable the tick is
// skipped and the previous nearby set is kept.
func (m *ProximityMonitor) Tick(ctx context.Context) error {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	if m.stopped.Load() {
		return ErrMonitorStopped
	}

	tasks, err := m.tasks.List(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	user, err := m.positions.CurrentPosition(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !errors.Is(err, model.ErrLocationUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrLocationUnavailable, err)
		}
		return err
	}

	active := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Completed && t.HasCoordinates() {
			active = append(active, t)
		}
	}

	entered, nearby := m.evaluate(user, active)

	for _, t := range entered {
		if m.stopped.Load() {
			return ErrMonitorStopped
		}
		m.onEnter(t)
	}
	m.log.WithFields(logrus.Fields{"nearby": len(nearby), "entered": len(entered)}).Debug("proximity tick")
	return nil
}

func (m *ProximityMonitor) evaluate(user geo.Point, active []model.Task) (entered, nearby []model.Task) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	current := make(map[string]bool, len(active))
	for _, t := range active {
		radius := t.Location.Radius
		if radius <= 0 {
			radius = m.radius
		}
		if !geo.WithinRadius(user, *t.Location.Coordinates, radius) {
			continue
		}
		current[t.ID] = true
		nearby = append(nearby, t)
		if !m.inside[t.ID] {
			entered = append(entered, t)
		}
	}
	m.inside = current
	m.nearby = nearby
	return entered, nearby
}

// Nearby returns the active tasks inside their geofence as of the last successful tick.
func (m *ProximityMonitor) Nearby() []model.Task {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]model.Task, len(m.nearby))
	copy(out, m.nearby)
	return out
}

// Start registers the periodic tick on sched. ctx bounds every tick.
func (m *ProximityMonitor) Start(ctx context.Context, sched *SchedulerService, interval time.Duration) error {
	if m.stopped.Load() {
		return ErrMonitorStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	entry, err := sched.ScheduleInterval(interval, func() {
		tickCtx, done := context.WithTimeout(ctx, interval)
		defer done()
		err := m.Tick(tickCtx)
		switch {
		case err == nil, errors.Is(err, ErrMonitorStopped), errors.Is(err, context.Canceled):
		case errors.Is(err, model.ErrLocationUnavailable):
			m.log.WithError(err).Warn("proximity tick skipped")
		default:
			m.log.WithError(err).Error("proximity tick failed")
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule proximity monitor: %w", err)
	}
	m.cancel = cancel
	m.sched = sched
	m.entry = entry
	return nil
}

// Stop cancels the monitor. No onEnter call happens after Stop returns.
// Calling it again is a no-op.
func (m *ProximityMonitor) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		if m.cancel != nil {
			m.cancel()
		}
		if m.sched != nil {
			m.sched.Remove(m.entry)
		}
		// Wait for a tick that was already running.
		m.tickMu.Lock()
		m.tickMu.Unlock()
	})
}

// NearbyNotification describes a geofence entry for the notification sink.
func NearbyNotification(t model.Task, now time.Time) model.Notification {
	n := instanceNotification(t, now)
	n.Kind = model.NotificationNearby
	return n
}
