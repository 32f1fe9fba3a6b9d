// Package location provides the user positions the proximity monitor polls.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"taska/internal/geo"
	"taska/internal/model"
)

// Latest remembers the most recently reported position. Reports older than
// maxAge are treated as unavailable; maxAge <= 0 keeps them forever.
type Latest struct {
	maxAge time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	point    geo.Point
	reported time.Time
	ok       bool
}

func NewLatest(maxAge time.Duration) *Latest {
	return &Latest{maxAge: maxAge, now: time.Now}
}

// Update records a position reported at the given time.
func (l *Latest) Update(p geo.Point, at time.Time) error {
	if !p.Valid() {
		return errors.New("coordinates out of range")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ok && at.Before(l.reported) {
		return nil
	}
	l.point, l.reported, l.ok = p, at, true
	return nil
}

func (l *Latest) CurrentPosition(ctx context.Context) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.ok {
		return geo.Point{}, model.ErrLocationUnavailable
	}
	if l.maxAge > 0 && l.now().Sub(l.reported) > l.maxAge {
		return geo.Point{}, model.ErrLocationUnavailable
	}
	return l.point, nil
}

// Static always reports the same point.
type Static geo.Point

func (s Static) CurrentPosition(ctx context.Context) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	return geo.Point(s), nil
}

// Provider is implemented by every position source.
type Provider interface {
	CurrentPosition(ctx context.Context) (geo.Point, error)
}

// Fallback asks Primary first and uses Secondary when the primary has nothing.
type Fallback struct {
	Primary   Provider
	Secondary Provider
}

func (f Fallback) CurrentPosition(ctx context.Context) (geo.Point, error) {
	p, err := f.Primary.CurrentPosition(ctx)
	if err == nil || ctx.Err() != nil {
		return p, err
	}
	return f.Secondary.CurrentPosition(ctx)
}
