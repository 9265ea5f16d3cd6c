package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/digkill/TGFaceSwapBot/internal/models"
)

const DefaultDailyLimit = 5

// Store persists usage records. ConsumeIfBelow must be atomic per user: it resets a
// record dated before day, then increments the count only while it is below limit.
type Store interface {
	ConsumeIfBelow(ctx context.Context, userID int64, day string, limit int) (bool, error)
	Get(ctx context.Context, userID int64) (*models.UsageRecord, error)
}

// Limiter caps swap attempts per user per calendar day (UTC).
type Limiter struct {
	store Store
	clock clockwork.Clock
	limit int
}

func NewLimiter(store Store, clock clockwork.Clock, limit int) *Limiter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{store: store, clock: clock, limit: limit}
}

func (l *Limiter) Limit() int {
	return l.limit
}

// TryConsume takes one unit of today's quota. It returns false without mutating
// anything when the user already reached the limit for that day.
func (l *Limiter) TryConsume(ctx context.Context, userID int64, today time.Time) (bool, error) {
	ok, err := l.store.ConsumeIfBelow(ctx, userID, Day(today), l.limit)
	if err != nil {
		return false, fmt.Errorf("consume quota: %w", err)
	}
	return ok, nil
}

// Allow is TryConsume for the current day of the limiter's clock.
func (l *Limiter) Allow(ctx context.Context, userID int64) (bool, error) {
	return l.TryConsume(ctx, userID, l.clock.Now())
}

// Remaining reports how many attempts the user has left today.
func (l *Limiter) Remaining(ctx context.Context, userID int64) (int, error) {
	rec, err := l.store.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get usage: %w", err)
	}
	if rec == nil || rec.Date != l.Today() {
		return l.limit, nil
	}
	return max(l.limit-rec.Count, 0), nil
}

func (l *Limiter) Today() string {
	return Day(l.clock.Now())
}

// Day formats t as the UTC calendar day used to key usage records.
func Day(t time.Time) string {
	return t.UTC().Format(models.DateLayout)
}
