package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/digkill/TGFaceSwapBot/internal/models"
	"github.com/digkill/TGFaceSwapBot/internal/ratelimit"
)

// ActivityCounter counts users with a usage record dated day.
type ActivityCounter interface {
	CountActive(ctx context.Context, day string) (int, error)
}

type SwapCounter interface {
	CountForDay(ctx context.Context, day time.Time) (int, error)
}

type StatsService struct {
	users    UserStore
	activity ActivityCounter
	swaps    SwapCounter
	clock    clockwork.Clock
}

func NewStatsService(users UserStore, activity ActivityCounter, swaps SwapCounter, clock clockwork.Clock) *StatsService {
	return &StatsService{users: users, activity: activity, swaps: swaps, clock: clock}
}

func (s *StatsService) Collect(ctx context.Context) (models.Stats, error) {
	now := s.clock.Now().UTC()

	total, err := s.users.Count(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("stats total users: %w", err)
	}
	active, err := s.activity.CountActive(ctx, ratelimit.Day(now))
	if err != nil {
		return models.Stats{}, fmt.Errorf("stats active users: %w", err)
	}
	swaps, err := s.swaps.CountForDay(ctx, now)
	if err != nil {
		return models.Stats{}, fmt.Errorf("stats swaps: %w", err)
	}
	return models.Stats{TotalUsers: total, ActiveToday: active, SwapsToday: swaps}, nil
}
