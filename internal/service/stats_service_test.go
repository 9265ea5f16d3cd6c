package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TGFaceSwapBot/internal/models"
	"github.com/digkill/TGFaceSwapBot/internal/ratelimit"
)

type fakeUsers struct {
	ids []int64
	err error
}

func (f *fakeUsers) Ensure(_ context.Context, telegramID int64, username, firstName, lastName string) (*models.User, bool, error) {
	for _, id := range f.ids {
		if id == telegramID {
			return &models.User{TelegramID: telegramID, Username: username, FirstName: firstName, LastName: lastName}, false, nil
		}
	}
	f.ids = append(f.ids, telegramID)
	return &models.User{TelegramID: telegramID, Username: username, FirstName: firstName, LastName: lastName}, true, nil
}

func (f *fakeUsers) ListTelegramIDs(context.Context) ([]int64, error) {
	return f.ids, f.err
}

func (f *fakeUsers) Count(context.Context) (int, error) {
	return len(f.ids), f.err
}

type fakeSwapCounter struct {
	day time.Time
}

func (f *fakeSwapCounter) CountForDay(_ context.Context, day time.Time) (int, error) {
	f.day = day
	return 7, nil
}

type fakeSender struct {
	sent []int64
	fail map[int64]bool
}

func (f *fakeSender) SendText(chatID int64, _ string) error {
	if f.fail[chatID] {
		return errors.New("bot was blocked by the user")
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func TestStatsCollect(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)
	store := ratelimit.NewMemoryStore()
	_, _ = store.ConsumeIfBelow(ctx, 1, "2026-03-14", 5)
	_, _ = store.ConsumeIfBelow(ctx, 2, "2026-03-13", 5)
	swaps := &fakeSwapCounter{}

	stats, err := NewStatsService(&fakeUsers{ids: []int64{1, 2, 3}}, store, swaps, clock).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{TotalUsers: 3, ActiveToday: 1, SwapsToday: 7}, stats)
	assert.Equal(t, testNow, swaps.day)
}

func TestStatsCollectError(t *testing.T) {
	users := &fakeUsers{err: errors.New("db down")}
	_, err := NewStatsService(users, ratelimit.NewMemoryStore(), &fakeSwapCounter{}, clockwork.NewFakeClock()).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats total users")
}

func TestBroadcastSkipsFailures(t *testing.T) {
	sender := &fakeSender{fail: map[int64]bool{2: true}}
	users := NewUserService(&fakeUsers{ids: []int64{1, 2, 3}})
	svc := NewBroadcastService(slog.New(slog.NewTextHandler(io.Discard, nil)), users, sender)

	res, err := svc.Broadcast(context.Background(), "  new filters are live  ")
	require.NoError(t, err)
	assert.Equal(t, BroadcastResult{Sent: 2, Total: 3}, res)
	assert.Equal(t, []int64{1, 3}, sender.sent)
}

func TestBroadcastRejectsEmpty(t *testing.T) {
	svc := NewBroadcastService(slog.New(slog.NewTextHandler(io.Discard, nil)), NewUserService(&fakeUsers{}), &fakeSender{})
	_, err := svc.Broadcast(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyBroadcast)
}

func TestUserServiceEnsure(t *testing.T) {
	svc := NewUserService(&fakeUsers{})
	_, created, err := svc.Ensure(context.Background(), 10, "u", "F", "L")
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = svc.Ensure(context.Background(), 10, "u", "F", "L")
	require.NoError(t, err)
	assert.False(t, created)
}
