package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/digkill/TGFaceSwapBot/internal/metrics"
)

var ErrEmptyBroadcast = errors.New("broadcast message is empty")

type MessageSender interface {
	SendText(chatID int64, text string) error
}

type BroadcastResult struct {
	Sent  int `json:"sent"`
	Total int `json:"total"`
}

type BroadcastService struct {
	log    *slog.Logger
	users  *UserService
	sender MessageSender
}

func NewBroadcastService(log *slog.Logger, users *UserService, sender MessageSender) *BroadcastService {
	return &BroadcastService{log: log, users: users, sender: sender}
}

// Broadcast sends text to every registered user. Delivery failures are logged and skipped.
func (s *BroadcastService) Broadcast(ctx context.Context, text string) (BroadcastResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return BroadcastResult{}, ErrEmptyBroadcast
	}

	ids, err := s.users.ListTelegramIDs(ctx)
	if err != nil {
		return BroadcastResult{}, err
	}

	res := BroadcastResult{Total: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.sender.SendText(id, text); err != nil {
			s.log.Error("send broadcast", "user", id, "err", err)
			metrics.BroadcastMessagesTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.BroadcastMessagesTotal.WithLabelValues("sent").Inc()
		res.Sent++
	}
	return res, nil
}
