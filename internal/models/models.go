package models

import "time"

// DateLayout is the calendar-day format usage records are keyed by.
const DateLayout = "2006-01-02"

type SwapOutcome string

const (
	SwapOutcomeSuccess SwapOutcome = "success"
	SwapOutcomeNoFace  SwapOutcome = "no_face"
	SwapOutcomeFailed  SwapOutcome = "failed"
)

type User struct {
	ID         int64
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UsageRecord is the per-user daily swap counter.
type UsageRecord struct {
	UserID int64
	Count  int
	Date   string
}

type Stats struct {
	TotalUsers  int `json:"total_users"`
	ActiveToday int `json:"active_today"`
	SwapsToday  int `json:"swaps_today"`
}
