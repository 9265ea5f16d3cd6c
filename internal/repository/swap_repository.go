package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digkill/TGFaceSwapBot/internal/models"
)

type SwapRepository struct {
	db *sql.DB
}

func NewSwapRepository(db *sql.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

func (r *SwapRepository) Log(ctx context.Context, requestID string, telegramID int64, outcome models.SwapOutcome) error {
	const query = `
INSERT INTO swap_logs (request_id, telegram_id, outcome)
VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, requestID, telegramID, outcome); err != nil {
		return fmt.Errorf("insert swap log: %w", err)
	}
	return nil
}

func (r *SwapRepository) CountForDay(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	const query = `
SELECT COUNT(*) FROM swap_logs
WHERE created_at >= ? AND created_at < ?`
	row := r.db.QueryRowContext(ctx, query, start, end)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count daily swaps: %w", err)
	}
	return count, nil
}
