package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/TGFaceSwapBot/internal/models"
)

// UsageRepository is the MySQL-backed daily usage ledger.
type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// ConsumeIfBelow upserts the user's record in a single statement. A stale day is
// reset to 1; the same day is incremented only while below limit. MySQL reports
// 1 affected row for an insert, 2 for an update and 0 when nothing changed, which
// requires the DSN to leave clientFoundRows off.
func (r *UsageRepository) ConsumeIfBelow(ctx context.Context, userID int64, day string, limit int) (bool, error) {
	const query = `
INSERT INTO usage_records (telegram_id, usage_count, usage_date)
VALUES (?, 1, ?)
ON DUPLICATE KEY UPDATE
    usage_count = IF(usage_date <> VALUES(usage_date), 1, IF(usage_count < ?, usage_count + 1, usage_count)),
    usage_date = VALUES(usage_date)`
	res, err := r.db.ExecContext(ctx, query, userID, day, limit)
	if err != nil {
		return false, fmt.Errorf("consume usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("usage rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *UsageRepository) Get(ctx context.Context, userID int64) (*models.UsageRecord, error) {
	const query = `SELECT telegram_id, usage_count, usage_date FROM usage_records WHERE telegram_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var rec models.UsageRecord
	if err := row.Scan(&rec.UserID, &rec.Count, &rec.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan usage: %w", err)
	}
	return &rec, nil
}

func (r *UsageRepository) CountActive(ctx context.Context, day string) (int, error) {
	const query = `SELECT COUNT(*) FROM usage_records WHERE usage_date = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return count, nil
}
