package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/digkill/TGFaceSwapBot/internal/models"
)

const activeSetTTLSeconds = 2 * 24 * 60 * 60

// consumeScript resets a record from another day, then increments it while below the limit.
// KEYS: [1]=usage hash, [2]=active users set for the day
// ARGV: [1]=day, [2]=limit, [3]=user id, [4]=active set ttl seconds
var consumeScript = goredis.NewScript(`
local count = tonumber(redis.call('HGET', KEYS[1], 'count')) or 0
if redis.call('HGET', KEYS[1], 'date') ~= ARGV[1] then
  count = 0
end
if count >= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'date', ARGV[1], 'count', count + 1)
redis.call('SADD', KEYS[2], ARGV[3])
redis.call('EXPIRE', KEYS[2], tonumber(ARGV[4]))
return 1
`)

// UsageStore keeps the daily usage ledger in Redis hashes.
type UsageStore struct {
	rdb *goredis.Client
}

func NewUsageStore(rdb *goredis.Client) *UsageStore {
	return &UsageStore{rdb: rdb}
}

func usageKey(userID int64) string {
	return fmt.Sprintf("faceswap:usage:%d", userID)
}

func activeKey(day string) string {
	return "faceswap:active:" + day
}

func (s *UsageStore) ConsumeIfBelow(ctx context.Context, userID int64, day string, limit int) (bool, error) {
	res, err := consumeScript.Run(ctx, s.rdb,
		[]string{usageKey(userID), activeKey(day)},
		day, limit, userID, activeSetTTLSeconds,
	).Int()
	if err != nil {
		return false, fmt.Errorf("consume usage script failed: %w", err)
	}
	return res == 1, nil
}

func (s *UsageStore) Get(ctx context.Context, userID int64) (*models.UsageRecord, error) {
	vals, err := s.rdb.HGetAll(ctx, usageKey(userID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get usage: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	count, err := strconv.Atoi(vals["count"])
	if err != nil {
		return nil, fmt.Errorf("parse usage count: %w", err)
	}
	return &models.UsageRecord{UserID: userID, Count: count, Date: vals["date"]}, nil
}

func (s *UsageStore) CountActive(ctx context.Context, day string) (int, error) {
	n, err := s.rdb.SCard(ctx, activeKey(day)).Result()
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return int(n), nil
}
