package ratelimit

import (
	"context"
	"sync"

	"github.com/digkill/TGFaceSwapBot/internal/models"
)

// MemoryStore keeps usage records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[int64]models.UsageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]models.UsageRecord)}
}

func (s *MemoryStore) ConsumeIfBelow(_ context.Context, userID int64, day string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok || rec.Date != day {
		rec = models.UsageRecord{UserID: userID, Date: day}
	}
	if rec.Count >= limit {
		return false, nil
	}
	rec.Count++
	s.records[userID] = rec
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// CountActive returns how many users have a record dated day.
func (s *MemoryStore) CountActive(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.Date == day {
			n++
		}
	}
	return n, nil
}
