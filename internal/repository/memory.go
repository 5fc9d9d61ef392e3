package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLimiterRepository tracks call counts per (target, caller) pair
// in-process. Entries reset when their window expires.
type MemoryLimiterRepository struct {
	windows sync.Map
}

func NewMemoryLimiterRepository() *MemoryLimiterRepository {
	return &MemoryLimiterRepository{}
}

type windowEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemoryLimiterRepository) Allow(ctx context.Context, target, caller string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("%s:%s", target, caller)
	val, _ := r.windows.LoadOrStore(key, &windowEntry{})
	entry := val.(*windowEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
