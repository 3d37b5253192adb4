package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carmasterapp/car-master/internal/model"
)

type memoryEntry struct {
	mu  sync.Mutex
	rec *model.CodeRecord
}

// MemoryCodeRepository keeps records in process memory. Each code has its own
// lock, so redemptions of different codes never contend. Contents are lost on
// restart.
type MemoryCodeRepository struct {
	entries sync.Map // code -> *memoryEntry
}

func NewMemoryCodeRepository() *MemoryCodeRepository {
	return &MemoryCodeRepository{}
}

func (r *MemoryCodeRepository) entry(code string) (*memoryEntry, bool) {
	v, ok := r.entries.Load(code)
	if !ok {
		return nil, false
	}
	return v.(*memoryEntry), true
}

func (r *MemoryCodeRepository) Get(ctx context.Context, code string) (*model.CodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := r.entry(code)
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), nil
}

func (r *MemoryCodeRepository) Insert(ctx context.Context, rec *model.CodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, loaded := r.entries.LoadOrStore(rec.Code, &memoryEntry{rec: rec.Clone()}); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, rec.Code)
	}
	return nil
}

func (r *MemoryCodeRepository) TryRedeem(ctx context.Context, code string, fn RedeemFunc) (*model.CodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := r.entry(code)
	if !ok {
		return nil, ErrCodeNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.rec.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if changed {
		e.rec = working.Clone()
	}
	return working, nil
}

func (r *MemoryCodeRepository) each(fn func(rec *model.CodeRecord)) {
	r.entries.Range(func(_, v any) bool {
		e := v.(*memoryEntry)
		e.mu.Lock()
		rec := e.rec.Clone()
		e.mu.Unlock()
		fn(rec)
		return true
	})
}

func (r *MemoryCodeRepository) Stats(ctx context.Context, now time.Time) (*model.StoreStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats := model.NewStoreStats()
	r.each(func(rec *model.CodeRecord) {
		stats.Add(rec, now)
	})
	return stats, nil
}

func (r *MemoryCodeRepository) ListExpiringUnused(ctx context.Context, from, until time.Time) ([]model.CodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.CodeRecord
	r.each(func(rec *model.CodeRecord) {
		if rec.CurrentUses == 0 && !rec.ExpiresAt.Before(from) && !rec.ExpiresAt.After(until) {
			out = append(out, *rec)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out, nil
}
