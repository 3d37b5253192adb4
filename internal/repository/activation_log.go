package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carmasterapp/car-master/internal/database"
	"github.com/carmasterapp/car-master/internal/model"
)

type ActivationLogRepository interface {
	Create(ctx context.Context, entry *model.ActivationLog) error
	ListRecent(ctx context.Context, limit int) ([]model.ActivationLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type activationLogRepo struct {
	db database.DBTX
}

func NewActivationLogRepository(db *database.DB) ActivationLogRepository {
	return &activationLogRepo{db: db}
}

func (r *activationLogRepo) Create(ctx context.Context, entry *model.ActivationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activation_logs (id, code, device_id, ip, user_agent, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.Code, entry.DeviceID, entry.IP, entry.UserAgent, entry.Country, entry.CreatedAt)
	return err
}

func (r *activationLogRepo) ListRecent(ctx context.Context, limit int) ([]model.ActivationLog, error) {
	var logs []model.ActivationLog
	err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM activation_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *activationLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM activation_logs WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MemoryActivationLogRepository backs the memory store mode.
type MemoryActivationLogRepository struct {
	mu   sync.Mutex
	logs []model.ActivationLog
}

func NewMemoryActivationLogRepository() *MemoryActivationLogRepository {
	return &MemoryActivationLogRepository{}
}

func (r *MemoryActivationLogRepository) Create(_ context.Context, entry *model.ActivationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *MemoryActivationLogRepository) ListRecent(_ context.Context, limit int) ([]model.ActivationLog, error) {
	r.mu.Lock()
	out := make([]model.ActivationLog, len(r.logs))
	copy(out, r.logs)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryActivationLogRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.logs[:0]
	var deleted int64
	for _, l := range r.logs {
		if l.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return deleted, nil
}
