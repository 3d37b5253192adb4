package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carmasterapp/car-master/internal/database"
	"github.com/carmasterapp/car-master/internal/model"
)

type codeRepo struct {
	db *database.DB
}

func NewCodeRepository(db *database.DB) CodeRepository {
	return &codeRepo{db: db}
}

func (r *codeRepo) Get(ctx context.Context, code string) (*model.CodeRecord, error) {
	var rec model.CodeRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT * FROM premium_codes WHERE code = $1
	`, code)
	return HandleNotFound(&rec, err)
}

func (r *codeRepo) Insert(ctx context.Context, rec *model.CodeRecord) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO premium_codes (
			code, type, status, features, expires_at, max_uses, current_uses,
			devices, created_at, last_used, batch, notes, email
		) VALUES (
			:code, :type, :status, :features, :expires_at, :max_uses, :current_uses,
			:devices, :created_at, :last_used, :batch, :notes, :email
		)
		ON CONFLICT (code) DO NOTHING
	`, rec)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, rec.Code)
	}
	return nil
}

func (r *codeRepo) TryRedeem(ctx context.Context, code string, fn RedeemFunc) (*model.CodeRecord, error) {
	var out *model.CodeRecord
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var rec model.CodeRecord
		err := tx.GetContext(ctx, &rec, `
			SELECT * FROM premium_codes WHERE code = $1 FOR UPDATE
		`, code)
		if err != nil {
			return notFoundAs(err, ErrCodeNotFound)
		}

		changed, err := fn(&rec)
		if err != nil {
			return err
		}
		out = &rec
		if !changed {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE premium_codes SET
				status = $2,
				current_uses = $3,
				devices = $4,
				last_used = $5,
				email = $6
			WHERE code = $1
		`, rec.Code, rec.Status, rec.CurrentUses, rec.Devices, rec.LastUsed, rec.Email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *codeRepo) Stats(ctx context.Context, now time.Time) (*model.StoreStats, error) {
	stats := model.NewStoreStats()

	var totals struct {
		Total       int        `db:"total"`
		Used        int        `db:"used"`
		Expired     int        `db:"expired"`
		LastUpdated *time.Time `db:"last_updated"`
	}
	err := r.db.GetContext(ctx, &totals, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE current_uses > 0) AS used,
			COUNT(*) FILTER (WHERE expires_at < $1) AS expired,
			MAX(GREATEST(created_at, COALESCE(last_used, created_at))) AS last_updated
		FROM premium_codes
	`, now)
	if err != nil {
		return nil, err
	}
	stats.TotalCodes = totals.Total
	stats.TotalUsed = totals.Used
	stats.Unused = totals.Total - totals.Used
	stats.Expired = totals.Expired
	stats.LastUpdated = totals.LastUpdated

	var byType []struct {
		Type  model.CodeType `db:"type"`
		Total int            `db:"total"`
		Used  int            `db:"used"`
	}
	err = r.db.SelectContext(ctx, &byType, `
		SELECT type, COUNT(*) AS total, COUNT(*) FILTER (WHERE current_uses > 0) AS used
		FROM premium_codes
		GROUP BY type
	`)
	if err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.ByType[row.Type] = model.TypeCount{Total: row.Total, Used: row.Used}
	}

	var byBatch []struct {
		Batch string `db:"batch"`
		Count int    `db:"count"`
	}
	err = r.db.SelectContext(ctx, &byBatch, `
		SELECT batch, COUNT(*) AS count FROM premium_codes GROUP BY batch
	`)
	if err != nil {
		return nil, err
	}
	for _, row := range byBatch {
		stats.ByBatch[row.Batch] = row.Count
	}

	return stats, nil
}

func (r *codeRepo) ListExpiringUnused(ctx context.Context, from, until time.Time) ([]model.CodeRecord, error) {
	var recs []model.CodeRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM premium_codes
		WHERE current_uses = 0 AND expires_at >= $1 AND expires_at <= $2
		ORDER BY expires_at ASC
	`, from, until)
	if err != nil {
		return nil, err
	}
	return recs, nil
}
