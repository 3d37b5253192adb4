package repository

import (
	"context"
	"errors"
	"time"

	"github.com/carmasterapp/car-master/internal/model"
)

var (
	ErrDuplicateCode = errors.New("code already exists")
	ErrCodeNotFound  = errors.New("code not found")
)

// RedeemFunc inspects and optionally mutates a record while the code is locked.
// Returning changed=false leaves the stored record untouched. A non-nil error
// aborts the redemption without writing.
type RedeemFunc func(rec *model.CodeRecord) (changed bool, err error)

type CodeRepository interface {
	Get(ctx context.Context, code string) (*model.CodeRecord, error)
	Insert(ctx context.Context, rec *model.CodeRecord) error
	// TryRedeem runs fn against the current record as one atomic unit per code
	// and returns the record as stored afterwards.
	TryRedeem(ctx context.Context, code string, fn RedeemFunc) (*model.CodeRecord, error)
	Stats(ctx context.Context, now time.Time) (*model.StoreStats, error)
	ListExpiringUnused(ctx context.Context, from, until time.Time) ([]model.CodeRecord, error)
}
