package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
)

const testSecret = "test-secret"

type mockCodeRepo struct {
	mock.Mock
}

func (m *mockCodeRepo) Get(ctx context.Context, code string) (*model.CodeRecord, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CodeRecord), args.Error(1)
}

func (m *mockCodeRepo) Insert(ctx context.Context, rec *model.CodeRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockCodeRepo) TryRedeem(ctx context.Context, code string, fn repository.RedeemFunc) (*model.CodeRecord, error) {
	args := m.Called(ctx, code, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CodeRecord), args.Error(1)
}

func (m *mockCodeRepo) Stats(ctx context.Context, now time.Time) (*model.StoreStats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoreStats), args.Error(1)
}

func (m *mockCodeRepo) ListExpiringUnused(ctx context.Context, from, until time.Time) ([]model.CodeRecord, error) {
	args := m.Called(ctx, from, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CodeRecord), args.Error(1)
}

type allowAll struct{}

func (allowAll) Admit(context.Context, string) bool { return true }

type recordingSink struct {
	mu      sync.Mutex
	entries []model.ActivationLog
}

func (s *recordingSink) Record(entry model.ActivationLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) all() []model.ActivationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ActivationLog(nil), s.entries...)
}
