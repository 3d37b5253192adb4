package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carmasterapp/car-master/internal/codec"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
)

type redemptionFixture struct {
	svc   *RedemptionService
	repo  *repository.MemoryCodeRepository
	codec *codec.Codec
	sink  *recordingSink
	clock *fakeClock
}

func newRedemptionFixture(t *testing.T, opts RedemptionOptions) *redemptionFixture {
	t.Helper()
	f := &redemptionFixture{
		repo:  repository.NewMemoryCodeRepository(),
		codec: codec.New("CARMASTER", testSecret),
		sink:  &recordingSink{},
		clock: newFakeClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
	}
	f.svc = NewRedemptionService(f.repo, f.codec, allowAll{}, f.sink, opts)
	f.svc.now = f.clock.Now
	return f
}

func (f *redemptionFixture) insert(t *testing.T, code string, typ model.CodeType) *model.CodeRecord {
	t.Helper()
	rec, ok := model.NewCodeRecord(code, typ, "BATCH_TEST", "", f.clock.Now())
	require.True(t, ok)
	require.NoError(t, f.repo.Insert(context.Background(), rec))
	return rec
}

func (f *redemptionFixture) issue(t *testing.T, typ model.CodeType) string {
	t.Helper()
	code, err := f.codec.Generate(typ)
	require.NoError(t, err)
	f.insert(t, code, typ)
	return code
}

func (f *redemptionFixture) redeem(code, device string) (*RedeemResult, error) {
	return f.svc.Redeem(context.Background(), RedeemRequest{Code: code, DeviceID: device})
}

func assertCode(t *testing.T, expected apperrors.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, expected, apperrors.GetCode(err), "got %v", err)
}

func TestRedeem_DemoExample(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.codec.Encode(model.TagDemo, "A1B2C3D4")
	require.Equal(t, "CARMASTER-DEMO-A1B2C3D4-5412", code)
	f.insert(t, code, model.CodeTypeDemo)

	result, err := f.redeem(code, "dev-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.AlreadyActivated)
	assert.Equal(t, []string{"quiz"}, result.Features)
	assert.Equal(t, model.CodeTypeDemo, result.Type)
	require.NotNil(t, result.ActivatedAt)
	assert.Equal(t, f.clock.Now(), *result.ActivatedAt)

	_, err = f.redeem(code, "dev-2")
	assertCode(t, apperrors.ErrCodeCodeExhausted, err)
}

func TestRedeem_BindsRecord(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypeCustomer)

	_, err := f.svc.Redeem(context.Background(), RedeemRequest{
		Code:      code,
		DeviceID:  "dev-1",
		Email:     "driver@example.com",
		Requester: model.RequesterInfo{IP: "203.0.113.7", UserAgent: "CarMaster/2.1", Country: "IT"},
	})
	require.NoError(t, err)

	rec, err := f.repo.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusUsed, rec.Status)
	assert.Equal(t, 1, rec.CurrentUses)
	assert.Equal(t, []string{"dev-1"}, []string(rec.Devices))
	require.NotNil(t, rec.Email)
	assert.Equal(t, "driver@example.com", *rec.Email)
	require.NotNil(t, rec.LastUsed)
	assert.Equal(t, f.clock.Now(), *rec.LastUsed)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, code, entries[0].Code)
	assert.Equal(t, "dev-1", entries[0].DeviceID)
	assert.Equal(t, "203.0.113.7", entries[0].IP)
	assert.Equal(t, "IT", entries[0].Country)
}

func TestRedeem_IdempotentReplay(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypeLaunch)

	first, err := f.redeem(code, "dev-1")
	require.NoError(t, err)
	assert.False(t, first.AlreadyActivated)

	second, err := f.redeem(code, "dev-1")
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyActivated)
	assert.Equal(t, []string{"all"}, second.Features)
	assert.Nil(t, second.ActivatedAt)

	rec, err := f.repo.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentUses)
	assert.Len(t, f.sink.all(), 1, "replays are not audited as activations")
}

func TestRedeem_MaxUses(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypeInfluencer)

	for i := 1; i <= 5; i++ {
		result, err := f.redeem(code, fmt.Sprintf("dev-%d", i))
		require.NoError(t, err, "device %d", i)
		assert.False(t, result.AlreadyActivated)
	}

	_, err := f.redeem(code, "dev-6")
	assertCode(t, apperrors.ErrCodeCodeExhausted, err)

	// Bound devices still replay after exhaustion.
	result, err := f.redeem(code, "dev-3")
	require.NoError(t, err)
	assert.True(t, result.AlreadyActivated)
}

func TestRedeem_Expired(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypeDemo)

	_, err := f.redeem(code, "dev-1")
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Second)

	_, err = f.redeem(code, "dev-new")
	assertCode(t, apperrors.ErrCodeCodeExpired, err)

	_, err = f.redeem(code, "dev-1")
	assertCode(t, apperrors.ErrCodeCodeExpired, err)
}

func TestRedeem_ExpiryBoundaryIsInclusive(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypeDemo)

	f.clock.Advance(7 * 24 * time.Hour)
	_, err := f.redeem(code, "dev-1")
	assert.NoError(t, err)
}

func TestRedeem_TamperedChecksum(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypeCustomer)

	start := strings.LastIndex(code, "-") + 1
	for i := start; i < len(code); i++ {
		for _, r := range "0123456789ABCDEF" {
			if byte(r) == code[i] {
				continue
			}
			tampered := code[:i] + string(r) + code[i+1:]
			_, err := f.redeem(tampered, "dev-1")
			assertCode(t, apperrors.ErrCodeTamperedCode, err)
		}
	}

	rec, err := f.repo.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentUses)
}

func TestRedeem_CorruptedStoreEntry(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	// Stored under a key whose checksum does not match the secret.
	f.insert(t, "CARMASTER-CUST-00000000-0000", model.CodeTypeCustomer)

	_, err := f.redeem("CARMASTER-CUST-00000000-0000", "dev-1")
	assertCode(t, apperrors.ErrCodeTamperedCode, err)
}

func TestRedeem_InputAndFormatErrors(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	valid := f.issue(t, model.CodeTypePromo)

	tests := []struct {
		name     string
		code     string
		device   string
		expected apperrors.ErrorCode
	}{
		{"empty code", "", "dev-1", apperrors.ErrCodeMissingRequired},
		{"blank code", "   ", "dev-1", apperrors.ErrCodeMissingRequired},
		{"empty device", valid, "", apperrors.ErrCodeMissingRequired},
		{"malformed", "CARMASTER-PRMO", "dev-1", apperrors.ErrCodeInvalidCode},
		{"wrong prefix", "OTHER-PRMO-00000000-0000", "dev-1", apperrors.ErrCodeInvalidCode},
		{"unknown tag", "CARMASTER-GOLD-00000000-0000", "dev-1", apperrors.ErrCodeInvalidCode},
		{"unknown code with valid checksum", f.codec.Encode(model.TagPromo, "FFFFFFFF"), "dev-1", apperrors.ErrCodeInvalidCode},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.redeem(tc.code, tc.device)
			assertCode(t, tc.expected, err)
		})
	}
}

func TestRedeem_CaseInsensitiveInput(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypePromo)

	result, err := f.redeem("  "+strings.ToLower(code)+" ", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"quiz", "guides"}, result.Features)
}

func TestRedeem_RateLimited(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	limiter := NewMemoryLimiter(RateLimitOptions{Threshold: 5, Bucket: 10 * time.Second, Clock: f.clock.Now})
	f.svc.limiter = limiter
	code := f.issue(t, model.CodeTypeCustomer)

	for i := 0; i < 5; i++ {
		_, err := f.redeem(code, "dev-1")
		require.NoError(t, err, "attempt %d", i+1)
	}
	_, err := f.redeem(code, "dev-1")
	assertCode(t, apperrors.ErrCodeRateLimitExceeded, err)

	_, err = f.redeem("garbage", "dev-1")
	assertCode(t, apperrors.ErrCodeRateLimitExceeded, err)

	f.clock.Advance(10 * time.Second)
	result, err := f.redeem(code, "dev-1")
	require.NoError(t, err)
	assert.True(t, result.AlreadyActivated)
}

func TestRedeem_StorageErrors(t *testing.T) {
	c := codec.New("CARMASTER", testSecret)
	code, err := c.Generate(model.CodeTypeCustomer)
	require.NoError(t, err)

	t.Run("lookup failure", func(t *testing.T) {
		repo := new(mockCodeRepo)
		repo.On("Get", mock.Anything, code).Return(nil, errors.New("connection reset"))

		svc := NewRedemptionService(repo, c, allowAll{}, &recordingSink{}, RedemptionOptions{})
		_, err := svc.Redeem(context.Background(), RedeemRequest{Code: code, DeviceID: "dev-1"})
		assertCode(t, apperrors.ErrCodeStorageUnavailable, err)
	})

	t.Run("write failure", func(t *testing.T) {
		rec, _ := model.NewCodeRecord(code, model.CodeTypeCustomer, "B", "", time.Now())
		repo := new(mockCodeRepo)
		repo.On("Get", mock.Anything, code).Return(rec, nil)
		repo.On("TryRedeem", mock.Anything, code, mock.Anything).Return(nil, errors.New("deadlock detected"))

		sink := &recordingSink{}
		svc := NewRedemptionService(repo, c, allowAll{}, sink, RedemptionOptions{})
		_, err := svc.Redeem(context.Background(), RedeemRequest{Code: code, DeviceID: "dev-1"})
		assertCode(t, apperrors.ErrCodeStorageUnavailable, err)
		assert.Empty(t, sink.all())
	})
}

func TestRedeem_ConcurrentDistinctDevices(t *testing.T) {
	f := newRedemptionFixture(t, RedemptionOptions{})
	code := f.issue(t, model.CodeTypeInfluencer)

	const devices = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		exhausted int
	)
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.redeem(code, fmt.Sprintf("device-%02d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.GetCode(err) == apperrors.ErrCodeCodeExhausted:
				exhausted++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	assert.Equal(t, devices-5, exhausted)

	rec, err := f.repo.Get(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.CurrentUses)
	assert.Len(t, rec.Devices, 5)
	assert.Len(t, f.sink.all(), 5)
}

func TestEntitlement(t *testing.T) {
	t.Run("bound device gets features", func(t *testing.T) {
		f := newRedemptionFixture(t, RedemptionOptions{})
		code := f.issue(t, model.CodeTypePromo)
		_, err := f.redeem(code, "dev-1")
		require.NoError(t, err)

		ent, err := f.svc.Entitlement(context.Background(), code, "dev-1")
		require.NoError(t, err)
		assert.True(t, ent.Active)
		assert.False(t, ent.Expired)
		assert.Equal(t, []string{"quiz", "guides"}, ent.Features)
	})

	t.Run("unbound device", func(t *testing.T) {
		f := newRedemptionFixture(t, RedemptionOptions{})
		code := f.issue(t, model.CodeTypePromo)

		_, err := f.svc.Entitlement(context.Background(), code, "dev-1")
		assertCode(t, apperrors.ErrCodeNotActivated, err)
	})

	t.Run("expiry keeps existing activations by default", func(t *testing.T) {
		f := newRedemptionFixture(t, RedemptionOptions{})
		code := f.issue(t, model.CodeTypeDemo)
		_, err := f.redeem(code, "dev-1")
		require.NoError(t, err)

		f.clock.Advance(30 * 24 * time.Hour)
		ent, err := f.svc.Entitlement(context.Background(), code, "dev-1")
		require.NoError(t, err)
		assert.True(t, ent.Active)
		assert.True(t, ent.Expired)
	})

	t.Run("expiry revokes when configured", func(t *testing.T) {
		f := newRedemptionFixture(t, RedemptionOptions{ExpiryRevokesActivations: true})
		code := f.issue(t, model.CodeTypeDemo)
		_, err := f.redeem(code, "dev-1")
		require.NoError(t, err)

		f.clock.Advance(30 * 24 * time.Hour)
		_, err = f.svc.Entitlement(context.Background(), code, "dev-1")
		assertCode(t, apperrors.ErrCodeCodeExpired, err)
	})

	t.Run("unknown and tampered codes", func(t *testing.T) {
		f := newRedemptionFixture(t, RedemptionOptions{})

		_, err := f.svc.Entitlement(context.Background(), f.codec.Encode(model.TagDemo, "00000000"), "dev-1")
		assertCode(t, apperrors.ErrCodeInvalidCode, err)

		_, err = f.svc.Entitlement(context.Background(), "CARMASTER-DEMO-00000000-0000", "dev-1")
		assertCode(t, apperrors.ErrCodeTamperedCode, err)

		_, err = f.svc.Entitlement(context.Background(), "", "dev-1")
		assertCode(t, apperrors.ErrCodeMissingRequired, err)
	})
}
