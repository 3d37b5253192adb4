package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carmasterapp/car-master/internal/audit"
	"github.com/carmasterapp/car-master/internal/codec"
	"github.com/carmasterapp/car-master/internal/config"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/metrics"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
	"github.com/carmasterapp/car-master/internal/util"
)

type RedeemRequest struct {
	Code      string
	DeviceID  string
	Email     string
	Requester model.RequesterInfo
}

type RedeemResult struct {
	Success          bool           `json:"success"`
	AlreadyActivated bool           `json:"alreadyActivated,omitempty"`
	Features         []string       `json:"features"`
	Type             model.CodeType `json:"type"`
	ActivatedAt      *time.Time     `json:"activatedAt,omitempty"`
}

type EntitlementResult struct {
	Active    bool           `json:"active"`
	Features  []string       `json:"features"`
	Type      model.CodeType `json:"type"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Expired   bool           `json:"expired"`
}

// ActivationSink receives an event for every fresh device binding.
// Implementations must return without blocking.
type ActivationSink interface {
	Record(entry model.ActivationLog)
}

type RedemptionOptions struct {
	// ExpiryRevokesActivations makes Entitlement deny bound devices once the
	// code has expired. By default bound devices keep their features.
	ExpiryRevokesActivations bool
}

type RedemptionService struct {
	codes   repository.CodeRepository
	codec   *codec.Codec
	limiter Limiter
	sink    ActivationSink
	opts    RedemptionOptions
	now     func() time.Time
}

func NewRedemptionService(
	codes repository.CodeRepository,
	c *codec.Codec,
	limiter Limiter,
	sink ActivationSink,
	opts RedemptionOptions,
) *RedemptionService {
	return &RedemptionService{
		codes:   codes,
		codec:   c,
		limiter: limiter,
		sink:    sink,
		opts:    opts,
		now:     time.Now,
	}
}

// Sentinels returned from inside TryRedeem so the lock is released before mapping.
var (
	errExpired   = errors.New("expired")
	errExhausted = errors.New("exhausted")
)

func (s *RedemptionService) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	result, err := s.redeem(ctx, req)
	if err != nil {
		metrics.RecordRedemption(string(apperrors.GetCode(err)))
		return nil, err
	}
	if result.AlreadyActivated {
		metrics.RecordRedemption("already_activated")
	} else {
		metrics.RecordRedemption("activated")
	}
	return result, nil
}

func (s *RedemptionService) redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	deviceID := strings.TrimSpace(req.DeviceID)

	if !s.limiter.Admit(ctx, deviceID) {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventRateLimitExceed,
			DeviceID:  util.MaskDevice(deviceID),
			IP:        req.Requester.IP,
			UserAgent: req.Requester.UserAgent,
		})
		return nil, apperrors.RateLimitExceeded()
	}

	if strings.TrimSpace(req.Code) == "" {
		return nil, apperrors.MissingRequired("code")
	}
	if deviceID == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	parsed, err := s.codec.Decode(req.Code)
	if err != nil {
		return nil, apperrors.InvalidCode()
	}
	key := parsed.String()

	rec, err := s.get(ctx, key)
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}

	// Verified even for unknown codes; the verdict does not depend on the store.
	if !s.codec.Verify(parsed) {
		audit.Log(ctx, audit.Event{
			Type:     audit.EventTamperedCode,
			DeviceID: util.MaskDevice(deviceID),
			IP:       req.Requester.IP,
			Details:  map[string]interface{}{"code": util.MaskCode(key)},
		})
		return nil, apperrors.TamperedCode()
	}
	if rec == nil {
		return nil, apperrors.InvalidCode()
	}

	now := s.now()
	alreadyActivated := false
	redeemed, err := s.tryRedeem(ctx, key, func(r *model.CodeRecord) (bool, error) {
		if r.IsExpired(now) {
			return false, errExpired
		}
		if r.HasDevice(deviceID) {
			alreadyActivated = true
			return false, nil
		}
		if r.IsExhausted() {
			return false, errExhausted
		}
		r.Bind(deviceID, strings.TrimSpace(req.Email), now)
		return true, nil
	})
	switch {
	case errors.Is(err, errExpired):
		return nil, apperrors.CodeExpired()
	case errors.Is(err, errExhausted):
		return nil, apperrors.CodeExhausted()
	case errors.Is(err, repository.ErrCodeNotFound):
		return nil, apperrors.InvalidCode()
	case err != nil:
		return nil, apperrors.StorageUnavailable(err)
	}

	result := &RedeemResult{
		Success:          true,
		AlreadyActivated: alreadyActivated,
		Features:         []string(redeemed.Features),
		Type:             redeemed.Type,
	}
	if alreadyActivated {
		return result, nil
	}

	result.ActivatedAt = &now
	s.sink.Record(model.ActivationLog{
		Code:      key,
		DeviceID:  deviceID,
		IP:        req.Requester.IP,
		UserAgent: req.Requester.UserAgent,
		Country:   req.Requester.Country,
		CreatedAt: now,
	})
	log.Info().
		Str("code", util.MaskCode(key)).
		Str("type", string(redeemed.Type)).
		Int("current_uses", redeemed.CurrentUses).
		Int("max_uses", redeemed.MaxUses).
		Msg("premium code redeemed")

	return result, nil
}

// Entitlement reports which features a device unlocked with a code.
func (s *RedemptionService) Entitlement(ctx context.Context, code, deviceID string) (*EntitlementResult, error) {
	deviceID = strings.TrimSpace(deviceID)
	if strings.TrimSpace(code) == "" {
		return nil, apperrors.MissingRequired("code")
	}
	if deviceID == "" {
		return nil, apperrors.MissingRequired("deviceId")
	}

	parsed, err := s.codec.Decode(code)
	if err != nil {
		return nil, apperrors.InvalidCode()
	}
	rec, err := s.get(ctx, parsed.String())
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}
	if !s.codec.Verify(parsed) {
		return nil, apperrors.TamperedCode()
	}
	if rec == nil {
		return nil, apperrors.InvalidCode()
	}
	if !rec.HasDevice(deviceID) {
		return nil, apperrors.NotActivated()
	}

	expired := rec.IsExpired(s.now())
	if expired && s.opts.ExpiryRevokesActivations {
		return nil, apperrors.CodeExpired()
	}

	return &EntitlementResult{
		Active:    true,
		Features:  []string(rec.Features),
		Type:      rec.Type,
		ExpiresAt: rec.ExpiresAt,
		Expired:   expired,
	}, nil
}

func (s *RedemptionService) get(ctx context.Context, code string) (*model.CodeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StoreOpTimeout)
	defer cancel()
	return s.codes.Get(ctx, code)
}

func (s *RedemptionService) tryRedeem(ctx context.Context, code string, fn repository.RedeemFunc) (*model.CodeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, config.StoreOpTimeout)
	defer cancel()
	return s.codes.TryRedeem(ctx, code, fn)
}
