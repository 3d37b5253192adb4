package service

import (
	"context"
	"math"
	"time"

	"github.com/carmasterapp/car-master/internal/config"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
)

const recentActivationsLimit = 10

// Unit prices in euro cents, used for the revenue estimate.
var unitPriceCents = map[model.CodeType]int64{
	model.CodeTypeCustomer:   1990,
	model.CodeTypeLaunch:     1990,
	model.CodeTypePromo:      990,
	model.CodeTypeInfluencer: 0,
	model.CodeTypeDemo:       0,
}

type ExpiringCode struct {
	Code      string         `json:"code"`
	Type      model.CodeType `json:"type"`
	ExpiresAt time.Time      `json:"expiresAt"`
	DaysLeft  int            `json:"daysLeft"`
}

type TypeRevenue struct {
	Type       model.CodeType `json:"type"`
	Used       int            `json:"used"`
	UnitCents  int64          `json:"unitCents"`
	TotalCents int64          `json:"totalCents"`
}

type Report struct {
	GeneratedAt       time.Time             `json:"generatedAt"`
	Stats             *model.StoreStats     `json:"stats"`
	UsageRate         float64               `json:"usageRate"`
	RecentActivations []model.ActivationLog `json:"recentActivations"`
	ExpiringSoon      []ExpiringCode        `json:"expiringSoon"`
	Revenue           []TypeRevenue         `json:"revenue"`
	TotalRevenueCents int64                 `json:"totalRevenueCents"`
}

type StatsService struct {
	codes       repository.CodeRepository
	activations repository.ActivationLogRepository
	now         func() time.Time
}

func NewStatsService(codes repository.CodeRepository, activations repository.ActivationLogRepository) *StatsService {
	return &StatsService{
		codes:       codes,
		activations: activations,
		now:         time.Now,
	}
}

func (s *StatsService) Report(ctx context.Context) (*Report, error) {
	now := s.now()

	stats, err := s.codes.Stats(ctx, now)
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}

	recent, err := s.activations.ListRecent(ctx, recentActivationsLimit)
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}

	expiring, err := s.codes.ListExpiringUnused(ctx, now, now.Add(config.ExpiringSoonWindow))
	if err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}

	report := &Report{
		GeneratedAt:       now,
		Stats:             stats,
		UsageRate:         stats.UsageRate(),
		RecentActivations: recent,
		ExpiringSoon:      make([]ExpiringCode, 0, len(expiring)),
	}
	if report.RecentActivations == nil {
		report.RecentActivations = []model.ActivationLog{}
	}

	for _, rec := range expiring {
		if !rec.ExpiresAt.After(now) {
			continue
		}
		report.ExpiringSoon = append(report.ExpiringSoon, ExpiringCode{
			Code:      rec.Code,
			Type:      rec.Type,
			ExpiresAt: rec.ExpiresAt,
			DaysLeft:  int(math.Ceil(rec.ExpiresAt.Sub(now).Hours() / 24)),
		})
	}

	for _, t := range model.AllCodeTypes {
		tc, ok := stats.ByType[t]
		if !ok {
			continue
		}
		unit := unitPriceCents[t]
		total := int64(tc.Used) * unit
		report.Revenue = append(report.Revenue, TypeRevenue{
			Type:       t,
			Used:       tc.Used,
			UnitCents:  unit,
			TotalCents: total,
		})
		report.TotalRevenueCents += total
	}

	return report, nil
}
