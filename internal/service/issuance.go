package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carmasterapp/car-master/internal/audit"
	"github.com/carmasterapp/car-master/internal/codec"
	"github.com/carmasterapp/car-master/internal/config"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/metrics"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
)

type IssueParams struct {
	Count int
	Type  model.CodeType
	Notes string
	Batch string
}

type IssuanceService struct {
	codes repository.CodeRepository
	codec *codec.Codec
	now   func() time.Time
}

func NewIssuanceService(codes repository.CodeRepository, c *codec.Codec) *IssuanceService {
	return &IssuanceService{
		codes: codes,
		codec: c,
		now:   time.Now,
	}
}

// IssueBatch mints params.Count fresh codes of one type and stores them.
// Codes inserted before a failure stay in the store.
func (s *IssuanceService) IssueBatch(ctx context.Context, params IssueParams) ([]string, error) {
	if params.Count < 1 || params.Count > config.MaxBatchSize {
		return nil, apperrors.InvalidInput("count", fmt.Sprintf("must be between 1 and %d", config.MaxBatchSize))
	}
	if !params.Type.IsValid() {
		return nil, apperrors.InvalidInput("type", fmt.Sprintf("unknown code type %q", params.Type))
	}

	now := s.now()
	batch := params.Batch
	if batch == "" {
		batch = fmt.Sprintf("BATCH_%d", now.UnixMilli())
	}
	notes := params.Notes
	if notes == "" {
		notes = fmt.Sprintf("Generated %s code", params.Type)
	}

	issued := make([]string, 0, params.Count)
	for i := 0; i < params.Count; i++ {
		code, err := s.issueOne(ctx, params.Type, batch, notes, now)
		if err != nil {
			metrics.RecordIssued(string(params.Type), len(issued))
			return nil, err
		}
		issued = append(issued, code)
	}

	metrics.RecordIssued(string(params.Type), len(issued))
	audit.Log(ctx, audit.Event{
		Type: audit.EventCodesIssued,
		Details: map[string]interface{}{
			"count": len(issued),
			"type":  string(params.Type),
			"batch": batch,
		},
	})
	log.Info().
		Int("count", len(issued)).
		Str("type", string(params.Type)).
		Str("batch", batch).
		Msg("issued premium codes")

	return issued, nil
}

func (s *IssuanceService) issueOne(ctx context.Context, t model.CodeType, batch, notes string, now time.Time) (string, error) {
	for attempt := 0; attempt < config.MaxIssueAttempts; attempt++ {
		code, err := s.codec.Generate(t)
		if err != nil {
			return "", apperrors.Internal("Failed to generate code").WithCause(err)
		}

		rec, _ := model.NewCodeRecord(code, t, batch, notes, now)
		err = s.insert(ctx, rec)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return "", apperrors.StorageUnavailable(err)
		}
		log.Debug().Int("attempt", attempt+1).Msg("generated code collided, retrying")
	}

	log.Error().
		Int("attempts", config.MaxIssueAttempts).
		Str("type", string(t)).
		Msg("could not find a unique code")
	return "", apperrors.ExhaustedEntropy(config.MaxIssueAttempts)
}

func (s *IssuanceService) insert(ctx context.Context, rec *model.CodeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, config.StoreOpTimeout)
	defer cancel()
	return s.codes.Insert(ctx, rec)
}
