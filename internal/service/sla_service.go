package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type slaTimestampReader interface {
	SLATimestamps(ctx context.Context, petitionID int64) (*models.SLATimestamps, error)
	SLATimestampsFor(ctx context.Context, petitionIDs []int64) ([]models.SLATimestamps, error)
}

// SLAService classifies petitions against their enquiry deadline from ledger timestamps.
type SLAService struct {
	repo slaTimestampReader
	now  func() time.Time
}

// NewSLAService constructs an SLAService.
func NewSLAService(repo slaTimestampReader) *SLAService {
	return &SLAService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the SLA view of one petition.
func (s *SLAService) Get(ctx context.Context, petitionID int64) (*models.SLAStatus, error) {
	ts, err := s.repo.SLATimestamps(ctx, petitionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("petition %d not found", petitionID))
		}
		return nil, appErrors.Internal(err, "failed to load sla timestamps")
	}
	status := workflow.ClassifyTimestamps(*ts, s.now())
	return &status, nil
}

// Batch classifies every petition in ids. Petitions without a row are reported as excluded.
func (s *SLAService) Batch(ctx context.Context, ids []int64) (map[int64]models.SLAStatus, error) {
	out := make(map[int64]models.SLAStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.repo.SLATimestampsFor(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load sla timestamps")
	}
	now := s.now()
	for _, ts := range rows {
		out[ts.PetitionID] = workflow.ClassifyTimestamps(ts, now)
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = models.SLAStatus{PetitionID: id, Bucket: models.SLAExcluded, DeadlineDays: workflow.DetailedDeadlineDays}
		}
	}
	return out, nil
}
