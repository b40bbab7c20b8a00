package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type transitionStore interface {
	Get(ctx context.Context, id int64) (*models.Petition, error)
	ApplyTransition(ctx context.Context, t *workflow.Transition, event models.TransitionEvent) (int64, error)
}

type transitionPlanner interface {
	Plan(ctx context.Context, head *models.Petition, req workflow.Request) (*workflow.Transition, error)
	Allowed(head *models.Petition, actor models.Actor) []workflow.Operation
}

type dashboardInvalidator interface {
	InvalidateDashboards(ctx context.Context) error
}

// TransitionCommand is one requested workflow operation on a stored petition.
type TransitionCommand struct {
	PetitionID int64
	Operation  workflow.Operation
	Actor      models.Actor
	Payload    workflow.Payload
	// ExpectedVersion, when set, must equal the stored version or the call fails with a conflict.
	ExpectedVersion *int64
	Trusted         bool
}

// WorkflowService runs engine transitions against the petition store.
type WorkflowService struct {
	store   transitionStore
	engine  transitionPlanner
	cache   dashboardInvalidator
	metrics *MetricsService
	logger  *zap.Logger
}

// NewWorkflowService constructs a WorkflowService. cache and metrics may be nil.
func NewWorkflowService(store transitionStore, engine transitionPlanner, cache dashboardInvalidator, metrics *MetricsService, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{store: store, engine: engine, cache: cache, metrics: metrics, logger: logger}
}

// Allowed lists the operations actor may attempt on head.
func (s *WorkflowService) Allowed(head *models.Petition, actor models.Actor) []string {
	ops := s.engine.Allowed(head, actor)
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, string(op))
	}
	return out
}

// Execute plans and persists one transition. A lost version race reloads the head and returns
// VERSION_CONFLICT carrying it, leaving the ledger untouched.
func (s *WorkflowService) Execute(ctx context.Context, cmd TransitionCommand) (*dto.TransitionResponse, error) {
	start := time.Now()

	head, err := s.load(ctx, cmd.PetitionID)
	if err != nil {
		s.observe(cmd.Operation, OutcomeError, start)
		return nil, err
	}
	if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != head.Version {
		s.observe(cmd.Operation, OutcomeConflict, start)
		return nil, versionConflict(head)
	}

	t, err := s.engine.Plan(ctx, head, workflow.Request{
		Operation: cmd.Operation,
		Actor:     cmd.Actor,
		Payload:   cmd.Payload,
		Trusted:   cmd.Trusted,
	})
	if err != nil {
		s.rejected(cmd, head, err, start)
		return nil, err
	}

	last := t.Entries[len(t.Entries)-1]
	event := models.TransitionEvent{
		PetitionID: head.ID,
		SNo:        head.SNo,
		Operation:  string(t.Operation),
		From:       head.Status,
		To:         t.After.Status,
		HandlerID:  t.After.Handler(),
		ActorID:    cmd.Actor.UserID,
		Version:    head.Version + int64(len(t.Entries)),
		OccurredAt: last.CreatedAt,
	}

	version, err := s.store.ApplyTransition(ctx, t, event)
	if err != nil {
		if errors.Is(err, repository.ErrVersionMismatch) {
			s.observe(cmd.Operation, OutcomeConflict, start)
			fresh, loadErr := s.load(ctx, cmd.PetitionID)
			if loadErr != nil {
				return nil, loadErr
			}
			s.logger.Info("petition_transition_conflict",
				zap.Int64("petition_id", head.ID),
				zap.String("operation", string(cmd.Operation)),
				zap.Int64("planned_version", head.Version),
				zap.Int64("current_version", fresh.Version))
			return nil, versionConflict(fresh)
		}
		s.observe(cmd.Operation, OutcomeError, start)
		return nil, appErrors.Internal(err, "failed to persist transition")
	}

	after := t.After
	after.Version = version
	resp := &dto.TransitionResponse{
		Petition:  after,
		Operation: string(t.Operation),
		Action:    t.Label,
		HandlerID: after.Handler(),
		Version:   version,
	}
	if t.Handler != nil {
		name := t.Handler.FullName
		after.HandlerName = &name
		resp.Handler = name
	}

	if s.cache != nil {
		if err := s.cache.InvalidateDashboards(ctx); err != nil {
			s.logger.Warn("dashboard invalidation failed", zap.Int64("petition_id", head.ID), zap.Error(err))
		}
	}
	s.observe(cmd.Operation, OutcomeApplied, start)
	s.logger.Info("petition_transition",
		zap.Int64("petition_id", head.ID),
		zap.String("sno", head.SNo),
		zap.String("operation", string(t.Operation)),
		zap.String("from", string(head.Status)),
		zap.String("to", string(after.Status)),
		zap.String("actor_id", cmd.Actor.UserID),
		zap.String("actor_role", string(cmd.Actor.Role)),
		zap.String("handler_id", resp.HandlerID),
		zap.Int("entries", len(t.Entries)),
		zap.Int64("version", version),
		zap.Bool("trusted", cmd.Trusted))
	return resp, nil
}

func (s *WorkflowService) load(ctx context.Context, id int64) (*models.Petition, error) {
	head, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("petition %d not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load petition")
	}
	return head, nil
}

func (s *WorkflowService) rejected(cmd TransitionCommand, head *models.Petition, err error, start time.Time) {
	outcome := OutcomeRejected
	switch {
	case errors.Is(err, appErrors.ErrNoHandler):
		outcome = OutcomeNoHolder
		s.logger.Warn("petition_transition_no_handler",
			zap.Int64("petition_id", head.ID),
			zap.String("operation", string(cmd.Operation)),
			zap.String("status", string(head.Status)),
			zap.Error(err))
	case errors.Is(err, appErrors.ErrInternal):
		outcome = OutcomeError
		s.logger.Error("petition_transition_failed",
			zap.Int64("petition_id", head.ID),
			zap.String("operation", string(cmd.Operation)),
			zap.Error(err))
	}
	s.observe(cmd.Operation, outcome, start)
}

func (s *WorkflowService) observe(op workflow.Operation, outcome string, start time.Time) {
	s.metrics.ObserveTransition(string(op), outcome, time.Since(start))
}

func versionConflict(fresh *models.Petition) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrVersionConflict, "petition was changed by another user, reload and retry"),
		map[string]interface{}{"petition": fresh, "version": fresh.Version},
	)
}
