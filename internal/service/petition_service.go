package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

// Ledger comments written by intake auto-routing.
const (
	AutoRouteToPOComment  = "Auto-routed to PO from JMD Office receipt"
	AutoRouteToCVOComment = "Auto-forwarded to concerned CVO from Data Entry"
)

var contactPattern = regexp.MustCompile(`^[0-9+\-\s()]{7,20}$`)

type petitionStore interface {
	Create(ctx context.Context, p *models.Petition, program string, actor models.Actor) error
	Get(ctx context.Context, id int64) (*models.Petition, error)
	List(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, int, error)
}

type ledgerReader interface {
	ListByPetition(ctx context.Context, petitionID int64) ([]models.TrackingEntry, error)
}

type enquiryReportReader interface {
	Latest(ctx context.Context, petitionID int64) (*models.EnquiryReport, error)
}

type transitionRunner interface {
	Execute(ctx context.Context, cmd TransitionCommand) (*dto.TransitionResponse, error)
	Allowed(head *models.Petition, actor models.Actor) []string
}

type fileRefChecker interface {
	Verify(token string) error
}

// PetitionServiceConfig tunes intake.
type PetitionServiceConfig struct {
	SerialProgram string
	AutoRoute     bool
}

// PetitionService handles intake and read access to petitions.
type PetitionService struct {
	store     petitionStore
	ledger    ledgerReader
	reports   enquiryReportReader
	workflow  transitionRunner
	files     fileRefChecker
	validator *validator.Validate
	cfg       PetitionServiceConfig
	logger    *zap.Logger
}

// NewPetitionService constructs a PetitionService.
func NewPetitionService(store petitionStore, ledger ledgerReader, reports enquiryReportReader, runner transitionRunner, files fileRefChecker, validate *validator.Validate, cfg PetitionServiceConfig, logger *zap.Logger) *PetitionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SerialProgram == "" {
		cfg.SerialProgram = "VIG"
	}
	return &PetitionService{
		store:     store,
		ledger:    ledger,
		reports:   reports,
		workflow:  runner,
		files:     files,
		validator: validate,
		cfg:       cfg,
		logger:    logger,
	}
}

// Create validates the intake form, stores the head with its genesis entry and, when enabled,
// routes the petition to its first handler. Any routing failure keeps the petition received
// and is reported back instead of failing the request.
func (s *PetitionService) Create(ctx context.Context, req dto.CreatePetitionRequest, actor models.Actor) (*dto.CreatePetitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid petition payload")
	}
	p, err := s.buildPetition(req)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, p, s.cfg.SerialProgram, actor); err != nil {
		return nil, appErrors.Internal(err, "failed to create petition")
	}
	s.logger.Info("petition_created",
		zap.Int64("petition_id", p.ID),
		zap.String("sno", p.SNo),
		zap.String("received_at", p.ReceivedAt),
		zap.String("created_by", actor.UserID))

	resp := &dto.CreatePetitionResponse{Petition: p}
	if !s.cfg.AutoRoute {
		return resp, nil
	}

	cmd := TransitionCommand{PetitionID: p.ID, Actor: actor, Trusted: true}
	if p.ReceivedAt == models.ReceivedAtJMDOffice {
		cmd.Operation = workflow.OpSendForPermission
		cmd.Payload.Comments = AutoRouteToPOComment
	} else {
		cmd.Operation = workflow.OpForwardToCVO
		cmd.Payload.Comments = AutoRouteToCVOComment
		cmd.Payload.TargetCVO = p.Target()
	}
	routed, err := s.workflow.Execute(ctx, cmd)
	if err != nil {
		// The head is committed at this point and goes back to the caller either way.
		if errors.Is(err, appErrors.ErrNoHandler) {
			s.logger.Warn("petition_intake_unrouted", zap.Int64("petition_id", p.ID), zap.Error(err))
		} else {
			s.logger.Error("petition_intake_route_failed", zap.Int64("petition_id", p.ID), zap.Error(err))
		}
		resp.RoutingError = appErrors.FromError(err).Message
		return resp, nil
	}
	resp.Petition = routed.Petition
	return resp, nil
}

func (s *PetitionService) buildPetition(req dto.CreatePetitionRequest) (*models.Petition, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	receivedDate, err := time.Parse("2006-01-02", req.ReceivedDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "received_date must be YYYY-MM-DD")
	}

	p := &models.Petition{
		PetitionerName:   strings.TrimSpace(req.PetitionerName),
		Contact:          trimmedPtr(req.Contact),
		Place:            trimmedPtr(req.Place),
		Subject:          subject,
		PetitionType:     req.PetitionType,
		SourceOfPetition: req.SourceOfPetition,
		ReceivedAt:       req.ReceivedAt,
		ReceivedDate:     receivedDate,
		Remarks:          trimmedPtr(req.Remarks),
		EreceiptNo:       trimmedPtr(req.EreceiptNo),
		EreceiptFile:     trimmedPtr(req.EreceiptFile),
	}
	if p.PetitionerName == "" {
		p.PetitionerName = models.AnonymousPetitioner
	}
	if p.Contact != nil && !contactPattern.MatchString(*p.Contact) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "contact must be a valid phone number")
	}
	if req.SourceOfPetition == models.SourceGovt {
		if req.GovtInstitutionType == nil || strings.TrimSpace(*req.GovtInstitutionType) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "govt_institution_type is required for government petitions")
		}
		p.GovtInstitutionType = trimmedPtr(req.GovtInstitutionType)
	}
	if p.EreceiptFile != nil && s.files != nil {
		if err := s.files.Verify(*p.EreceiptFile); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "ereceipt_file is not a valid file reference")
		}
	}
	if req.EnquiryType != nil && *req.EnquiryType != "" {
		et := models.EnquiryType(*req.EnquiryType)
		p.EnquiryType = &et
	}

	permissionType := req.PermissionType
	if req.ReceivedAt == models.ReceivedAtJMDOffice {
		permissionType = models.PermissionTypeRequired
	} else {
		if permissionType == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "permission_type is required")
		}
		if req.TargetCVO == nil || !models.Jurisdiction(*req.TargetCVO).Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a valid target_cvo is required")
		}
		target := models.Jurisdiction(*req.TargetCVO)
		p.TargetCVO = &target
	}

	if permissionType == models.PermissionTypeDirect {
		p.RequiresPermission = false
		p.PermissionStatus = models.PermissionNotRequired
	} else {
		p.RequiresPermission = true
		p.PermissionStatus = models.PermissionPending
	}
	return p, nil
}

// Get returns the head with the operations actor may attempt on it.
func (s *PetitionService) Get(ctx context.Context, id int64, actor models.Actor) (*dto.PetitionDetail, error) {
	p, err := s.visible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &dto.PetitionDetail{Petition: p, AllowedOperations: s.workflow.Allowed(p, actor)}, nil
}

// List returns a page of petitions visible to actor.
func (s *PetitionService) List(ctx context.Context, q dto.PetitionListQuery, actor models.Actor) ([]models.Petition, *models.Pagination, error) {
	filter := models.PetitionFilter{
		Visibility: models.Visibility{UserID: actor.UserID, Role: actor.Role},
		Mode:       strings.ToLower(strings.TrimSpace(q.Mode)),
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if status := strings.ToLower(strings.TrimSpace(q.Status)); status != "" && status != models.ModeAll {
		st := models.PetitionStatus(status)
		if !st.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", q.Status))
		}
		filter.Status = &st
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	petitions, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list petitions")
	}
	return petitions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Ledger returns the ordered tracking entries of a petition.
func (s *PetitionService) Ledger(ctx context.Context, id int64, actor models.Actor) ([]models.TrackingEntry, error) {
	if _, err := s.visible(ctx, id, actor); err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListByPetition(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load ledger")
	}
	return entries, nil
}

// Report returns the latest enquiry report of a petition.
func (s *PetitionService) Report(ctx context.Context, id int64, actor models.Actor) (*models.EnquiryReport, error) {
	if _, err := s.visible(ctx, id, actor); err != nil {
		return nil, err
	}
	report, err := s.reports.Latest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no enquiry report submitted yet")
		}
		return nil, appErrors.Internal(err, "failed to load enquiry report")
	}
	return report, nil
}

// visible loads the head and rejects callers outside its audience. The current handler always sees it.
func (s *PetitionService) visible(ctx context.Context, id int64, actor models.Actor) (*models.Petition, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("petition %d not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load petition")
	}
	v := models.Visibility{UserID: actor.UserID, Role: actor.Role}
	if !v.Sees(p) && p.Handler() != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return p, nil
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
