package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetSupervisor(ctx context.Context, inspectorID string, cvoID *string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService exposes the officer directory and the inspector to CVO mapping.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, q dto.UserListQuery) ([]models.User, *models.Pagination, error) {
	filter := models.UserFilter{
		Active:    q.Active,
		Search:    strings.TrimSpace(q.Search),
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Role != "" {
		role := models.UserRole(strings.ToLower(q.Role))
		if !role.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
		}
		filter.Role = &role
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Inspectors lists active field inspectors. A CVO or DSP only sees the inspectors mapped to them.
func (s *UserService) Inspectors(ctx context.Context, actor models.Actor) ([]models.User, error) {
	role := models.RoleInspector
	active := true
	filter := models.UserFilter{Role: &role, Active: &active, PageSize: 100, SortBy: "full_name", SortOrder: "ASC"}
	if actor.Role.IsCVO() {
		id := actor.UserID
		filter.AssignedCVOID = &id
	} else if actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.ErrForbidden
	}

	users, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list inspectors")
	}
	return users, nil
}

// SetSupervisor maps an inspector to the CVO or DSP who assigns them. An empty CVO id clears the mapping.
func (s *UserService) SetSupervisor(ctx context.Context, inspectorID string, req dto.SetSupervisorRequest, actor *models.JWTClaims, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid supervisor payload")
	}

	inspector, err := s.get(ctx, inspectorID, "inspector not found")
	if err != nil {
		return nil, err
	}
	if inspector.Role != models.RoleInspector {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a field inspector")
	}

	var cvoID *string
	if id := strings.TrimSpace(req.CVOID); id != "" {
		cvo, err := s.get(ctx, id, "supervisor not found")
		if err != nil {
			return nil, err
		}
		if !cvo.Role.IsCVO() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "supervisor must be a CVO or DSP")
		}
		if !cvo.IsActive {
			return nil, appErrors.Clone(appErrors.ErrValidation, "supervisor account is inactive")
		}
		cvoID = &cvo.ID
	}

	if err := s.repo.SetSupervisor(ctx, inspector.ID, cvoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inspector not found")
		}
		return nil, appErrors.Internal(err, "failed to update supervisor")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"assigned_cvo_id": inspector.AssignedCVOID})
	newPayload, _ := json.Marshal(map[string]interface{}{"assigned_cvo_id": cvoID})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionSupervisorSet,
		Resource:   "users",
		ResourceID: &inspector.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record supervisor audit log", zap.Error(err))
	}

	inspector.AssignedCVOID = cvoID
	return inspector, nil
}

func (s *UserService) get(ctx context.Context, id, notFound string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}
