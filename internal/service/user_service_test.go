package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	listUsers  []models.User
	listCount  int
	listErr    error
	lastFilter models.UserFilter
	auditLogs  []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) SetSupervisor(ctx context.Context, inspectorID string, cvoID *string) error {
	user, ok := m.users[inspectorID]
	if !ok {
		return sql.ErrNoRows
	}
	user.AssignedCVOID = cvoID
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Username: "po"}}, listCount: 1}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	users, pagination, err := svc.List(context.Background(), dto.UserListQuery{Role: "PO", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	require.NotNil(t, repo.lastFilter.Role)
	assert.Equal(t, models.RolePO, *repo.lastFilter.Role)

	_, _, err = svc.List(context.Background(), dto.UserListQuery{Role: "principal"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceInspectorsScopedToCVO(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "i1", Role: models.RoleInspector}}}
	svc := NewUserService(repo, nil, nil)

	users, err := svc.Inspectors(context.Background(), models.Actor{UserID: "cvo1", Role: models.RoleCVOAPEPDCL})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	require.NotNil(t, repo.lastFilter.AssignedCVOID)
	assert.Equal(t, "cvo1", *repo.lastFilter.AssignedCVOID)

	_, err = svc.Inspectors(context.Background(), models.Actor{UserID: "super", Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.AssignedCVOID)

	_, err = svc.Inspectors(context.Background(), models.Actor{UserID: "de", Role: models.RoleDataEntry})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceSetSupervisor(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"i1":   {ID: "i1", Role: models.RoleInspector, IsActive: true},
		"cvo1": {ID: "cvo1", Role: models.RoleCVOAPSPDCL, IsActive: true},
		"po":   {ID: "po", Role: models.RolePO, IsActive: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	actor := &models.JWTClaims{UserID: "super", Role: models.RoleSuperAdmin}

	user, err := svc.SetSupervisor(context.Background(), "i1", dto.SetSupervisorRequest{CVOID: "cvo1"}, actor, models.LoginRequest{})
	require.NoError(t, err)
	require.NotNil(t, user.AssignedCVOID)
	assert.Equal(t, "cvo1", *user.AssignedCVOID)
	assert.Equal(t, "cvo1", *repo.users["i1"].AssignedCVOID)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionSupervisorSet, repo.auditLogs[0].Action)

	user, err = svc.SetSupervisor(context.Background(), "i1", dto.SetSupervisorRequest{}, actor, models.LoginRequest{})
	require.NoError(t, err)
	assert.Nil(t, user.AssignedCVOID)
}

func TestUserServiceSetSupervisorRejections(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"i1":   {ID: "i1", Role: models.RoleInspector, IsActive: true},
		"cvo1": {ID: "cvo1", Role: models.RoleCVOAPSPDCL, IsActive: false},
		"po":   {ID: "po", Role: models.RolePO, IsActive: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	tests := []struct {
		name        string
		inspectorID string
		cvoID       string
		code        string
	}{
		{name: "unknown inspector", inspectorID: "nobody", cvoID: "cvo1", code: appErrors.ErrNotFound.Code},
		{name: "not an inspector", inspectorID: "po", cvoID: "cvo1", code: appErrors.ErrValidation.Code},
		{name: "supervisor not a cvo", inspectorID: "i1", cvoID: "po", code: appErrors.ErrValidation.Code},
		{name: "inactive supervisor", inspectorID: "i1", cvoID: "cvo1", code: appErrors.ErrValidation.Code},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SetSupervisor(context.Background(), tc.inspectorID, dto.SetSupervisorRequest{CVOID: tc.cvoID}, nil, models.LoginRequest{})
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, repo.auditLogs)
}
