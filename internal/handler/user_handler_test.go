package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/middleware"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

type userServiceMock struct {
	lastQuery     dto.UserListQuery
	lastInspector string
	lastCVO       string
}

func (m *userServiceMock) List(ctx context.Context, q dto.UserListQuery) ([]models.User, *models.Pagination, error) {
	m.lastQuery = q
	return []models.User{}, &models.Pagination{Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *userServiceMock) Inspectors(ctx context.Context, actor models.Actor) ([]models.User, error) {
	return []models.User{{ID: "insp-1", Role: models.RoleInspector}}, nil
}

func (m *userServiceMock) SetSupervisor(ctx context.Context, inspectorID string, req dto.SetSupervisorRequest, actor *models.JWTClaims, meta models.LoginRequest) (*models.User, error) {
	m.lastInspector = inspectorID
	m.lastCVO = req.CVOID
	cvo := req.CVOID
	return &models.User{ID: inspectorID, Role: models.RoleInspector, AssignedCVOID: &cvo}, nil
}

func TestUserHandlerListParsesQuery(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)
	c, w := newGinContext(http.MethodGet, "/users?role=inspector&active=true&page=2&page_size=5&search=ravi", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inspector", svc.lastQuery.Role)
	require.NotNil(t, svc.lastQuery.Active)
	assert.True(t, *svc.lastQuery.Active)
	assert.Equal(t, 2, svc.lastQuery.Page)
	assert.Equal(t, 5, svc.lastQuery.PageSize)
	assert.Equal(t, "ravi", svc.lastQuery.Search)
}

func TestUserHandlerInspectorsRequiresAuth(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{})
	c, w := newGinContext(http.MethodGet, "/users/inspectors", nil)

	handler.Inspectors(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/users/inspectors", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "cvo-1", Role: models.RoleCVOAPSPDCL})
	handler.Inspectors(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserHandlerSetSupervisor(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)
	c, w := newGinContext(http.MethodPut, "/users/insp-1/supervisor", []byte(`{"cvo_id":"cvo-1"}`))
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleSuperAdmin})

	handler.SetSupervisor(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "insp-1", svc.lastInspector)
	assert.Equal(t, "cvo-1", svc.lastCVO)
}
