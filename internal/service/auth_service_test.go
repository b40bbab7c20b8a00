package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	findErr          error
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.user == nil || m.user.Username != username {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.TokenHash] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type stubPendingCounter struct {
	count int
	err   error
}

func (s stubPendingCounter) CountPendingFor(ctx context.Context, userID string) (int, error) {
	return s.count, s.err
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour, Issuer: "vigilance-tracker"}
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	office := "apspdcl"
	return &models.User{ID: "u1", Username: "cvo.tirupathi", FullName: "CVO Tirupathi", PasswordHash: string(hash), IsActive: true, Role: models.RoleCVOAPSPDCL, CVOOffice: &office}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := NewAuthService(repo, stubPendingCounter{count: 4}, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "cvo.tirupathi", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, 4, res.PendingCount)
	assert.Equal(t, "apspdcl", res.User.CVOOffice)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	_, storedRaw := repo.refreshTokens[res.RefreshToken]
	assert.False(t, storedRaw, "raw refresh token must not be persisted")
	_, storedHash := repo.refreshTokens[hashRefreshToken(res.RefreshToken)]
	assert.True(t, storedHash)
}

func TestAuthServiceLoginPendingCountFailureIsSoft(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "password")}
	svc := NewAuthService(repo, stubPendingCounter{err: errors.New("db down")}, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "cvo.tirupathi", Password: "password"})
	require.NoError(t, err)
	assert.Zero(t, res.PendingCount)
}

func TestAuthServiceLoginRejections(t *testing.T) {
	inactive := activeUser(t, "password")
	inactive.IsActive = false

	tests := []struct {
		name     string
		user     *models.User
		username string
		password string
		code     string
	}{
		{name: "unknown user", user: activeUser(t, "password"), username: "nobody", password: "password", code: appErrors.ErrInvalidCredentials.Code},
		{name: "wrong password", user: activeUser(t, "password"), username: "cvo.tirupathi", password: "nope", code: appErrors.ErrInvalidCredentials.Code},
		{name: "inactive", user: inactive, username: "cvo.tirupathi", password: "password", code: appErrors.ErrInactiveAccount.Code},
		{name: "missing password", user: activeUser(t, "password"), username: "cvo.tirupathi", password: "", code: appErrors.ErrValidation.Code},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewAuthService(&mockAuthRepo{user: tc.user}, nil, validator.New(), zap.NewNop(), testAuthConfig())
			_, err := svc.Login(context.Background(), models.LoginRequest{Username: tc.username, Password: tc.password})
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := activeUser(t, "password")
	repo := &mockAuthRepo{user: user, refreshTokens: map[string]*models.RefreshToken{}}
	stored := &models.RefreshToken{ID: "rt1", UserID: user.ID, TokenHash: hashRefreshToken("token"), ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[stored.TokenHash] = stored

	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.NotNil(t, stored.RevokedAt)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		hashRefreshToken("token"): {ID: "rt1", UserID: "someone-else", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := NewAuthService(repo, nil, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "token", "u1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenCarriesJurisdiction(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, validator.New(), zap.NewNop(), testAuthConfig())
	user := activeUser(t, "password")
	token, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleCVOAPSPDCL, claims.Role)
	assert.Equal(t, "apspdcl", claims.CVOOffice)
	assert.Equal(t, models.Actor{UserID: "u1", Role: models.RoleCVOAPSPDCL, FullName: "CVO Tirupathi"}, claims.Actor())

	_, err = svc.ValidateToken(token + "x")
	assert.Error(t, err)
}
