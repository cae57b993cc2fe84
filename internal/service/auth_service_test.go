package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

type authRepoStub struct {
	userByEmail      *models.User
	userByID         *models.User
	refreshTokens    map[string]*models.RefreshToken
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedAll       bool
	passwordHash     string
}

func (m *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordHash = passwordHash
	return nil
}

func (m *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = true
	return nil
}

func (m *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthServiceForTest(repo *authRepoStub) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "curriculum-tracking-api",
	})
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "registrar@university.edu",
		FullName:     "Registry Officer",
		PasswordHash: string(hash),
		Role:         models.RoleRegistrar,
		Active:       true,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &authRepoStub{userByEmail: activeUser(t, "password")}
	svc := newAuthServiceForTest(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "registrar@university.edu", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleRegistrar, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &authRepoStub{userByEmail: activeUser(t, "password")}
	svc := newAuthServiceForTest(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "registrar@university.edu", Password: "nope"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthServiceForTest(&authRepoStub{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@university.edu", Password: "password"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "password")
	user.Active = false
	svc := newAuthServiceForTest(&authRepoStub{userByEmail: user})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password"})
	require.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &authRepoStub{userByEmail: activeUser(t, "password")}
	svc := newAuthServiceForTest(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "registrar@university.edu", Password: "password"})
	require.NoError(t, err)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := &authRepoStub{
		userByEmail: activeUser(t, "password"),
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt-1", UserID: "user-1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	svc := newAuthServiceForTest(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &authRepoStub{
		refreshTokens: map[string]*models.RefreshToken{
			"other": {ID: "rt-1", UserID: "someone-else", Token: "other", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := newAuthServiceForTest(repo)

	err := svc.Logout(context.Background(), "other", "user-1", models.LoginRequest{})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := &authRepoStub{userByEmail: activeUser(t, "old-password")}
	svc := newAuthServiceForTest(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "new-password-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, repo.passwordHash)
	assert.True(t, repo.revokedAll)
}

func TestAuthServiceChangePasswordOldMismatch(t *testing.T) {
	repo := &authRepoStub{userByEmail: activeUser(t, "old-password")}
	svc := newAuthServiceForTest(repo)

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "new-password-1",
	})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	repo := &authRepoStub{userByEmail: activeUser(t, "password")}
	svc := newAuthServiceForTest(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "registrar@university.edu", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleRegistrar, claims.Role)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
