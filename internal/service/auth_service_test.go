package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"fin-advisor/internal/dto"
	"fin-advisor/internal/models"
	"fin-advisor/internal/repository"
	"fin-advisor/pkg/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func (m *memoryUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[uuid.UUID]*models.User)
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateUser
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func newAuth() (*AuthService, *auth.JWTManager) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	return NewAuthService(&memoryUsers{}, jwtManager, zap.NewNop()), jwtManager
}

func TestAuthService_RegisterAndVerify(t *testing.T) {
	svc, jwtManager := newAuth()

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{Email: " Ann@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", resp.User.Email)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	userID, err := jwtManager.Verify(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc, _ := newAuth()
	req := &dto.RegisterRequest{Email: "ann@example.com", Password: "secret1"}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), &dto.RegisterRequest{Email: "ANN@example.com", Password: "other12"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestAuthService_RegisterInvalid(t *testing.T) {
	svc, _ := newAuth()
	for _, req := range []dto.RegisterRequest{
		{Email: "not-an-email", Password: "secret1"},
		{Email: "", Password: "secret1"},
		{Email: "ann@example.com", Password: "123"},
	} {
		_, err := svc.Register(context.Background(), &req)
		assert.ErrorIs(t, err, ErrInvalidAccount, req.Email)
	}
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := newAuth()
	_, err := svc.Register(context.Background(), &dto.RegisterRequest{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = svc.Login(context.Background(), &dto.LoginRequest{Email: "ann@example.com", Password: "wrong12"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), &dto.LoginRequest{Email: "bob@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc, _ := newAuth()
	reg, err := svc.Register(context.Background(), &dto.RegisterRequest{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	resp, err := svc.RefreshToken(context.Background(), reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, resp.User.ID)

	// access tokens are not accepted for refresh
	_, err = svc.RefreshToken(context.Background(), reg.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
