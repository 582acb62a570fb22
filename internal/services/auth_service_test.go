package services_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ID = 42
		user.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Error(1)
}

func TestMain(m *testing.M) {
	log.Logger = zerolog.New(io.Discard)
	os.Exit(m.Run())
}

func parseClaims(t *testing.T, tokenString string) *services.Claims {
	t.Helper()
	claims := &services.Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	return claims
}

func TestAuthService_RegisterUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, 0)

	mockRepo.On("ExistsByUsernameOrEmail", ctx, "testuser", "test@example.com").Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Username == "testuser" &&
			bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password123")) == nil
	})).Return(nil).Once()

	user, token, err := authService.RegisterUser(ctx, "testuser", "test@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, uint(42), user.ID)
	assert.NotEqual(t, "password123", user.Password)

	claims := parseClaims(t, token)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "testuser", claims.Username)
	assert.InDelta(t, time.Now().Add(24*time.Hour).Unix(), claims.ExpiresAt, 5)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterUser_Conflict(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, 0)

	mockRepo.On("ExistsByUsernameOrEmail", ctx, "testuser", "test@example.com").Return(true, nil).Once()
	_, _, err := authService.RegisterUser(ctx, "testuser", "test@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrUserExists)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	// A racing registration passes the check but loses on the unique index.
	mockRepo.On("ExistsByUsernameOrEmail", ctx, "racer", "racer@example.com").Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Return(fmt.Errorf("failed to create user: %w", repositories.ErrDuplicate)).Once()
	_, _, err = authService.RegisterUser(ctx, "racer", "racer@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrUserExists)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{ID: 7, Username: "testuser", Email: "test@example.com", Password: string(hashedPassword)}

	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(user, nil)

	got, token, err := authService.LoginUser(ctx, "test@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	claims := parseClaims(t, token)
	assert.Equal(t, uint(7), claims.UserID)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), claims.ExpiresAt, 5)

	for _, wrong := range []string{"wrongpassword", "password1234", "Password123", "", "password12"} {
		_, _, err = authService.LoginUser(ctx, "test@example.com", wrong)
		assert.ErrorIs(t, err, services.ErrInvalidCredentials, "password %q", wrong)
	}

	mockRepo.On("GetByEmail", ctx, "nobody@example.com").
		Return(nil, fmt.Errorf("user with email nobody@example.com: %w", repositories.ErrNotFound)).Once()
	_, _, err = authService.LoginUser(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_GetProfile(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, 0)

	mockRepo.On("GetByID", ctx, uint(7)).Return(&models.User{ID: 7, Username: "testuser"}, nil).Once()
	user, err := authService.GetProfile(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)

	mockRepo.On("GetByID", ctx, uint(8)).Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.GetProfile(ctx, 8)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, 0)

	validToken, err := authService.IssueToken(&models.User{ID: 3, Username: "testuser"})
	require.NoError(t, err)

	claims, err := authService.ValidateToken(validToken)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
	assert.Equal(t, "testuser", claims.Username)

	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	other := services.NewAuthService(new(MockUserRepository), "another_secret", 0)
	foreignToken, _ := other.IssueToken(&models.User{ID: 3, Username: "testuser"})
	_, err = authService.ValidateToken(foreignToken)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, services.Claims{
		UserID:         3,
		Username:       "testuser",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Hour).Unix()},
	})
	expiredToken, _ := expired.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredToken)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, services.Claims{UserID: 3})
	noneToken, _ := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	_, err = authService.ValidateToken(noneToken)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}
