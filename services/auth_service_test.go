package services

import (
	"testing"
	"time"

	"chat-core/auth"
	"chat-core/domain"
	"chat-core/errors"
	"chat-core/mocks"
	"chat-core/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestTokens() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, newTestTokens())

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		email := "test@example.com"
		password := "ComplexPass123!"

		// The repository receives a hash, never the plain password.
		mockRepo.EXPECT().
			CreateLocal("Tester", email, gomock.Not(gomock.Eq(password))).
			DoAndReturn(func(name, email, hash string) (domain.User, error) {
				match, err := auth.ComparePassword(password, hash)
				require.NoError(t, err)
				require.True(t, match)
				return domain.User{ID: "u-1", Name: name, Email: email}, nil
			}).
			Times(1)

		session, err := svc.Register("Tester", email, password)

		req.NoError(err)
		req.NotEmpty(session.AccessToken)
		req.NotEmpty(session.RefreshToken)
		req.Equal("u-1", session.User.ID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateLocal(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register("Tester", "test@example.com", "alllowercasebutlong")

		req.ErrorIs(err, errors.ErrInvalidPassword)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateLocal(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("Tester", "duplicate@example.com", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, newTestTokens())

	hash, err := auth.HashPassword("ComplexPass123!")
	require.NoError(t, err)
	creds := repositories.Credentials{
		User:         domain.User{ID: "u-1", Email: "user@example.com"},
		PasswordHash: hash,
		Roles:        []string{"user"},
	}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().GetCredentials("user@example.com").Return(creds, nil)

		session, err := svc.Login("user@example.com", "ComplexPass123!")

		req.NoError(err)
		req.NotEmpty(session.AccessToken)
		req.Equal("u-1", session.User.ID)
	})

	t.Run("should fail with the wrong password", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().GetCredentials("user@example.com").Return(creds, nil)

		_, err := svc.Login("user@example.com", "WrongPass123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return the same error for an unknown email", func(t *testing.T) {
		req := require.New(t)

		// Enumeration resistance: unknown account and bad password are
		// indistinguishable to the caller.
		mockRepo.EXPECT().GetCredentials("ghost@example.com").Return(repositories.Credentials{}, errors.ErrNotFound)

		_, err := svc.Login("ghost@example.com", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := newTestTokens()
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should rotate both tokens from a valid refresh token", func(t *testing.T) {
		req := require.New(t)
		refresh, err := tokens.GenerateRefreshToken("u-1")
		req.NoError(err)

		mockRepo.EXPECT().GetByID("u-1").Return(domain.User{ID: "u-1"}, nil)

		session, err := svc.Refresh(refresh)

		req.NoError(err)
		req.NotEmpty(session.AccessToken)
		req.NotEmpty(session.RefreshToken)
		req.NotEqual(refresh, session.AccessToken)
	})

	t.Run("should reject a garbage token", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().GetByID(gomock.Any()).Times(0)

		_, err := svc.Refresh("not-a-token")

		req.ErrorIs(err, errors.ErrAuthenticationFailed)
	})
}
