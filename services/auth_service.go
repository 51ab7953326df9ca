package services

import (
	"fmt"

	"chat-core/auth"
	"chat-core/domain"
	"chat-core/errors"
	"chat-core/repositories"
)

type Session struct {
	AccessToken  string
	RefreshToken string
	User         domain.User
}

type IAuthService interface {
	Register(name, email, password string) (Session, error)
	Login(email, password string) (Session, error)
	// Refresh rotates both tokens from a valid refresh token.
	Refresh(refreshToken string) (Session, error)
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(name, email, password string) (Session, error) {
	valReq := auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}

	// Business rules first, before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens in the service layer so the repository never sees a
	// plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.CreateLocal(name, email, hashedPassword)
	if err != nil {
		return Session{}, err // Propagates ErrUserAlreadyExists when the email is taken
	}

	return s.issue(user, []string{"user"})
}

func (s *AuthService) Login(email, password string) (Session, error) {
	creds, err := s.users.GetCredentials(email)
	if err != nil {
		// Generic error to prevent user enumeration.
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, creds.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	return s.issue(creds.User, creds.Roles)
}

func (s *AuthService) Refresh(refreshToken string) (Session, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil {
		return Session{}, errors.ErrAuthenticationFailed
	}
	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		return Session{}, errors.ErrAuthenticationFailed
	}
	return s.issue(user, []string{"user"})
}

func (s *AuthService) issue(user domain.User, roles []string) (Session, error) {
	access, err := s.tokens.GenerateToken(user.ID, roles)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{AccessToken: access, RefreshToken: refresh, User: user}, nil
}
