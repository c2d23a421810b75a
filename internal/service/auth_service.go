package service

import (
	"fmt"
	"time"

	"lifelink-backend/internal/apperrors"
	"lifelink-backend/internal/models"
	"lifelink-backend/pkg/utils"

	"go.uber.org/zap"
)

// UserStore is the identity persistence abstraction used by AuthService
type UserStore interface {
	FindUserByEmail(email string) (*models.User, error)
	CreateUser(user *models.User) error
	CreateRefreshToken(token *models.RefreshToken) error
	FindRefreshTokenByHash(hash string) (*models.RefreshToken, error)
	RevokeRefreshTokenByHash(hash string) error
}

type AuthService struct {
	users  UserStore
	audit  AuditRecorder
	logger *zap.Logger
}

func NewAuthService(users UserStore, audit AuditRecorder, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

// RegisterInput carries the registration payload after handler binding
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Role       string
	Phone      string
	BloodGroup string
	Address    string
}

// LoginResponse represents the response structure for login
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(email, password string) (*LoginResponse, error) {
	user, err := s.users.FindUserByEmail(email)
	if err != nil {
		return nil, apperrors.Authentication("invalid credentials")
	}

	if !utils.ComparePassword(user.PasswordHash, password) {
		return nil, apperrors.Authentication("invalid credentials")
	}

	response, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.recordAudit(user.ID, "user_login", fmt.Sprintf("User %s logged in", email))
	return response, nil
}

// Register creates a new user account. Duplicate emails surface as a
// conflict, mapped from the uniqueness check.
func (s *AuthService) Register(input RegisterInput) (*LoginResponse, error) {
	existing, err := s.users.FindUserByEmail(input.Email)
	if err == nil && existing != nil {
		return nil, apperrors.Conflict("email already registered")
	}

	passwordHash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         input.Role,
		Phone:        input.Phone,
		BloodGroup:   input.BloodGroup,
		Address:      input.Address,
	}
	if err := s.users.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	response, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	s.recordAudit(user.ID, "user_registration",
		fmt.Sprintf("User %s registered as %s", input.Email, input.Role))
	return response, nil
}

// RefreshAccessToken generates a new access token from a refresh token
func (s *AuthService) RefreshAccessToken(refreshToken string) (string, error) {
	tokenHash := utils.HashRefreshToken(refreshToken)

	token, err := s.users.FindRefreshTokenByHash(tokenHash)
	if err != nil {
		return "", apperrors.Authentication("invalid or revoked refresh token")
	}

	if time.Now().After(token.ExpiresAt) {
		return "", apperrors.Authentication("refresh token expired")
	}

	accessToken, err := utils.GenerateAccessToken(token.User.ID, token.User.Role, token.User.Name)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, nil
}

// Logout revokes a refresh token
func (s *AuthService) Logout(refreshToken string) error {
	tokenHash := utils.HashRefreshToken(refreshToken)

	if err := s.users.RevokeRefreshTokenByHash(tokenHash); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) issueTokens(user *models.User) (*LoginResponse, error) {
	accessToken, err := utils.GenerateAccessToken(user.ID, user.Role, user.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	tokenHash := utils.HashRefreshToken(refreshToken)
	refreshTokenModel := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(utils.GetRefreshTokenExpiry()),
	}
	if err := s.users.CreateRefreshToken(refreshTokenModel); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}

func (s *AuthService) recordAudit(userID uint, action, details string) {
	if err := s.audit.CreateAuditLog(&userID, action, details); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.Error(err))
	}
}
