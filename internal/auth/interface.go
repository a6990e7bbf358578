package auth

import (
	"context"

	"github.com/zfogg/paddock/internal/models"
)

// AuthServiceInterface defines the contract for authentication operations.
// Handlers depend on it so they can be tested without a real service.
type AuthServiceInterface interface {
	RegisterNativeUser(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	LoginNativeUser(ctx context.Context, req LoginRequest) (*LoginResult, error)

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)

	ValidateToken(tokenString string) (*models.User, error)
	GenerateTokenForUser(user *models.User) (*AuthResponse, error)

	GoogleEnabled() bool
	GetGoogleOAuthURL(state string) (string, error)
	HandleGoogleCallback(ctx context.Context, code string) (*AuthResponse, error)

	RequestPasswordReset(ctx context.Context, email string) (*models.PasswordReset, error)
	ResetPassword(ctx context.Context, token, newPassword, confirm string) error
	ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error

	BeginTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error)
	ConfirmTwoFactor(ctx context.Context, userID, code string) error
	DisableTwoFactor(ctx context.Context, userID, code string) error
	VerifyTwoFactorLogin(ctx context.Context, userID, code string) (*AuthResponse, error)
}

// Ensure Service implements AuthServiceInterface
var _ AuthServiceInterface = (*Service)(nil)
