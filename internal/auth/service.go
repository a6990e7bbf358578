package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zfogg/paddock/internal/email"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/telemetry"
	"github.com/zfogg/paddock/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	// TokenTTL is how long a session token is valid
	TokenTTL = 24 * time.Hour
	// ResetTokenTTL is how long a password reset link works
	ResetTokenTTL = time.Hour
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrUsernameExists      = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrPasswordNotSet      = errors.New("account has no password, sign in with Google")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrInvalidToken        = errors.New("invalid token")
	ErrOAuthNotConfigured  = errors.New("google sign-in is not configured")
	ErrTwoFactorRequired   = errors.New("two-factor code required")
	ErrInvalidTwoFactor    = errors.New("invalid two-factor code")
	ErrTwoFactorNotPending = errors.New("two-factor setup has not been started")
	ErrTwoFactorEnabled    = errors.New("two-factor is already enabled")
	ErrTwoFactorDisabled   = errors.New("two-factor is not enabled")
)

// Service handles all authentication operations
type Service struct {
	db           *gorm.DB
	jwtSecret    []byte
	googleConfig *oauth2.Config
	googleHTTP   *http.Client
	userInfoURL  string
	mailer       email.Sender
	now          func() time.Time
}

// NewService creates a new authentication service. googleConfig and mailer
// may be nil.
func NewService(db *gorm.DB, jwtSecret []byte, googleConfig *oauth2.Config, mailer email.Sender) *Service {
	return &Service{
		db:           db,
		jwtSecret:    jwtSecret,
		googleConfig: googleConfig,
		googleHTTP: telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: "google-oauth",
			Timeout:     10 * time.Second,
		}),
		userInfoURL: googleUserInfoURL,
		mailer:      mailer,
		now:         time.Now,
	}
}

// Claims is the session token payload
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// LoginResult is either a session or a pending second factor
type LoginResult struct {
	*AuthResponse
	RequiresTwoFactor bool   `json:"requires_2fa,omitempty"`
	UserID            string `json:"user_id,omitempty"`
}

// RegisterRequest represents native registration request
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email,max=254"`
	Username        string `json:"username" binding:"required,username"`
	DisplayName     string `json:"display_name" binding:"required,min=1,max=50"`
	Password        string `json:"password" binding:"required,password"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
}

// LoginRequest represents native login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// RegisterNativeUser creates a new user with email/password
func (s *Service) RegisterNativeUser(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := validation.CheckPasswordPair(req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}
	if !validation.ValidUsername(req.Username) {
		return nil, validation.ErrUsernameInvalid
	}

	db := s.db.WithContext(ctx)
	emailAddr := normalizeEmail(req.Email)

	var count int64
	if err := db.Model(&models.User{}).Where("LOWER(email) = ?", emailAddr).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	if err := db.Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(req.Username)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameExists
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:          emailAddr,
		Username:       req.Username,
		DisplayName:    strings.TrimSpace(req.DisplayName),
		PasswordHash:   &hash,
		OnboardingStep: "profile",
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Log.Info("User registered", logger.WithUserID(user.ID), zap.String("username", user.Username))
	return s.generateAuthResponse(&user)
}

// LoginNativeUser authenticates with email/password. Accounts with two-factor
// enabled get RequiresTwoFactor instead of a token.
func (s *Service) LoginNativeUser(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrPasswordNotSet
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		return &LoginResult{RequiresTwoFactor: true, UserID: user.ID}, nil
	}

	s.touch(ctx, user)
	resp, err := s.generateAuthResponse(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AuthResponse: resp}, nil
}

// FindUserByEmail finds user by email (case-insensitive)
func (s *Service) FindUserByEmail(ctx context.Context, emailAddr string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", normalizeEmail(emailAddr)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// GetUser loads a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// GenerateTokenForUser creates a session for user
func (s *Service) GenerateTokenForUser(user *models.User) (*AuthResponse, error) {
	return s.generateAuthResponse(user)
}

func (s *Service) generateAuthResponse(user *models.User) (*AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(TokenTTL)

	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      user,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken verifies a token's signature and expiry without touching the
// database
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken validates a token and loads the current user
func (s *Service) ValidateToken(tokenString string) (*models.User, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("%w: user not found", ErrInvalidToken)
	}
	return &user, nil
}

// RequestPasswordReset creates a reset token and emails it. Unknown and
// password-less accounts return (nil, nil) so callers cannot tell them
// apart.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (*models.PasswordReset, error) {
	user, err := s.FindUserByEmail(ctx, emailAddr)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, nil
	}

	tokenStr, err := randomToken(32)
	if err != nil {
		return nil, err
	}

	reset := models.PasswordReset{
		UserID:    user.ID,
		Token:     tokenStr,
		ExpiresAt: s.now().Add(ResetTokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(&reset).Error; err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, tokenStr); err != nil {
			logger.Log.Error("Failed to send password reset email", logger.WithUserID(user.ID), zap.Error(err))
		}
	} else {
		logger.Log.Warn("Email not configured, password reset link not sent", logger.WithUserID(user.ID))
	}

	return &reset, nil
}

// ResetPassword consumes a reset token and sets a new password
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, confirm string) error {
	if err := validation.CheckPasswordPair(newPassword, confirm); err != nil {
		return err
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset models.PasswordReset
		err := tx.Where("token = ? AND used = ? AND expires_at > ?", token, false, s.now()).First(&reset).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		if err := tx.Model(&models.User{}).Where("id = ?", reset.UserID).
			Update("password_hash", hash).Error; err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		// Spend every outstanding token for the account, not just this one
		return tx.Model(&models.PasswordReset{}).
			Where("user_id = ? AND used = ?", reset.UserID, false).
			Update("used", true).Error
	})
}

// ChangePassword replaces the password of a signed-in user
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == nil {
		return ErrPasswordNotSet
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if err := validation.CheckPasswordPair(newPassword, confirm); err != nil {
		return err
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error
}

func (s *Service) touch(ctx context.Context, user *models.User) {
	now := s.now()
	user.LastActiveAt = &now
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("last_active_at", now).Error; err != nil {
		logger.Log.Debug("Failed to update last_active_at", logger.WithUserID(user.ID), zap.Error(err))
	}
}

func hashPassword(p string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
