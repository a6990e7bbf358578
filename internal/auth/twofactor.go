package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/zfogg/paddock/internal/logger"
)

// otpIssuer is shown in authenticator apps
const otpIssuer = "Paddock"

// TwoFactorSetup is returned when enrollment starts
type TwoFactorSetup struct {
	Secret    string `json:"secret"`      // base32, for manual entry
	QRCodeURL string `json:"qr_code_url"` // otpauth:// URL
}

// BeginTwoFactor generates a TOTP secret for userID. It is stored but not
// active until ConfirmTwoFactor sees a valid code.
func (s *Service) BeginTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	secret := key.Secret()
	if err := s.db.WithContext(ctx).Model(user).Update("two_factor_secret", secret).Error; err != nil {
		return nil, err
	}

	return &TwoFactorSetup{Secret: secret, QRCodeURL: key.URL()}, nil
}

// ConfirmTwoFactor activates a pending secret
func (s *Service) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return ErrTwoFactorEnabled
	}
	if user.TwoFactorSecret == nil {
		return ErrTwoFactorNotPending
	}
	if !s.validCode(*user.TwoFactorSecret, code) {
		return ErrInvalidTwoFactor
	}

	logger.Log.Info("Two-factor enabled", logger.WithUserID(userID))
	return s.db.WithContext(ctx).Model(user).Update("two_factor_enabled", true).Error
}

// DisableTwoFactor turns two-factor off after checking a current code
func (s *Service) DisableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return ErrTwoFactorDisabled
	}
	if !s.validCode(*user.TwoFactorSecret, code) {
		return ErrInvalidTwoFactor
	}

	logger.Log.Info("Two-factor disabled", logger.WithUserID(userID))
	return s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"two_factor_enabled": false,
		"two_factor_secret":  nil,
	}).Error
}

// VerifyTwoFactorLogin finishes a login that returned RequiresTwoFactor
func (s *Service) VerifyTwoFactorLogin(ctx context.Context, userID, code string) (*AuthResponse, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, ErrInvalidTwoFactor
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return nil, ErrTwoFactorDisabled
	}
	if !s.validCode(*user.TwoFactorSecret, code) {
		return nil, ErrInvalidTwoFactor
	}

	s.touch(ctx, user)
	return s.generateAuthResponse(user)
}

// validCode accepts the current step and one step either side for clock
// drift
func (s *Service) validCode(secret, code string) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
