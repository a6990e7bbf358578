package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// OAuthUserInfo represents user info from the OAuth provider
type OAuthUserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// GoogleUserInfo represents Google OAuth user response
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleEnabled reports whether Google sign-in is configured
func (s *Service) GoogleEnabled() bool {
	return s.googleConfig != nil
}

// GetGoogleOAuthURL returns the Google consent URL for state
func (s *Service) GetGoogleOAuthURL(state string) (string, error) {
	if s.googleConfig == nil {
		return "", ErrOAuthNotConfigured
	}
	return s.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// HandleGoogleCallback exchanges code and signs the user in, creating or
// linking the account by email
func (s *Service) HandleGoogleCallback(ctx context.Context, code string) (*AuthResponse, error) {
	if s.googleConfig == nil {
		return nil, ErrOAuthNotConfigured
	}
	info, err := s.getGoogleUserInfo(ctx, code)
	if err != nil {
		logger.Log.Warn("Google sign-in failed", zap.Error(err))
		return nil, fmt.Errorf("failed to get Google user info: %w", err)
	}
	return s.FindOrCreateGoogleUser(ctx, info)
}

// FindOrCreateGoogleUser resolves a Google identity to a user: first by
// Google ID, then by email (linking the account), else a new user
func (s *Service) FindOrCreateGoogleUser(ctx context.Context, info *OAuthUserInfo) (*AuthResponse, error) {
	if info.ID == "" || info.Email == "" {
		return nil, errors.New("google profile is missing id or email")
	}
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("google_id = ?", info.ID).First(&user).Error
	if err == nil {
		s.touch(ctx, &user)
		return s.generateAuthResponse(&user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	existing, err := s.FindUserByEmail(ctx, info.Email)
	if err == nil {
		updates := map[string]interface{}{"google_id": info.ID}
		if existing.AvatarURL == "" && info.AvatarURL != "" {
			updates["avatar_url"] = info.AvatarURL
		}
		if err := db.Model(existing).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to link Google account: %w", err)
		}
		logger.Log.Info("Linked Google account", logger.WithUserID(existing.ID))
		return s.generateAuthResponse(existing)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	return s.createUserWithGoogle(ctx, info)
}

func (s *Service) createUserWithGoogle(ctx context.Context, info *OAuthUserInfo) (*AuthResponse, error) {
	username, err := s.ensureUniqueUsername(ctx, generateUsernameFromName(info.Name, info.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to generate unique username: %w", err)
	}

	googleID := info.ID
	displayName := strings.TrimSpace(info.Name)
	if displayName == "" {
		displayName = username
	}
	user := models.User{
		Email:          normalizeEmail(info.Email),
		Username:       username,
		DisplayName:    displayName,
		AvatarURL:      info.AvatarURL,
		GoogleID:       &googleID,
		OnboardingStep: "profile",
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Log.Info("User registered with Google", logger.WithUserID(user.ID), zap.String("username", username))
	return s.generateAuthResponse(&user)
}

func (s *Service) getGoogleUserInfo(ctx context.Context, code string) (*OAuthUserInfo, error) {
	// oauth2 sends the token exchange and the authorized client through this
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.googleHTTP)

	token, err := s.googleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	resp, err := s.googleConfig.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body)
	}

	var g GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	if !g.EmailVerified {
		return nil, errors.New("google email is not verified")
	}

	return &OAuthUserInfo{
		ID:        g.Sub,
		Email:     g.Email,
		Name:      g.Name,
		AvatarURL: g.Picture,
	}, nil
}

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// generateUsernameFromName derives a valid username candidate from a display
// name, falling back to the email's local part
func generateUsernameFromName(name, emailAddr string) string {
	base := strings.ToLower(strings.TrimSpace(name))
	base = strings.ReplaceAll(base, " ", "_")
	base = nonUsernameChars.ReplaceAllString(base, "")
	if len(base) < 3 {
		local, _, _ := strings.Cut(strings.ToLower(emailAddr), "@")
		base = nonUsernameChars.ReplaceAllString(local, "")
	}
	if len(base) < 3 {
		base = "fan_" + base
	}
	if len(base) > 16 {
		base = base[:16]
	}
	return base
}

// ensureUniqueUsername appends a number until base is free
func (s *Service) ensureUniqueUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 1; i <= 999; i++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("LOWER(username) = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", ErrUsernameExists
}
