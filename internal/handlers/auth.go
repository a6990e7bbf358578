package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zfogg/paddock/internal/auth"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
)

const oauthStateCookie = "paddock_oauth_state"

// AuthHandlers serves the /auth routes and owns the session middleware
type AuthHandlers struct {
	auth   auth.AuthServiceInterface
	secure bool
}

// NewAuthHandlers creates auth handlers. secure marks the OAuth state
// cookie Secure, which production needs and local http cannot use.
func NewAuthHandlers(svc auth.AuthServiceInterface, secure bool) *AuthHandlers {
	return &AuthHandlers{auth: svc, secure: secure}
}

// AuthMiddleware validates the bearer token and loads the user
func (h *AuthHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			util.RespondUnauthorized(c, "no token provided")
			c.Abort()
			return
		}

		user, err := h.auth.ValidateToken(token)
		if err != nil {
			util.RespondUnauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

// OptionalAuthMiddleware loads the user when a valid token is present and
// lets the request through either way
func (h *AuthHandlers) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if user, err := h.auth.ValidateToken(token); err == nil {
				c.Set("user_id", user.ID)
				c.Set("user", user)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Register creates a native account
// POST /api/v1/auth/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !util.BindJSON(c, &req) {
		return
	}

	resp, err := h.auth.RegisterNativeUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login signs in with email and password. Accounts with two-factor get
// {requires_2fa, user_id} and finish at /auth/2fa/verify.
// POST /api/v1/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !util.BindJSON(c, &req) {
		return
	}

	result, err := h.auth.LoginNativeUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.RequiresTwoFactor {
		c.JSON(http.StatusOK, gin.H{"requires_2fa": true, "user_id": result.UserID})
		return
	}
	c.JSON(http.StatusOK, result.AuthResponse)
}

// VerifyTwoFactor completes a login that needed a TOTP code
// POST /api/v1/auth/2fa/verify
func (h *AuthHandlers) VerifyTwoFactor(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Code   string `json:"code" binding:"required,len=6,numeric"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	resp, err := h.auth.VerifyTwoFactorLogin(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// EnableTwoFactor starts TOTP enrollment
// POST /api/v1/auth/2fa/enable
func (h *AuthHandlers) EnableTwoFactor(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	setup, err := h.auth.BeginTwoFactor(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

type twoFactorCodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// ConfirmTwoFactor activates TOTP after the first valid code
// POST /api/v1/auth/2fa/confirm
func (h *AuthHandlers) ConfirmTwoFactor(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req twoFactorCodeRequest
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.auth.ConfirmTwoFactor(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"two_factor_enabled": true})
}

// DisableTwoFactor turns TOTP off; it takes a current code
// POST /api/v1/auth/2fa/disable
func (h *AuthHandlers) DisableTwoFactor(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req twoFactorCodeRequest
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.auth.DisableTwoFactor(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"two_factor_enabled": false})
}

// ForgotPassword always answers 200 so it cannot be used to probe for
// accounts
// POST /api/v1/auth/password/forgot
func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	if _, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		logger.Log.Warn("Password reset request failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "If that account exists, a reset link is on its way"})
}

// ResetPassword sets a new password from a reset token
// POST /api/v1/auth/password/reset
func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req struct {
		Token           string `json:"token" binding:"required"`
		Password        string `json:"password" binding:"required"`
		PasswordConfirm string `json:"password_confirm" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password, req.PasswordConfirm); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// ChangePassword replaces the password of the signed-in user
// POST /api/v1/auth/password/change
func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		Password        string `json:"password" binding:"required"`
		PasswordConfirm string `json:"password_confirm" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.Password, req.PasswordConfirm)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// GoogleLogin redirects to Google's consent screen
// GET /api/v1/auth/google
func (h *AuthHandlers) GoogleLogin(c *gin.Context) {
	if !h.auth.GoogleEnabled() {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("google sign-in"))
		return
	}

	state := uuid.New().String()
	url, err := h.auth.GetGoogleOAuthURL(state)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.secure, true)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback exchanges the authorization code for a session
// GET /api/v1/auth/google/callback
func (h *AuthHandlers) GoogleCallback(c *gin.Context) {
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		util.RespondBadRequest(c, "invalid oauth state")
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.secure, true)

	code := c.Query("code")
	if code == "" {
		util.RespondBadRequest(c, "missing authorization code")
		return
	}

	resp, err := h.auth.HandleGoogleCallback(c.Request.Context(), code)
	if err != nil {
		logger.Log.Warn("Google sign-in failed", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the signed-in account
// GET /api/v1/auth/me
func (h *AuthHandlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "email": user.Email})
}
