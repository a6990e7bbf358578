package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/paddock/internal/models"
)

// MockCall records a method call for assertion
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockAuthService is a mock implementation of AuthServiceInterface for testing.
// Override the Func fields to script behaviour; otherwise it serves Users.
type MockAuthService struct {
	mu sync.Mutex

	Calls []MockCall

	RegisterNativeUserFunc   func(req RegisterRequest) (*AuthResponse, error)
	LoginNativeUserFunc      func(req LoginRequest) (*LoginResult, error)
	ValidateTokenFunc        func(tokenString string) (*models.User, error)
	HandleGoogleCallbackFunc func(code string) (*AuthResponse, error)
	RequestPasswordResetFunc func(email string) (*models.PasswordReset, error)
	ResetPasswordFunc        func(token, newPassword, confirm string) error
	VerifyTwoFactorFunc      func(userID, code string) (*AuthResponse, error)

	// Default error to return
	DefaultError error

	// GoogleDisabled makes the Google methods report ErrOAuthNotConfigured
	GoogleDisabled bool

	// Users keyed by email
	Users map[string]*models.User
}

// NewMockAuthService creates a new mock auth service with sensible defaults
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{
		Calls: make([]MockCall, 0),
		Users: make(map[string]*models.User),
	}
}

func (m *MockAuthService) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCallsForMethod returns calls for a specific method
func (m *MockAuthService) GetCallsForMethod(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []MockCall
	for _, call := range m.Calls {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

// AssertCalled checks if a method was called at least once
func (m *MockAuthService) AssertCalled(method string) bool {
	return len(m.GetCallsForMethod(method)) > 0
}

// AddUser adds a test user to the mock service
func (m *MockAuthService) AddUser(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	m.Users[normalizeEmail(user.Email)] = user
}

func (m *MockAuthService) lookup(email string) (*models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[normalizeEmail(email)]
	return u, ok
}

func (m *MockAuthService) byID(id string) (*models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			return u, true
		}
	}
	return nil, false
}

func mockResponse(user *models.User) *AuthResponse {
	return &AuthResponse{
		Token:     "mock_token_" + user.ID,
		User:      user,
		ExpiresAt: time.Now().Add(TokenTTL),
	}
}

func (m *MockAuthService) RegisterNativeUser(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	m.recordCall("RegisterNativeUser", req)
	if m.RegisterNativeUserFunc != nil {
		return m.RegisterNativeUserFunc(req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	if _, exists := m.lookup(req.Email); exists {
		return nil, ErrUserExists
	}

	user := &models.User{
		Email:       normalizeEmail(req.Email),
		Username:    req.Username,
		DisplayName: req.DisplayName,
	}
	m.AddUser(user)
	return mockResponse(user), nil
}

func (m *MockAuthService) LoginNativeUser(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	m.recordCall("LoginNativeUser", req)
	if m.LoginNativeUserFunc != nil {
		return m.LoginNativeUserFunc(req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user, exists := m.lookup(req.Email)
	if !exists {
		return nil, ErrInvalidCredentials
	}
	if user.TwoFactorEnabled {
		return &LoginResult{RequiresTwoFactor: true, UserID: user.ID}, nil
	}
	return &LoginResult{AuthResponse: mockResponse(user)}, nil
}

func (m *MockAuthService) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.recordCall("FindUserByEmail", email)
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user, exists := m.lookup(email)
	if !exists {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (m *MockAuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	m.recordCall("GetUser", userID)
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user, ok := m.byID(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ValidateToken accepts tokens minted by this mock
func (m *MockAuthService) ValidateToken(tokenString string) (*models.User, error) {
	m.recordCall("ValidateToken", tokenString)
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	const prefix = "mock_token_"
	if len(tokenString) > len(prefix) && tokenString[:len(prefix)] == prefix {
		if user, ok := m.byID(tokenString[len(prefix):]); ok {
			return user, nil
		}
	}
	return nil, ErrInvalidToken
}

func (m *MockAuthService) GenerateTokenForUser(user *models.User) (*AuthResponse, error) {
	m.recordCall("GenerateTokenForUser", user.ID)
	return mockResponse(user), nil
}

func (m *MockAuthService) GoogleEnabled() bool {
	return !m.GoogleDisabled
}

func (m *MockAuthService) GetGoogleOAuthURL(state string) (string, error) {
	m.recordCall("GetGoogleOAuthURL", state)
	if m.GoogleDisabled {
		return "", ErrOAuthNotConfigured
	}
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state, nil
}

func (m *MockAuthService) HandleGoogleCallback(ctx context.Context, code string) (*AuthResponse, error) {
	m.recordCall("HandleGoogleCallback", code)
	if m.HandleGoogleCallbackFunc != nil {
		return m.HandleGoogleCallbackFunc(code)
	}
	if m.GoogleDisabled {
		return nil, ErrOAuthNotConfigured
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user := &models.User{Email: code + "@gmail.com", Username: code, DisplayName: code}
	m.AddUser(user)
	return mockResponse(user), nil
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) (*models.PasswordReset, error) {
	m.recordCall("RequestPasswordReset", email)
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(email)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user, ok := m.lookup(email)
	if !ok {
		return nil, nil
	}
	return &models.PasswordReset{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(ResetTokenTTL),
	}, nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword, confirm string) error {
	m.recordCall("ResetPassword", token)
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(token, newPassword, confirm)
	}
	return m.DefaultError
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, current, newPassword, confirm string) error {
	m.recordCall("ChangePassword", userID)
	return m.DefaultError
}

func (m *MockAuthService) BeginTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	m.recordCall("BeginTwoFactor", userID)
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return &TwoFactorSetup{Secret: "JBSWY3DPEHPK3PXP", QRCodeURL: "otpauth://totp/Paddock:mock?secret=JBSWY3DPEHPK3PXP"}, nil
}

func (m *MockAuthService) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	m.recordCall("ConfirmTwoFactor", userID, code)
	return m.DefaultError
}

func (m *MockAuthService) DisableTwoFactor(ctx context.Context, userID, code string) error {
	m.recordCall("DisableTwoFactor", userID, code)
	return m.DefaultError
}

func (m *MockAuthService) VerifyTwoFactorLogin(ctx context.Context, userID, code string) (*AuthResponse, error) {
	m.recordCall("VerifyTwoFactorLogin", userID, code)
	if m.VerifyTwoFactorFunc != nil {
		return m.VerifyTwoFactorFunc(userID, code)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	user, ok := m.byID(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	return mockResponse(user), nil
}

// Ensure MockAuthService implements AuthServiceInterface
var _ AuthServiceInterface = (*MockAuthService)(nil)
