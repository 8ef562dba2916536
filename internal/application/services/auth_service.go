package services

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/security"
)

const sysopTokenTTL = 12 * time.Hour

var ErrSysopDisabled = errors.New("sysop login is not configured")

// AuthResult holds authentication result data
type AuthResult struct {
	Token   string `json:"token,omitempty"`
	Role    string `json:"role,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AuthService issues and checks session handles and sysop tokens.
type AuthService struct {
	jwtSecret   string
	tokenTTL    time.Duration
	sysopHash   []byte
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAuthService hashes the sysop password once. An empty password disables
// sysop login.
func NewAuthService(jwtSecret string, tokenTTL time.Duration, sysopPassword string, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) (*AuthService, error) {
	if jwtSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	svc := &AuthService{
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		logger:      logger,
		perfTracker: perfTracker,
	}
	if sysopPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(sysopPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash sysop password: %w", err)
		}
		svc.sysopHash = hash
	}
	return svc, nil
}

// IssueSessionToken signs the bearer handle for a filter session.
func (a *AuthService) IssueSessionToken(sessionID string, dashboard filters.Dashboard) (string, error) {
	return security.GenerateSessionToken(sessionID, string(dashboard), a.jwtSecret, a.tokenTTL)
}

// ValidateSessionToken checks that token is a live handle for sessionID.
func (a *AuthService) ValidateSessionToken(token, sessionID string) (*security.SessionClaims, error) {
	claims, err := security.ValidateJWT(token, a.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.Role != security.RoleSession || claims.SessionID != sessionID {
		return nil, security.ErrInvalidToken
	}
	return claims, nil
}

// AuthenticateSysop checks the password and returns a sysop bearer token.
func (a *AuthService) AuthenticateSysop(password string) *AuthResult {
	marker := a.perfTracker.StartOperation("auth:sysop_login", "")
	defer a.perfTracker.CompleteOperation(marker)

	if a.sysopHash == nil {
		marker.SetError(ErrSysopDisabled)
		a.logger.LogAuthOperation("sysop_login", "sysop", false, map[string]any{"reason": "disabled"})
		return &AuthResult{Success: false, Error: ErrSysopDisabled.Error()}
	}
	if err := bcrypt.CompareHashAndPassword(a.sysopHash, []byte(password)); err != nil {
		marker.SetSuccess(false)
		a.logger.LogAuthOperation("sysop_login", "sysop", false, nil)
		return &AuthResult{Success: false, Error: "Invalid credentials"}
	}

	token, err := security.GenerateSysopToken(a.jwtSecret, sysopTokenTTL)
	if err != nil {
		marker.SetError(err)
		a.logger.LogError(logging.ChannelAuth, "GenerateSysopToken", err, "", nil)
		return &AuthResult{Success: false, Error: "Failed to generate token"}
	}

	a.logger.LogAuthOperation("sysop_login", "sysop", true, nil)
	return &AuthResult{Token: token, Role: security.RoleSysop, Success: true}
}

// ValidateSysopToken checks a sysop bearer token.
func (a *AuthService) ValidateSysopToken(token string) error {
	claims, err := security.ValidateJWT(token, a.jwtSecret)
	if err != nil {
		return err
	}
	if claims.Role != security.RoleSysop {
		return security.ErrInvalidToken
	}
	return nil
}
