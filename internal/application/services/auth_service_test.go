package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/security"
)

func newAuthService(t *testing.T, password string) *AuthService {
	t.Helper()
	svc, err := NewAuthService("test-secret", time.Hour, password, logging.NewDiscardLogger(), performance.NewTracker(nil, nil))
	require.NoError(t, err)
	return svc
}

func TestSessionTokenBindsSession(t *testing.T) {
	svc := newAuthService(t, "")
	token, err := svc.IssueSessionToken("s1", filters.DashboardSales)
	require.NoError(t, err)

	claims, err := svc.ValidateSessionToken(token, "s1")
	require.NoError(t, err)
	assert.Equal(t, "sales", claims.Dashboard)

	_, err = svc.ValidateSessionToken(token, "s2")
	assert.ErrorIs(t, err, security.ErrInvalidToken)
	assert.ErrorIs(t, svc.ValidateSysopToken(token), security.ErrInvalidToken)
}

func TestAuthenticateSysop(t *testing.T) {
	svc := newAuthService(t, "hunter2")

	bad := svc.AuthenticateSysop("wrong")
	assert.False(t, bad.Success)
	assert.Empty(t, bad.Token)

	ok := svc.AuthenticateSysop("hunter2")
	require.True(t, ok.Success)
	assert.Equal(t, security.RoleSysop, ok.Role)
	assert.NoError(t, svc.ValidateSysopToken(ok.Token))

	_, err := svc.ValidateSessionToken(ok.Token, "")
	assert.ErrorIs(t, err, security.ErrInvalidToken)
}

func TestAuthenticateSysopDisabled(t *testing.T) {
	svc := newAuthService(t, "")
	result := svc.AuthenticateSysop("")
	assert.False(t, result.Success)
	assert.Equal(t, ErrSysopDisabled.Error(), result.Error)

	_, err := NewAuthService("", time.Hour, "", logging.NewDiscardLogger(), performance.NewTracker(nil, nil))
	assert.Error(t, err)
}
