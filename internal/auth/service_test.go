package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/domain/user"
	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/store/mocks"
)

// captureSender records auth mail instead of delivering it.
type captureSender struct {
	verifyTo  string
	verifyURL string
	resetTo   string
	resetURL  string
}

func (c *captureSender) SendOrderConfirmation(ctx context.Context, params email.OrderConfirmationParams) error {
	return nil
}

func (c *captureSender) SendRefundNotification(ctx context.Context, params email.RefundNotificationParams) error {
	return nil
}

func (c *captureSender) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	c.resetTo = to
	c.resetURL = resetURL
	return nil
}

func (c *captureSender) SendEmailVerification(ctx context.Context, to, verifyURL string) error {
	c.verifyTo = to
	c.verifyURL = verifyURL
	return nil
}

type authFixture struct {
	svc    *Service
	log    *mocks.MockEventLog
	rs     *mocks.MemoryReadStore
	tokens *mocks.MemoryTokenStore
	sender *captureSender
}

func newTestAuthService(t *testing.T) *authFixture {
	t.Helper()
	log := mocks.NewMockEventLog()
	rs := mocks.NewMemoryReadStore()
	tokens := mocks.NewMemoryTokenStore()
	sender := &captureSender{}
	jwtSvc := NewJWTService("test-secret-key-for-testing-purposes", time.Hour, 30*24*time.Hour)

	svc := NewService(user.NewService(log), rs, tokens, jwtSvc, sender, "https://shop.example.com")
	return &authFixture{svc: svc, log: log, rs: rs, tokens: tokens, sender: sender}
}

func tokenFromURL(t *testing.T, rawURL string) string {
	t.Helper()
	_, token, found := strings.Cut(rawURL, "token=")
	require.True(t, found, "url %q carries no token", rawURL)
	return token
}

// ============================================
// Register
// ============================================

func TestRegister_CreatesAccountAndSendsVerification(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	row, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")

	require.NoError(t, err)
	assert.Equal(t, user.RoleCustomer, row.Role)
	assert.NotEqual(t, "password123", row.PasswordHash)
	assert.False(t, row.EmailVerified)

	assert.Equal(t, 1, f.log.Version(row.ID))
	require.Len(t, f.log.AppendCalls, 1)
	registered, ok := f.log.AppendCalls[0].Events[0].Payload.(user.UserRegistered)
	require.True(t, ok)
	assert.Equal(t, "taro@example.com", registered.Email)

	assert.Equal(t, "taro@example.com", f.sender.verifyTo)
	assert.Contains(t, f.sender.verifyURL, "https://shop.example.com/verify-email?token=")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "taro@example.com", "otherpassword", "別人")

	assert.True(t, apperr.IsCode(err, apperr.CodeDuplicateEmail))
}

func TestRegister_InvalidInputs(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "not-an-email", "password123", "山田太郎")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidEmail))

	_, err = f.svc.Register(ctx, "taro@example.com", "short", "山田太郎")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidPassword))
}

// ============================================
// Login / Logout / Refresh
// ============================================

func TestLogin_IssuesTokenPair(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	row, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)

	pair, loggedIn, err := f.svc.Login(ctx, "taro@example.com", "password123")

	require.NoError(t, err)
	assert.Equal(t, row.ID, loggedIn.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 1, f.tokens.RefreshTokenCount(row.ID))
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)

	_, _, errUnknown := f.svc.Login(ctx, "nobody@example.com", "password123")
	_, _, errWrong := f.svc.Login(ctx, "taro@example.com", "wrongpassword")

	assert.True(t, apperr.IsCode(errUnknown, apperr.CodeInvalidCredentials))
	assert.True(t, apperr.IsCode(errWrong, apperr.CodeInvalidCredentials))
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLogin_WrongPasswordMirrorsFailureCount(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	row, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, "taro@example.com", "wrongpassword")
	require.Error(t, err)

	mirrored, _, _ := f.rs.GetUserByID(ctx, row.ID)
	assert.Equal(t, 1, mirrored.FailedLoginAttempts)
}

func TestLogin_FifthFailureLocksAccount(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	row, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)

	var lastErr error
	for i := 0; i < user.MaxLoginFailures; i++ {
		_, _, lastErr = f.svc.Login(ctx, "taro@example.com", "wrongpassword")
	}
	assert.True(t, apperr.IsCode(lastErr, apperr.CodeAccountLocked))

	// The right password is rejected while the lock holds.
	_, _, err = f.svc.Login(ctx, "taro@example.com", "password123")
	assert.True(t, apperr.IsCode(err, apperr.CodeAccountLocked))

	mirrored, _, _ := f.rs.GetUserByID(ctx, row.ID)
	require.NotNil(t, mirrored.LockedUntil)
	assert.WithinDuration(t, time.Now().Add(user.LockoutDuration), *mirrored.LockedUntil, 5*time.Second)
}

func TestLogin_SuccessResetsFailureCount(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	row, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)

	_, _, _ = f.svc.Login(ctx, "taro@example.com", "wrongpassword")
	_, _, _ = f.svc.Login(ctx, "taro@example.com", "wrongpassword")

	_, _, err = f.svc.Login(ctx, "taro@example.com", "password123")
	require.NoError(t, err)

	mirrored, _, _ := f.rs.GetUserByID(ctx, row.ID)
	assert.Equal(t, 0, mirrored.FailedLoginAttempts)
	assert.Nil(t, mirrored.LockedUntil)
}

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)
	pair, _, err := f.svc.Login(ctx, "taro@example.com", "password123")
	require.NoError(t, err)

	accessToken, _, err := f.svc.Refresh(ctx, pair.RefreshToken)

	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
}

func TestRefresh_AfterLogout(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)
	pair, _, err := f.svc.Login(ctx, "taro@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	// Logout is idempotent.
	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))

	_, _, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidRefreshToken))
}

func TestRefresh_GarbageToken(t *testing.T) {
	f := newTestAuthService(t)

	_, _, err := f.svc.Refresh(context.Background(), "not-a-jwt")

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidRefreshToken))
}

// ============================================
// Password Reset
// ============================================

func TestRequestPasswordReset_UnknownEmailSucceedsSilently(t *testing.T) {
	f := newTestAuthService(t)

	err := f.svc.RequestPasswordReset(context.Background(), "nobody@example.com")

	require.NoError(t, err)
	assert.Empty(t, f.sender.resetURL)
}

func TestPasswordReset_FullFlow(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	row, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, "taro@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "taro@example.com"))
	assert.Equal(t, "taro@example.com", f.sender.resetTo)
	token := tokenFromURL(t, f.sender.resetURL)

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, "newpassword456"))

	// Old sessions are revoked and the old password no longer works.
	assert.Equal(t, 0, f.tokens.RefreshTokenCount(row.ID))
	_, _, err = f.svc.Login(ctx, "taro@example.com", "password123")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidCredentials))
	_, _, err = f.svc.Login(ctx, "taro@example.com", "newpassword456")
	assert.NoError(t, err)
}

func TestConfirmPasswordReset_TokenIsSingleUse(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "taro@example.com"))
	token := tokenFromURL(t, f.sender.resetURL)

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, "newpassword456"))
	err = f.svc.ConfirmPasswordReset(ctx, token, "anotherpassword")

	assert.True(t, apperr.IsCode(err, apperr.CodeVerificationTokenUsed))
}

func TestConfirmPasswordReset_UnknownToken(t *testing.T) {
	f := newTestAuthService(t)

	err := f.svc.ConfirmPasswordReset(context.Background(), "deadbeef", "newpassword456")

	assert.True(t, apperr.IsCode(err, apperr.CodeVerificationTokenUsed))
}

// ============================================
// Email Verification
// ============================================

func TestVerifyEmail_FlipsFlagAndAppendsEvent(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	row, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)
	token := tokenFromURL(t, f.sender.verifyURL)

	require.NoError(t, f.svc.VerifyEmail(ctx, token))

	verified, _, _ := f.rs.GetUserByID(ctx, row.ID)
	assert.True(t, verified.EmailVerified)
	assert.Equal(t, 2, f.log.Version(row.ID))
}

func TestVerifyEmail_TokenIsSingleUse(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "taro@example.com", "password123", "山田太郎")
	require.NoError(t, err)
	token := tokenFromURL(t, f.sender.verifyURL)

	require.NoError(t, f.svc.VerifyEmail(ctx, token))
	err = f.svc.VerifyEmail(ctx, token)

	assert.True(t, apperr.IsCode(err, apperr.CodeVerificationTokenUsed))
}
