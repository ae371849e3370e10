package auth

import (
	"context"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/domain/user"
	"github.com/example/eventshop/internal/email"
	"github.com/example/eventshop/internal/infrastructure/store"
	"github.com/example/eventshop/internal/readmodel"
)

const (
	passwordResetTokenTTL     = time.Hour
	emailVerificationTokenTTL = 24 * time.Hour
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Service implements registration, login and the token flows. The users row
// is write-through: the aggregate owns lockout decisions, the row mirrors
// them for fast reads.
type Service struct {
	users     *user.Service
	readStore store.ReadStore
	tokens    store.TokenStore
	jwt       *JWTService
	sender    email.Sender
	baseURL   string
}

func NewService(users *user.Service, readStore store.ReadStore, tokens store.TokenStore, jwt *JWTService, sender email.Sender, baseURL string) *Service {
	return &Service{
		users:     users,
		readStore: readStore,
		tokens:    tokens,
		jwt:       jwt,
		sender:    sender,
		baseURL:   baseURL,
	}
}

// Register creates the account, appends UserRegistered and sends the
// verification mail. The password hash lives only in the users row, never in
// events.
func (s *Service) Register(ctx context.Context, emailAddr, password, name string) (*readmodel.User, error) {
	if !emailPattern.MatchString(emailAddr) {
		return nil, apperr.New(apperr.CodeInvalidEmail, "invalid email address").WithFields("email")
	}
	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := &readmodel.User{
		ID:           uuid.New().String(),
		Email:        emailAddr,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         user.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.readStore.InsertUser(ctx, row); err != nil {
		return nil, err
	}

	if _, err := s.users.Register(ctx, row.ID, emailAddr, name, user.RoleCustomer); err != nil {
		return nil, err
	}

	if err := s.sendVerificationEmail(ctx, row.ID, emailAddr); err != nil {
		log.Printf("[Auth] failed to send verification email to %s: %v", emailAddr, err)
	}

	return row, nil
}

// Login verifies credentials against the users row and the lockout state
// against the aggregate. Failures never reveal which check rejected.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*TokenPair, *readmodel.User, error) {
	row, found, err := s.readStore.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, apperr.New(apperr.CodeInvalidCredentials, "invalid email or password")
	}

	aggregate, err := s.users.Load(ctx, row.ID)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	if aggregate.IsLocked(now) {
		return nil, nil, apperr.New(apperr.CodeAccountLocked, "account is temporarily locked")
	}

	if !CheckPassword(password, row.PasswordHash) {
		failed, _, err := s.users.RecordLoginFailure(ctx, row.ID)
		if err != nil {
			return nil, nil, err
		}
		s.mirrorLoginState(ctx, failed)
		if failed.IsLocked(now) {
			return nil, nil, apperr.New(apperr.CodeAccountLocked, "account is temporarily locked")
		}
		return nil, nil, apperr.New(apperr.CodeInvalidCredentials, "invalid email or password")
	}

	if aggregate.FailedLoginAttempts > 0 {
		unlocked, _, err := s.users.RecordLoginSuccess(ctx, row.ID)
		if err != nil {
			return nil, nil, err
		}
		s.mirrorLoginState(ctx, unlocked)
	}

	pair, err := s.issueTokens(ctx, row)
	if err != nil {
		return nil, nil, err
	}
	return pair, row, nil
}

// Logout deletes the refresh token row; unknown tokens succeed.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteRefreshToken(ctx, HashToken(refreshToken))
}

// Refresh issues a new access token for a refresh token whose signature
// checks out and whose row is present and unexpired.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	userID, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}

	tokenRow, found, err := s.tokens.GetRefreshToken(ctx, HashToken(refreshToken))
	if err != nil {
		return "", time.Time{}, err
	}
	if !found || tokenRow.ExpiresAt.Before(time.Now()) {
		return "", time.Time{}, apperr.New(apperr.CodeInvalidRefreshToken, "invalid refresh token")
	}

	row, found, err := s.readStore.GetUserByID(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !found {
		return "", time.Time{}, apperr.New(apperr.CodeInvalidRefreshToken, "invalid refresh token")
	}

	return s.jwt.GenerateAccessToken(row.ID, row.Email, row.Role)
}

// RequestPasswordReset always reports success so account existence never
// leaks.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	row, found, err := s.readStore.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	token, err := NewToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(passwordResetTokenTTL)
	if err := s.tokens.InsertPasswordResetToken(ctx, HashToken(token), row.ID, expiresAt); err != nil {
		return err
	}

	if _, err := s.users.RequestPasswordReset(ctx, row.ID); err != nil {
		return err
	}

	resetURL := s.baseURL + "/reset-password?token=" + token
	if err := s.sender.SendPasswordReset(ctx, row.Email, resetURL); err != nil {
		log.Printf("[Auth] failed to send password reset email to %s: %v", row.Email, err)
	}
	return nil
}

// ConfirmPasswordReset consumes the token, replaces the hash and revokes
// every session.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	tokenRow, err := s.consumableToken(ctx, s.tokens.GetPasswordResetToken, token)
	if err != nil {
		return err
	}

	if err := s.readStore.UpdateUserPassword(ctx, tokenRow.UserID, passwordHash); err != nil {
		return err
	}
	if err := s.tokens.MarkPasswordResetTokenUsed(ctx, tokenRow.TokenHash); err != nil {
		return err
	}
	if _, err := s.users.CompletePasswordReset(ctx, tokenRow.UserID); err != nil {
		return err
	}
	return s.tokens.DeleteRefreshTokensForUser(ctx, tokenRow.UserID)
}

// VerifyEmail flips the users flag before consuming the token: a crash in
// between leaves a retryable verification, never a lost one.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	tokenRow, err := s.consumableToken(ctx, s.tokens.GetEmailVerificationToken, token)
	if err != nil {
		return err
	}

	if err := s.readStore.SetUserEmailVerified(ctx, tokenRow.UserID); err != nil {
		return err
	}
	if err := s.tokens.MarkEmailVerificationTokenUsed(ctx, tokenRow.TokenHash); err != nil {
		return err
	}
	_, err = s.users.VerifyEmail(ctx, tokenRow.UserID)
	return err
}

func (s *Service) issueTokens(ctx context.Context, row *readmodel.User) (*TokenPair, error) {
	accessToken, accessExpiresAt, err := s.jwt.GenerateAccessToken(row.ID, row.Email, row.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExpiresAt, err := s.jwt.GenerateRefreshToken(row.ID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.InsertRefreshToken(ctx, HashToken(refreshToken), row.ID, refreshExpiresAt); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (s *Service) sendVerificationEmail(ctx context.Context, userID, emailAddr string) error {
	token, err := NewToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(emailVerificationTokenTTL)
	if err := s.tokens.InsertEmailVerificationToken(ctx, HashToken(token), userID, expiresAt); err != nil {
		return err
	}
	verifyURL := s.baseURL + "/verify-email?token=" + token
	return s.sender.SendEmailVerification(ctx, emailAddr, verifyURL)
}

// consumableToken enforces single-use semantics: missing or used rows read
// as VERIFICATION_TOKEN_USED, expired ones as VERIFICATION_TOKEN_EXPIRED.
func (s *Service) consumableToken(ctx context.Context, lookup func(context.Context, string) (*store.TokenRow, bool, error), token string) (*store.TokenRow, error) {
	tokenRow, found, err := lookup(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if !found || tokenRow.Used {
		return nil, apperr.New(apperr.CodeVerificationTokenUsed, "token is invalid or already used")
	}
	if tokenRow.ExpiresAt.Before(time.Now()) {
		return nil, apperr.New(apperr.CodeVerificationTokenExpired, "token has expired")
	}
	return tokenRow, nil
}

func (s *Service) mirrorLoginState(ctx context.Context, u *user.User) {
	if err := s.readStore.UpdateUserLoginState(ctx, u.ID, u.FailedLoginAttempts, u.LockedUntil); err != nil {
		log.Printf("[Auth] failed to mirror login state for %s: %v", u.ID, err)
	}
}
