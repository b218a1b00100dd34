package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/logging"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/auth"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/config"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/session"
	"golang.org/x/crypto/bcrypt"
)

// TemporaryPasswordLength is the length of passwords issued by
// IssueTemporaryPassword.
const TemporaryPasswordLength = 12

// Session is the result of a successful sign-in.
type Session struct {
	Email             string    `json:"email"`
	IsAdmin           bool      `json:"is_admin"`
	MustResetPassword bool      `json:"must_reset_password"`
	AccessToken       string    `json:"access_token"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// UserService provides the authentication flows: sign-up, sign-in,
// temporary passwords, password change and sign-out.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	gate                        *Gate
	revoker                     session.Revoker
	logger                      logging.Logger
	metrics                     *metrics.Metrics
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	hashCost                    int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, revoker session.Revoker,
	logger logging.Logger, mx *metrics.Metrics) *UserService {
	cost := cfg.PasswordHashCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &UserService{
		db:                          db,
		repomanager:                 m,
		gate:                        NewGate(db, m),
		revoker:                     revoker,
		logger:                      logger.With("module", "users"),
		metrics:                     mx,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		hashCost:                    cost,
	}
}

// SignUp creates a regular (non-admin) account.
func (s *UserService) SignUp(ctx context.Context, email, password, confirm string) (*models.User, error) {
	email = strings.TrimSpace(email)

	verr := common.NewValidationError()
	checkEmail(verr, "email", email)
	checkNewPassword(verr, "password", "confirm_password", password, confirm)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	return s.createUser(ctx, email, password, false)
}

// EnsureAdmin creates an admin account unless email is already taken. It
// reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.TrimSpace(email)

	verr := common.NewValidationError()
	checkEmail(verr, "email", email)
	checkNewPassword(verr, "password", "confirm_password", password, password)
	if err := verr.OrNil(); err != nil {
		return false, err
	}

	if _, err := s.createUser(ctx, email, password, true); err != nil {
		if errors.Is(err, common.ErrDuplicateUser) {
			s.logger.Info(ctx, "admin already present", "email", email)
			return false, nil
		}
		return false, err
	}

	s.logger.Info(ctx, "admin created", "email", email)
	return true, nil
}

func (s *UserService) createUser(ctx context.Context, email, password string, isAdmin bool) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUser) {
			return nil, common.ErrDuplicateUser
		}
		s.logger.Error(ctx, "create user failed", "email", email, "error", err)
		return nil, fmt.Errorf("%w: create user", common.ErrStorageFailure)
	}

	s.logger.Info(ctx, "user created", "email", email, "admin", isAdmin)
	return u, nil
}

// SignIn verifies credentials and issues an access token. Unknown users and
// wrong passwords both yield common.ErrInvalidCredentials.
func (s *UserService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "sign-in lookup failed", "error", err)
			return nil, fmt.Errorf("%w: lookup user", common.ErrStorageFailure)
		}
		// equalize timing with the wrong-password path
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.metrics.SignIn(false)
		return nil, common.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.SignIn(false)
		return nil, common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.metrics.SignIn(true)
	s.logger.Info(ctx, "signed in", "email", user.Email)

	return &Session{
		Email:             user.Email,
		IsAdmin:           user.IsAdmin,
		MustResetPassword: user.MustResetPassword,
		AccessToken:       token,
		ExpiresAt:         time.Now().Add(s.accessTokenValidityDuration),
	}, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
	})
	return s.dummyHash
}

// IssueTemporaryPassword replaces the user's password with a random one,
// flags the account for a reset and returns the plaintext once.
func (s *UserService) IssueTemporaryPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)

	plain, err := common.MakeRandAlphanumeric(TemporaryPasswordLength)
	if err != nil {
		return "", fmt.Errorf("%w: generate password: %v", common.ErrorInternal, err)
	}

	if err := s.setPassword(ctx, email, plain, true); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "temporary password issued", "email", email)
	return plain, nil
}

// ChangePassword sets a new password for the session user and clears the
// reset flag.
func (s *UserService) ChangePassword(ctx context.Context, email, password, confirm string) error {
	verr := common.NewValidationError()
	checkNewPassword(verr, "new_password", "confirm_password", password, confirm)
	if err := verr.OrNil(); err != nil {
		return err
	}

	if err := s.setPassword(ctx, email, password, false); err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "email", email)
	return nil
}

func (s *UserService) setPassword(ctx context.Context, email, password string, mustReset bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	ok, err := s.repomanager.Users(s.db).UpdatePassword(ctx, email, string(hash), mustReset)
	if err != nil {
		s.logger.Error(ctx, "update password failed", "email", email, "error", err)
		return fmt.Errorf("%w: update password", common.ErrStorageFailure)
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

// ListUsers returns every account, newest first. Admin only.
func (s *UserService) ListUsers(ctx context.Context, requester string) ([]models.UserSummary, error) {
	if err := s.gate.RequireAdmin(ctx, requester); err != nil {
		return nil, err
	}

	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		s.logger.Error(ctx, "list users failed", "error", err)
		return nil, fmt.Errorf("%w: list users", common.ErrStorageFailure)
	}
	return list, nil
}

// Authenticate validates an access token and returns the session email.
// Revoked tokens are rejected with common.ErrorUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return "", err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error(ctx, "revocation lookup failed", "error", err)
		return "", fmt.Errorf("%w: revocation lookup", common.ErrStorageFailure)
	}
	if revoked {
		return "", common.ErrorUnauthorized
	}

	return claims.Email, nil
}

// SignOut revokes the token until it would have expired anyway. Signing out
// with an already expired token is a no-op.
func (s *UserService) SignOut(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil
		}
		return err
	}

	expiresAt := time.Now().Add(s.accessTokenValidityDuration)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.revoker.Revoke(ctx, claims.ID, expiresAt); err != nil {
		s.logger.Error(ctx, "revoke failed", "error", err)
		return fmt.Errorf("%w: revoke token", common.ErrStorageFailure)
	}

	s.logger.Info(ctx, "signed out", "email", claims.Email)
	return nil
}
