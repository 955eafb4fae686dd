// Package identity is the local identity provider: account registration,
// password verification and signed session tokens.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/ldi/dayplan/internal/db"
	"github.com/ldi/dayplan/internal/session"
	"github.com/ldi/dayplan/pkg/models"
)

// User-facing messages, worded like the hosted provider's.
const (
	msgInvalidEmail  = "The email address is badly formatted."
	msgWeakPassword  = "Password should be at least 6 characters."
	msgLongPassword  = "Password should be at most 72 characters."
	msgEmailInUse    = "The email address is already in use by another account."
	msgUserNotFound  = "There is no user record corresponding to this identifier. The user may have been deleted."
	msgWrongPassword = "The password is invalid or the user does not have a password."
	msgInvalidToken  = "The session token is invalid or has expired. Please sign in again."
	msgInternal      = "An internal error has occurred."
)

// Provider implements session.Provider on top of the local database.
type Provider struct {
	db     *db.DB
	hasher *PasswordHasher
	tokens *TokenManager
	logger *slog.Logger
}

func NewProvider(database *db.DB, hasher *PasswordHasher, tokens *TokenManager, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		db:     database,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

var _ session.Provider = (*Provider)(nil)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return session.NewAuthError(session.CodeInvalidEmail, msgInvalidEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || strings.ToLower(addr.Address) != email {
		return session.NewAuthError(session.CodeInvalidEmail, msgInvalidEmail)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return session.NewAuthError(session.CodeWeakPassword, msgWeakPassword)
	}
	if len(password) > MaxPasswordLength {
		return session.NewAuthError(session.CodeWeakPassword, msgLongPassword)
	}
	return nil
}

func (p *Provider) internal(op string, err error) error {
	p.logger.Error("identity provider failure", "op", op, "error", err)
	return &session.AuthError{Code: session.CodeInternal, Message: msgInternal, Err: err}
}

// SignUp registers a new account and returns a session for it.
func (p *Provider) SignUp(ctx context.Context, email, password string) (session.Credentials, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return session.Credentials{}, err
	}
	if err := validatePassword(password); err != nil {
		return session.Credentials{}, err
	}

	existing, err := p.db.GetUserByEmail(ctx, email)
	if err != nil {
		return session.Credentials{}, p.internal("sign_up", err)
	}
	if existing != nil {
		return session.Credentials{}, session.NewAuthError(session.CodeEmailInUse, msgEmailInUse)
	}

	hash, err := p.hasher.Hash(password)
	if err != nil {
		return session.Credentials{}, p.internal("sign_up", err)
	}

	u := &models.User{Email: email, PasswordHash: hash}
	if err := p.db.CreateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrUserExists) {
			return session.Credentials{}, session.NewAuthError(session.CodeEmailInUse, msgEmailInUse)
		}
		return session.Credentials{}, p.internal("sign_up", err)
	}

	p.logger.Info("user registered", "user_id", u.ID)
	return p.issue(u)
}

// SignIn verifies the password of an existing account.
func (p *Provider) SignIn(ctx context.Context, email, password string) (session.Credentials, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return session.Credentials{}, err
	}

	u, err := p.db.GetUserByEmail(ctx, email)
	if err != nil {
		return session.Credentials{}, p.internal("sign_in", err)
	}
	if u == nil {
		return session.Credentials{}, session.NewAuthError(session.CodeUserNotFound, msgUserNotFound)
	}
	if !p.hasher.Verify(password, u.PasswordHash) {
		return session.Credentials{}, session.NewAuthError(session.CodeWrongPassword, msgWrongPassword)
	}

	return p.issue(u)
}

// SignOut revokes the token until its natural expiry. Tokens that are
// already invalid or expired are treated as signed out.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := p.db.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return p.internal("sign_out", err)
	}
	return nil
}

// Verify resolves a session token to the identity it was issued for.
func (p *Provider) Verify(ctx context.Context, token string) (models.Identity, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return models.Identity{}, &session.AuthError{Code: session.CodeInvalidToken, Message: msgInvalidToken, Err: err}
	}

	revoked, err := p.db.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return models.Identity{}, p.internal("verify", err)
	}
	if revoked {
		return models.Identity{}, session.NewAuthError(session.CodeInvalidToken, msgInvalidToken)
	}

	u, err := p.db.GetUser(ctx, claims.UserID)
	if err != nil {
		return models.Identity{}, p.internal("verify", err)
	}
	if u == nil {
		return models.Identity{}, session.NewAuthError(session.CodeUserNotFound, msgUserNotFound)
	}

	return models.Identity{UserID: u.ID, Email: u.Email}, nil
}

func (p *Provider) issue(u *models.User) (session.Credentials, error) {
	token, _, err := p.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return session.Credentials{}, p.internal("issue_token", err)
	}
	return session.Credentials{
		Identity: models.Identity{UserID: u.ID, Email: u.Email},
		Token:    token,
	}, nil
}
