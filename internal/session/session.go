// Package session tracks the signed-in user of a client and publishes
// identity changes to subscribers.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ldi/dayplan/internal/stream"
	"github.com/ldi/dayplan/pkg/models"
)

// Credentials is what the identity provider returns for a successful
// sign-in or sign-up.
type Credentials struct {
	Identity models.Identity
	Token    string
}

// Provider is the identity provider boundary. Implementations return
// *AuthError for user-facing failures; any other error is treated as a
// transport failure.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Credentials, error)
	SignUp(ctx context.Context, email, password string) (Credentials, error)
	SignOut(ctx context.Context, token string) error
}

// IdentityEvent is one state of the identity stream. A zero Identity means
// signed out.
type IdentityEvent struct {
	Identity models.Identity
}

func (e IdentityEvent) Authenticated() bool {
	return !e.Identity.IsZero()
}

// IdentitySubscription delivers IdentityEvents until closed.
type IdentitySubscription = stream.Subscription[IdentityEvent]

// Session is safe for concurrent use.
type Session struct {
	provider Provider
	logger   *slog.Logger

	mu      sync.Mutex
	current models.Identity
	token   string
	subs    map[*IdentitySubscription]struct{}
}

func New(provider Provider, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		provider: provider,
		logger:   logger,
		subs:     make(map[*IdentitySubscription]struct{}),
	}
}

// SignIn establishes a session for an existing account. On failure the
// current state is left untouched.
func (s *Session) SignIn(ctx context.Context, email, password string) (models.Identity, error) {
	creds, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		ae := toAuthError(err)
		s.logger.Info("sign in failed", "code", ae.Code)
		return models.Identity{}, ae
	}
	s.establish(ctx, creds)
	return creds.Identity, nil
}

// SignUp registers a new account and signs it in.
func (s *Session) SignUp(ctx context.Context, email, password string) (models.Identity, error) {
	creds, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		ae := toAuthError(err)
		s.logger.Info("sign up failed", "code", ae.Code)
		return models.Identity{}, ae
	}
	s.establish(ctx, creds)
	return creds.Identity, nil
}

// SignOut ends the session. The local state is cleared even when the
// provider call fails; that failure is still returned.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	wasSignedIn := !s.current.IsZero()
	s.current = models.Identity{}
	s.token = ""
	if wasSignedIn {
		s.broadcastLocked()
	}
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := s.provider.SignOut(ctx, token); err != nil {
		ae := toAuthError(err)
		s.logger.Warn("provider sign out failed", "code", ae.Code, "error", ae.Message)
		return ae
	}
	s.logger.Info("signed out")
	return nil
}

// Current returns the signed-in identity, if any.
func (s *Session) Current() (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, !s.current.IsZero()
}

// Token returns the provider token of the active session, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// CurrentIdentity subscribes to identity changes. The first event is the
// state at the time of the call. Close the subscription to stop listening.
func (s *Session) CurrentIdentity() *IdentitySubscription {
	sub := stream.New[IdentityEvent]()

	s.mu.Lock()
	sub.Publish(IdentityEvent{Identity: s.current})
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	sub.OnClose(func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	})
	return sub
}

// Close ends every identity subscription.
func (s *Session) Close() {
	s.mu.Lock()
	subs := make([]*IdentitySubscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (s *Session) establish(ctx context.Context, creds Credentials) {
	s.mu.Lock()
	previous := s.token
	changed := s.current != creds.Identity
	s.current = creds.Identity
	s.token = creds.Token
	if changed {
		s.broadcastLocked()
	}
	s.mu.Unlock()

	s.logger.Info("signed in", "user_id", creds.Identity.UserID)

	if previous != "" && previous != creds.Token {
		if err := s.provider.SignOut(ctx, previous); err != nil {
			s.logger.Warn("failed to end replaced session", "error", err)
		}
	}
}

func (s *Session) broadcastLocked() {
	ev := IdentityEvent{Identity: s.current}
	for sub := range s.subs {
		sub.Publish(ev)
	}
}
