package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// TokenIssuer mints tokens for a verified subject
type TokenIssuer interface {
	Issue(subject string, roles []string, now time.Time) (IssuedToken, error)
}

// LoginResult is returned by a successful Login
type LoginResult struct {
	Token     string
	Username  string
	Roles     []string
	ExpiresAt time.Time
}

// Auther is the login orchestrator. After construction it holds no mutable
// state and can serve concurrent logins.
type Auther struct {
	store        CredentialStore
	verifier     PasswordVerifier
	tokens       TokenIssuer
	logger       Logger
	activitySink ActivitySink
	dummyHash    string
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store CredentialStore, verifier PasswordVerifier, tokens TokenIssuer) *Auther {
	return &Auther{
		store:        store,
		verifier:     verifier,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		dummyHash:    RandomPasswordHash(verifier),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = resolveLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Login checks username and password and returns a token valid from now.
// Unknown users and wrong passwords both fail with ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, username, password string, now time.Time) (*LoginResult, error) {
	creds, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Login credential lookup error", "username", username, "error", err)
			s.emitLoginFailure(ctx, username, "store_error", now)
			return nil, errors.Wrap(err, errors.CategoryInternal, "credential lookup failed")
		}
		// burn a comparison so unknown users cost the same as known ones
		s.verifier.Matches(password, s.dummyHash)
		s.logger.Debug("Login unknown username", "username", username)
		s.emitLoginFailure(ctx, username, "unknown_user", now)
		return nil, ErrInvalidCredentials
	}

	if !s.verifier.Matches(password, creds.PasswordHash) {
		s.logger.Debug("Login password mismatch", "username", username)
		s.emitLoginFailure(ctx, username, "bad_password", now)
		return nil, ErrInvalidCredentials
	}

	issued, err := s.tokens.Issue(creds.Username, creds.Roles, now)
	if err != nil {
		s.logger.Error("Login failed to issue token", "username", username, "error", err)
		s.emitLoginFailure(ctx, username, "token_error", now)
		return nil, err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		Username:   creds.Username,
		Actor:      creds.Username,
		OccurredAt: now,
		Metadata:   map[string]any{"roles": creds.Roles},
	})

	return &LoginResult{
		Token:     issued.Token,
		Username:  creds.Username,
		Roles:     append([]string{}, creds.Roles...),
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

func (s *Auther) emitLoginFailure(ctx context.Context, username, reason string, now time.Time) {
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		Username:   username,
		Reason:     reason,
		OccurredAt: now,
	})
}
